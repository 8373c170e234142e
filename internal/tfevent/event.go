package tfevent

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers from tensorboard's event.proto and summary.proto.
// The messages are tiny and stable, so they are encoded by hand with
// protowire instead of carrying generated bindings.
const (
	fieldEventWallTime    = 1 // double
	fieldEventStep        = 2 // int64
	fieldEventFileVersion = 3 // string
	fieldEventSummary     = 5 // Summary

	fieldSummaryValue = 1 // repeated Summary.Value

	fieldValueTag      = 1 // string
	fieldValueTensor   = 8 // TensorProto
	fieldValueMetadata = 9 // SummaryMetadata

	fieldMetadataPluginData = 1 // SummaryMetadata.PluginData
	fieldMetadataDataClass  = 4 // enum

	fieldPluginName = 1 // string

	fieldTensorDtype     = 1 // enum
	fieldTensorShape     = 2 // TensorShapeProto
	fieldTensorFloatVal  = 5 // repeated float
	fieldTensorStringVal = 8 // repeated bytes

	fieldShapeDim = 2 // repeated TensorShapeProto.Dim
	fieldDimSize  = 1 // int64
)

const (
	dtypeFloat  = 1 // DT_FLOAT
	dtypeString = 7 // DT_STRING

	dataClassScalar = 1
	dataClassTensor = 2
)

// FileVersion is the preamble every event file starts with.
const FileVersion = "brain.Event:2"

// Plugin names recorded in summary metadata so visualization tooling
// routes each tag to the right dashboard.
const (
	PluginScalars = "scalars"
	PluginText    = "text"
)

// Value is one tagged tensor inside an event's summary. Exactly one of
// Floats or Strings is populated.
type Value struct {
	Tag     string
	Plugin  string
	Floats  []float64
	Strings []string
}

// Event is a single record in an event file: either a file-version
// preamble or a stepped summary.
type Event struct {
	WallTime    float64
	Step        int64
	FileVersion string
	Values      []Value
}

// NewScalarEvent builds an event holding one scalar value.
func NewScalarEvent(tag string, value float64, step int64, wallTime float64) *Event {
	return &Event{
		WallTime: wallTime,
		Step:     step,
		Values:   []Value{{Tag: tag, Plugin: PluginScalars, Floats: []float64{value}}},
	}
}

// NewTextEvent builds an event holding one text value. The tag is
// suffixed the way the text plugin expects.
func NewTextEvent(tag, text string, step int64, wallTime float64) *Event {
	return &Event{
		WallTime: wallTime,
		Step:     step,
		Values:   []Value{{Tag: tag + "/text_summary", Plugin: PluginText, Strings: []string{text}}},
	}
}

// Marshal encodes the event to protobuf wire format.
func (e *Event) Marshal() []byte {
	var b []byte
	if e.WallTime != 0 {
		b = protowire.AppendTag(b, fieldEventWallTime, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(e.WallTime))
	}
	if e.Step != 0 {
		b = protowire.AppendTag(b, fieldEventStep, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Step))
	}
	if e.FileVersion != "" {
		b = protowire.AppendTag(b, fieldEventFileVersion, protowire.BytesType)
		b = protowire.AppendString(b, e.FileVersion)
	}
	if len(e.Values) > 0 {
		b = protowire.AppendTag(b, fieldEventSummary, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalSummary(e.Values))
	}
	return b
}

func marshalSummary(values []Value) []byte {
	var b []byte
	for i := range values {
		b = protowire.AppendTag(b, fieldSummaryValue, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(&values[i]))
	}
	return b
}

func marshalValue(v *Value) []byte {
	var b []byte
	if v.Tag != "" {
		b = protowire.AppendTag(b, fieldValueTag, protowire.BytesType)
		b = protowire.AppendString(b, v.Tag)
	}
	b = protowire.AppendTag(b, fieldValueTensor, protowire.BytesType)
	b = protowire.AppendBytes(b, marshalTensor(v))
	if v.Plugin != "" {
		b = protowire.AppendTag(b, fieldValueMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalMetadata(v))
	}
	return b
}

func marshalMetadata(v *Value) []byte {
	var plugin []byte
	plugin = protowire.AppendTag(plugin, fieldPluginName, protowire.BytesType)
	plugin = protowire.AppendString(plugin, v.Plugin)

	var b []byte
	b = protowire.AppendTag(b, fieldMetadataPluginData, protowire.BytesType)
	b = protowire.AppendBytes(b, plugin)

	class := dataClassScalar
	if len(v.Strings) > 0 {
		class = dataClassTensor
	}
	b = protowire.AppendTag(b, fieldMetadataDataClass, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(class))
	return b
}

func marshalTensor(v *Value) []byte {
	var b []byte
	if len(v.Strings) > 0 {
		b = protowire.AppendTag(b, fieldTensorDtype, protowire.VarintType)
		b = protowire.AppendVarint(b, dtypeString)
		b = protowire.AppendTag(b, fieldTensorShape, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalShape(int64(len(v.Strings))))
		for _, s := range v.Strings {
			b = protowire.AppendTag(b, fieldTensorStringVal, protowire.BytesType)
			b = protowire.AppendString(b, s)
		}
		return b
	}
	b = protowire.AppendTag(b, fieldTensorDtype, protowire.VarintType)
	b = protowire.AppendVarint(b, dtypeFloat)
	for _, f := range v.Floats {
		b = protowire.AppendTag(b, fieldTensorFloatVal, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(float32(f)))
	}
	return b
}

func marshalShape(size int64) []byte {
	var dim []byte
	dim = protowire.AppendTag(dim, fieldDimSize, protowire.VarintType)
	dim = protowire.AppendVarint(dim, uint64(size))

	var b []byte
	b = protowire.AppendTag(b, fieldShapeDim, protowire.BytesType)
	b = protowire.AppendBytes(b, dim)
	return b
}

// Unmarshal decodes an event from protobuf wire format.
func (e *Event) Unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tfevent: malformed event: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldEventWallTime && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed wall time: %w", protowire.ParseError(n))
			}
			e.WallTime = math.Float64frombits(v)
			b = b[n:]
		case num == fieldEventStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed step: %w", protowire.ParseError(n))
			}
			e.Step = int64(v)
			b = b[n:]
		case num == fieldEventFileVersion && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed file version: %w", protowire.ParseError(n))
			}
			e.FileVersion = string(v)
			b = b[n:]
		case num == fieldEventSummary && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed summary: %w", protowire.ParseError(n))
			}
			if err := e.unmarshalSummary(v); err != nil {
				return err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func (e *Event) unmarshalSummary(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tfevent: malformed summary: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num == fieldSummaryValue && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed summary value: %w", protowire.ParseError(n))
			}
			val, err := unmarshalValue(v)
			if err != nil {
				return err
			}
			e.Values = append(e.Values, val)
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return fmt.Errorf("tfevent: malformed summary field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func unmarshalValue(b []byte) (Value, error) {
	var val Value
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return val, fmt.Errorf("tfevent: malformed value: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldValueTag && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return val, fmt.Errorf("tfevent: malformed tag: %w", protowire.ParseError(n))
			}
			val.Tag = string(v)
			b = b[n:]
		case num == fieldValueTensor && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return val, fmt.Errorf("tfevent: malformed tensor: %w", protowire.ParseError(n))
			}
			if err := unmarshalTensor(v, &val); err != nil {
				return val, err
			}
			b = b[n:]
		case num == fieldValueMetadata && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return val, fmt.Errorf("tfevent: malformed metadata: %w", protowire.ParseError(n))
			}
			val.Plugin = pluginName(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return val, fmt.Errorf("tfevent: malformed value field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return val, nil
}

func unmarshalTensor(b []byte, val *Value) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tfevent: malformed tensor: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == fieldTensorFloatVal && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed float value: %w", protowire.ParseError(n))
			}
			val.Floats = append(val.Floats, float64(math.Float32frombits(v)))
			b = b[n:]
		case num == fieldTensorFloatVal && typ == protowire.BytesType:
			// Packed encoding.
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed packed floats: %w", protowire.ParseError(n))
			}
			for len(v) > 0 {
				f, m := protowire.ConsumeFixed32(v)
				if m < 0 {
					return fmt.Errorf("tfevent: malformed packed floats: %w", protowire.ParseError(m))
				}
				val.Floats = append(val.Floats, float64(math.Float32frombits(f)))
				v = v[m:]
			}
			b = b[n:]
		case num == fieldTensorStringVal && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed string value: %w", protowire.ParseError(n))
			}
			val.Strings = append(val.Strings, string(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("tfevent: malformed tensor field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

// pluginName digs the plugin name out of a SummaryMetadata message,
// returning "" on anything unexpected since metadata is advisory.
func pluginName(b []byte) string {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return ""
		}
		b = b[n:]
		if num == fieldMetadataPluginData && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return ""
			}
			for len(v) > 0 {
				pnum, ptyp, pn := protowire.ConsumeTag(v)
				if pn < 0 {
					return ""
				}
				v = v[pn:]
				if pnum == fieldPluginName && ptyp == protowire.BytesType {
					name, nn := protowire.ConsumeBytes(v)
					if nn < 0 {
						return ""
					}
					return string(name)
				}
				pn = protowire.ConsumeFieldValue(pnum, ptyp, v)
				if pn < 0 {
					return ""
				}
				v = v[pn:]
			}
			b = b[n:]
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, b)
		if n < 0 {
			return ""
		}
		b = b[n:]
	}
	return ""
}
