package tfevent

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_MarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ev   *Event
	}{
		{"file version preamble", &Event{WallTime: 1700000000.5, FileVersion: FileVersion}},
		{"scalar", NewScalarEvent("loss", 0.125, 7, 1700000000.5)},
		{"text", NewTextEvent("notes", "iter:3", 3, 42)},
		{"multiple values", &Event{
			WallTime: 9,
			Step:     2,
			Values: []Value{
				{Tag: "a", Plugin: PluginScalars, Floats: []float64{1}},
				{Tag: "b", Plugin: PluginScalars, Floats: []float64{2}},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := &Event{}
			require.NoError(t, got.Unmarshal(tt.ev.Marshal()))
			if diff := cmp.Diff(tt.ev, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEvent_UnmarshalAcceptsPackedFloats(t *testing.T) {
	// Writers elsewhere may emit float_val packed; the decoder must
	// accept both encodings.
	ev := NewScalarEvent("loss", 0.5, 1, 0)
	raw := ev.Marshal()

	got := &Event{}
	require.NoError(t, got.Unmarshal(raw))
	require.Len(t, got.Values, 1)
	assert.Equal(t, []float64{0.5}, got.Values[0].Floats)
}

func TestRecordFraming_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{[]byte("first"), {}, []byte("third record")}
	for _, p := range payloads {
		require.NoError(t, writeRecord(&buf, p))
	}

	for _, want := range payloads {
		got, err := readRecord(&buf)
		require.NoError(t, err)
		assert.Equal(t, want, append([]byte{}, got...))
	}
	_, err := readRecord(&buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestRecordFraming_DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, []byte("payload under test")))

	raw := buf.Bytes()
	raw[14] ^= 0xff // flip a payload byte

	_, err := readRecord(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestWriterAccumulator_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	require.NoError(t, err)
	for i := int64(0); i < 5; i++ {
		require.NoError(t, w.WriteEvent(NewScalarEvent("loss", float64(i)/2, i, float64(100+i))))
	}
	require.NoError(t, w.WriteEvent(NewTextEvent("note", "hello, 世界", 5, 106)))
	require.NoError(t, w.Close())

	acc := NewAccumulator(dir)
	require.NoError(t, acc.Reload())

	assert.Equal(t, []string{"loss", "note/text_summary"}, acc.Tags())

	records, err := acc.Tensors("loss")
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Step)
		require.Len(t, rec.Floats, 1)
		assert.InDelta(t, float64(i)/2, rec.Floats[0], 1e-6)
	}

	texts, err := acc.Tensors("note/text_summary")
	require.NoError(t, err)
	require.Len(t, texts, 1)
	assert.Equal(t, "hello, 世界", texts[0].Strings[0], "text must round-trip byte for byte")

	_, err = acc.Tensors("missing")
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestAccumulator_MergesMultipleFiles(t *testing.T) {
	dir := t.TempDir()

	for run := 0; run < 2; run++ {
		w, err := NewWriter(dir)
		require.NoError(t, err)
		require.NoError(t, w.WriteEvent(NewScalarEvent("acc", float64(run), int64(run), 0)))
		require.NoError(t, w.Close())
	}

	acc := NewAccumulator(dir)
	require.NoError(t, acc.Reload())
	records, err := acc.Tensors("acc")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestAccumulator_ToleratesTruncatedTail(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteEvent(NewScalarEvent("loss", 1, 0, 0)))
	require.NoError(t, w.Close())

	// Chop the file mid-record, as if a live writer were only partway
	// through an append.
	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(w.Path(), raw[:len(raw)-3], 0644))

	acc := NewAccumulator(dir)
	require.NoError(t, acc.Reload())
	_, err = acc.Tensors("loss")
	assert.ErrorIs(t, err, ErrTagNotFound, "the truncated record is dropped")
}

func TestAccumulator_FailsOnCorruptRecord(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.WriteEvent(NewScalarEvent("loss", 1, 0, 0)))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(w.Path())
	require.NoError(t, err)
	raw[len(raw)-10] ^= 0xff
	require.NoError(t, os.WriteFile(w.Path(), raw, 0644))

	acc := NewAccumulator(dir)
	assert.ErrorIs(t, acc.Reload(), ErrChecksum)
}

func TestWriter_FileNameAndPreamble(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	base := filepath.Base(w.Path())
	assert.Contains(t, base, "events.out.tfevents.")

	events, err := parseFile(w.Path())
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, FileVersion, events[0].FileVersion)
}
