package loggers

import (
	"fmt"
	"time"

	"gradlog/internal/dist"
	"gradlog/internal/tfevent"
)

// summaryWriter is the seam between the logger adapter and the event
// codec. Tests substitute a recording fake to verify argument
// forwarding without touching the filesystem.
type summaryWriter interface {
	AddScalar(tag string, value float64, step int64, wallTime float64) error
	AddScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error
	AddText(tag, text string, step int64, wallTime float64) error
	Flush() error
	Close() error
}

// TensorBoardLogger writes metrics to an event-log directory readable
// by TensorBoard and any compatible event accumulator.
type TensorBoardLogger struct {
	path   string
	writer summaryWriter
}

// NewTensorBoardLogger binds a logger to the given directory. On
// non-leader ranks it returns a NopLogger instead, so exactly one
// process in a distributed group writes event files.
func NewTensorBoardLogger(path string) (MetricLogger, error) {
	if !dist.IsLeader() {
		return NopLogger{}, nil
	}
	w, err := tfevent.NewWriter(path)
	if err != nil {
		return nil, fmt.Errorf("loggers: open tensorboard writer: %w", err)
	}
	return &TensorBoardLogger{path: path, writer: &eventWriter{w}}, nil
}

// Path returns the directory the logger writes into.
func (l *TensorBoardLogger) Path() string { return l.path }

// Log records one scalar under tag at step.
func (l *TensorBoardLogger) Log(tag string, value float64, step int64) error {
	return l.writer.AddScalar(tag, value, step, now())
}

// LogDict records every tag/value pair at the same step.
func (l *TensorBoardLogger) LogDict(metrics map[string]float64, step int64) error {
	wallTime := now()
	for tag, value := range metrics {
		if err := l.writer.AddScalar(tag, value, step, wallTime); err != nil {
			return err
		}
	}
	return nil
}

// LogScalars records the scalars grouped under mainTag, forwarding the
// tag, mapping, step, and wall time unchanged to the summary writer.
func (l *TensorBoardLogger) LogScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error {
	return l.writer.AddScalars(mainTag, scalars, step, wallTime)
}

// LogText records a text value under tag at step.
func (l *TensorBoardLogger) LogText(tag, text string, step int64) error {
	return l.writer.AddText(tag, text, step, now())
}

// Close flushes and releases the event file.
func (l *TensorBoardLogger) Close() error {
	return l.writer.Close()
}

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// eventWriter adapts tfevent.Writer to the summaryWriter seam.
type eventWriter struct {
	w *tfevent.Writer
}

func (e *eventWriter) AddScalar(tag string, value float64, step int64, wallTime float64) error {
	return e.w.WriteEvent(tfevent.NewScalarEvent(tag, value, step, wallTime))
}

func (e *eventWriter) AddScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error {
	for sub, value := range scalars {
		if err := e.AddScalar(mainTag+"/"+sub, value, step, wallTime); err != nil {
			return err
		}
	}
	return nil
}

func (e *eventWriter) AddText(tag, text string, step int64, wallTime float64) error {
	return e.w.WriteEvent(tfevent.NewTextEvent(tag, text, step, wallTime))
}

func (e *eventWriter) Flush() error { return e.w.Flush() }
func (e *eventWriter) Close() error { return e.w.Close() }
