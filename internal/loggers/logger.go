// Package loggers defines the metric logging interface used by training
// loops and its backends: a TensorBoard-compatible event-file logger, a
// SQLite history logger, and a no-op logger handed to non-leader ranks
// so call sites never branch on rank.
package loggers

import "errors"

// MetricLogger records tagged values against a step counter.
type MetricLogger interface {
	// Log records one scalar under tag at step.
	Log(tag string, value float64, step int64) error
	// LogDict records every tag/value pair in metrics at the same step.
	LogDict(metrics map[string]float64, step int64) error
	// LogText records a text value under tag at step.
	LogText(tag, text string, step int64) error
	// Close flushes and releases the backend. The logger is unusable
	// afterwards.
	Close() error
}

// ScalarsLogger is implemented by backends that can group related
// scalars under a main tag with an explicit wall-clock time.
type ScalarsLogger interface {
	MetricLogger
	LogScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error
}

// NopLogger discards everything. Non-leader ranks in a distributed run
// receive one from the backend constructors, so only the designated
// process performs I/O.
type NopLogger struct{}

func (NopLogger) Log(string, float64, int64) error { return nil }
func (NopLogger) LogDict(map[string]float64, int64) error { return nil }
func (NopLogger) LogText(string, string, int64) error { return nil }
func (NopLogger) LogScalars(string, map[string]float64, int64, float64) error {
	return nil
}
func (NopLogger) Close() error { return nil }

// Tee fans every call out to each of the given loggers. Errors are
// collected rather than short-circuiting, so one failing backend does
// not starve the others.
func Tee(loggers ...MetricLogger) MetricLogger {
	return teeLogger(loggers)
}

type teeLogger []MetricLogger

func (t teeLogger) Log(tag string, value float64, step int64) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.Log(tag, value, step))
	}
	return errors.Join(errs...)
}

func (t teeLogger) LogDict(metrics map[string]float64, step int64) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.LogDict(metrics, step))
	}
	return errors.Join(errs...)
}

func (t teeLogger) LogText(tag, text string, step int64) error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.LogText(tag, text, step))
	}
	return errors.Join(errs...)
}

// LogScalars forwards to every member that supports grouped scalars.
func (t teeLogger) LogScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error {
	var errs []error
	for _, l := range t {
		if sl, ok := l.(ScalarsLogger); ok {
			errs = append(errs, sl.LogScalars(mainTag, scalars, step, wallTime))
		}
	}
	return errors.Join(errs...)
}

func (t teeLogger) Close() error {
	var errs []error
	for _, l := range t {
		errs = append(errs, l.Close())
	}
	return errors.Join(errs...)
}
