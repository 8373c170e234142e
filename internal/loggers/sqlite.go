package loggers

import (
	"fmt"

	"gradlog/internal/dist"
	"gradlog/internal/store"
)

// SQLiteLogger persists metrics to the run-history store under a single
// run. Like the TensorBoard backend, construction is rank-gated.
type SQLiteLogger struct {
	st    *store.Store
	runID string
}

// NewSQLiteLogger opens the history database at dbPath, registers a run
// with the given name, and returns a logger bound to it. Non-leader
// ranks get a NopLogger.
func NewSQLiteLogger(dbPath, runName string) (MetricLogger, error) {
	if !dist.IsLeader() {
		return NopLogger{}, nil
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	run, err := st.CreateRun(runName)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &SQLiteLogger{st: st, runID: run.ID}, nil
}

// RunID returns the ID of the run this logger writes to.
func (l *SQLiteLogger) RunID() string { return l.runID }

func (l *SQLiteLogger) Log(tag string, value float64, step int64) error {
	return l.st.AppendScalar(l.runID, tag, step, value, now())
}

func (l *SQLiteLogger) LogDict(metrics map[string]float64, step int64) error {
	wallTime := now()
	for tag, value := range metrics {
		if err := l.st.AppendScalar(l.runID, tag, step, value, wallTime); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLiteLogger) LogScalars(mainTag string, scalars map[string]float64, step int64, wallTime float64) error {
	for sub, value := range scalars {
		if err := l.st.AppendScalar(l.runID, fmt.Sprintf("%s/%s", mainTag, sub), step, value, wallTime); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLiteLogger) LogText(tag, text string, step int64) error {
	return l.st.AppendText(l.runID, tag, step, text, now())
}

func (l *SQLiteLogger) Close() error {
	return l.st.Close()
}
