package tfevent

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Writer appends events to a new file in an event-log directory. Files
// are named the way TensorBoard expects so any compatible accumulator
// can pick them up. Writers are exclusively owned by one caller and are
// not safe for concurrent use.
type Writer struct {
	path string
	f    *os.File
	buf  *bufio.Writer
}

// NewWriter creates the directory if needed, opens a fresh event file
// inside it, and writes the file-version preamble.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("tfevent: create log dir: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	name := fmt.Sprintf("events.out.tfevents.%d.%s.%d", time.Now().Unix(), host, os.Getpid())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("tfevent: create event file: %w", err)
	}

	w := &Writer{path: path, f: f, buf: bufio.NewWriter(f)}
	preamble := &Event{WallTime: float64(time.Now().UnixNano()) / 1e9, FileVersion: FileVersion}
	if err := w.WriteEvent(preamble); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// Path returns the event file's path.
func (w *Writer) Path() string { return w.path }

// WriteEvent frames and appends one event.
func (w *Writer) WriteEvent(ev *Event) error {
	return writeRecord(w.buf, ev.Marshal())
}

// Flush pushes buffered records to the file.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("tfevent: flush: %w", err)
	}
	return w.f.Sync()
}

// Close flushes and releases the underlying file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
