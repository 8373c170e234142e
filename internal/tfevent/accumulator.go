package tfevent

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrTagNotFound reports a query for a tag no loaded event carries.
var ErrTagNotFound = errors.New("tfevent: tag not found")

// Record is one tagged value reassembled from an event file.
type Record struct {
	Step     int64
	WallTime float64
	Floats   []float64
	Strings  []string
}

// Accumulator loads every event file in a directory and indexes the
// contained values by tag, in file order. A truncated final record is
// treated as a clean end of file, since live writers append in place;
// checksum mismatches are real corruption and fail the load.
type Accumulator struct {
	dir string

	mu      sync.RWMutex
	tensors map[string][]Record
}

// NewAccumulator prepares an accumulator over dir. Nothing is read
// until Reload.
func NewAccumulator(dir string) *Accumulator {
	return &Accumulator{dir: dir, tensors: make(map[string][]Record)}
}

// Reload re-reads the directory from scratch, replacing any previously
// loaded state. Files are parsed concurrently and merged in
// lexicographic file order, which matches creation order for the
// timestamped names writers produce.
func (a *Accumulator) Reload() error {
	files, err := filepath.Glob(filepath.Join(a.dir, "events.out.tfevents.*"))
	if err != nil {
		return fmt.Errorf("tfevent: list event files: %w", err)
	}
	sort.Strings(files)

	parsed := make([][]*Event, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			events, err := parseFile(path)
			if err != nil {
				return err
			}
			parsed[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	tensors := make(map[string][]Record)
	for _, events := range parsed {
		for _, ev := range events {
			for _, v := range ev.Values {
				tensors[v.Tag] = append(tensors[v.Tag], Record{
					Step:     ev.Step,
					WallTime: ev.WallTime,
					Floats:   v.Floats,
					Strings:  v.Strings,
				})
			}
		}
	}

	a.mu.Lock()
	a.tensors = tensors
	a.mu.Unlock()
	return nil
}

// Tags returns the sorted set of loaded tags.
func (a *Accumulator) Tags() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tags := make([]string, 0, len(a.tensors))
	for tag := range a.tensors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Tensors returns every record logged under tag, in log order.
func (a *Accumulator) Tensors(tag string) ([]Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	records, ok := a.tensors[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTagNotFound, tag)
	}
	return records, nil
}

func parseFile(path string) ([]*Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("tfevent: open event file: %w", err)
	}
	defer f.Close()

	var events []*Event
	r := bufio.NewReader(f)
	for {
		payload, err := readRecord(r)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		ev := &Event{}
		if err := ev.Unmarshal(payload); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		events = append(events, ev)
	}
}
