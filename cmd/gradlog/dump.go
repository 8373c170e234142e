package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gradlog/internal/tfevent"
)

var followFlag bool

var dumpCmd = &cobra.Command{
	Use:   "dump <event-log-dir>",
	Short: "Print the scalar and text records in an event-log directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		acc := tfevent.NewAccumulator(dir)
		if err := acc.Reload(); err != nil {
			return err
		}
		if err := printRecords(acc); err != nil {
			return err
		}
		if !followFlag {
			return nil
		}
		return follow(dir, acc)
	},
}

func init() {
	dumpCmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "keep watching the directory and print updates")
}

func printRecords(acc *tfevent.Accumulator) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tSTEP\tWALL TIME\tVALUE")
	for _, tag := range acc.Tags() {
		records, err := acc.Tensors(tag)
		if err != nil {
			return err
		}
		for _, rec := range records {
			var value string
			switch {
			case len(rec.Strings) > 0:
				value = rec.Strings[0]
			case len(rec.Floats) > 0:
				value = fmt.Sprintf("%g", rec.Floats[0])
			}
			fmt.Fprintf(w, "%s\t%d\t%.3f\t%s\n", tag, rec.Step, rec.WallTime, value)
		}
	}
	return w.Flush()
}

// follow watches the directory and reprints on changes, debounced so a
// burst of appends produces one reload. Runs until interrupted.
func follow(dir string, acc *tfevent.Accumulator) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	const debounce = 500 * time.Millisecond
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", zap.Error(err))
		case <-pending:
			if err := acc.Reload(); err != nil {
				logger.Warn("reload failed", zap.Error(err))
				continue
			}
			if err := printRecords(acc); err != nil {
				return err
			}
		}
	}
}
