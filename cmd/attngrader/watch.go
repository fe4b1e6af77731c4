package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"attngrader/internal/config"
	"attngrader/internal/grader"
	"attngrader/internal/llm"
	"attngrader/internal/logging"
)

// debounceWindow absorbs the burst of write events editors emit when saving
// a notebook, so a single save triggers a single grading run.
const debounceWindow = 500 * time.Millisecond

// watchNotebook grades the notebook once, then re-grades on every change
// until the context is cancelled. The parent directory is watched rather
// than the file itself because many editors replace the file on save, which
// drops inotify watches on the old inode.
func watchNotebook(ctx context.Context, w io.Writer, cfg *config.Config, evaluator *llm.Evaluator, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	g := grader.New(cfg, evaluator)
	runOnce := func() {
		report, err := g.RunEvaluation(ctx, abs)
		if err != nil {
			fmt.Fprintf(w, "grading failed: %v\n", err)
			return
		}
		renderReport(w, report)
	}

	fmt.Fprintf(w, "Watching %s (ctrl-c to stop)\n\n", abs)
	runOnce()

	var debounce *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pending:
			runOnce()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logging.Grader("notebook changed: %s", event.Op)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.ExecutorWarn("watcher error: %v", err)
		}
	}
}
