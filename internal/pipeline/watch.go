package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/calzaplan/calzaplan/internal/config"
)

// inputFiles are the tables whose changes trigger a re-plan. The
// result file and its .bak are deliberately absent so our own writes
// do not loop.
var inputFiles = map[string]bool{
	config.OrderFile:       true,
	config.CatalogFile:     true,
	config.CalendarFile:    true,
	config.CapacitiesFile:  true,
	config.ConstraintsFile: true,
	config.ProgressFile:    true,
	config.WorkersFile:     true,
}

// Watch blocks, re-running the full pipeline whenever an input table
// changes. Events are debounced so an editor's save burst produces one
// run. Failed runs are logged and watching continues.
func (r *Runner) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(r.dir); err != nil {
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}
	r.log.Infof("watching %s", r.dir)

	r.runOnce(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if !inputFiles[name] || strings.HasPrefix(name, ".") {
				continue
			}
			r.log.Debugf("fsnotify event=%s file=%s", event.Op, name)
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Errorf("fsnotify error=%v", err)
		case <-fire:
			timer = nil
			fire = nil
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	result, err := r.Run(ctx)
	if err != nil {
		r.log.Errorf("run failed: %v", err)
		return
	}
	if err := r.Write(result); err != nil {
		r.log.Errorf("write failed: %v", err)
	}
}
