package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads Config whenever a file under ConfigDir changes, debounced
// to absorb the burst of events a single save usually produces.
type Watcher struct {
	fsw      *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration
}

// NewWatcher watches dir for changes. Callers typically pass Config.ConfigDir
// so that model_registry.json/models_installed.json edits trigger a reload.
func NewWatcher(dir string, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{fsw: fsw, logger: logger.With(zap.String("component", "config_watcher")), debounce: 200 * time.Millisecond}, nil
}

// Run blocks, invoking onReload (debounced) whenever a watched file changes,
// until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, onReload func(Config, error)) {
	var timer *time.Timer
	fire := func() {
		cfg, err := Load()
		onReload(cfg, err)
	}

	for {
		select {
		case <-ctx.Done():
			w.fsw.Close()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
