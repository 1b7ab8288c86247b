package tokenfence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file into a Registry whenever the file changes.
// An invalid file is logged and the registry keeps its previous state.
type Watcher struct {
	path     string
	registry *Registry
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// onReload, when set, is called after every reload attempt
	onReload func(error)
}

// NewWatcher prepares a watcher for path. Call Watch to start it.
func NewWatcher(path string, registry *Registry, logger *slog.Logger) (*Watcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Editors often replace the file rather than write it in place, so the
	// directory is watched instead of the file.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch path: %w", err)
	}

	return &Watcher{
		path:     abs,
		registry: registry,
		watcher:  fw,
		logger:   logger,
	}, nil
}

// Watch processes file events until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	defer w.watcher.Close()

	w.logger.Info("config watcher started", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create) != 0
}

func (w *Watcher) reload() {
	cfg, err := LoadConfigFromFile(w.path)
	if err == nil {
		err = w.registry.Apply(cfg)
	}

	if err != nil {
		w.logger.Error("config reload rejected", "path", w.path, "error", err)
	} else {
		w.logger.Info("config reloaded", "path", w.path, "limiters", len(cfg.Limiters))
	}

	if w.onReload != nil {
		w.onReload(err)
	}
}
