package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is how long the watcher waits for a burst of
// file events to settle before reloading.
const DefaultDebounceInterval = 250 * time.Millisecond

// Watcher reloads a configuration file when it changes.
//
// The parent directory is watched rather than the file itself so that
// editors that save by rename, and Kubernetes ConfigMap symlink swaps, are
// both detected.
type Watcher struct {
	path     string
	interval time.Duration
	load     func(path string) (*Config, error)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for path. Reloads go through
// LoadConfigWithEnvOverrides.
func NewWatcher(path string, interval time.Duration, logger *slog.Logger) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounceInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		interval: interval,
		load:     LoadConfigWithEnvOverrides,
		watcher:  fw,
		logger:   logger.With("component", "config.watcher"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Watch blocks until ctx is cancelled or Stop is called. After each burst of
// changes to the file it loads the new configuration and, if it is valid,
// passes it to onChange. Errors from loading or from onChange are logged and
// the watcher keeps running.
func (w *Watcher) Watch(ctx context.Context, onChange func(*Config) error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", filepath.Dir(w.path), err)
	}

	w.logger.Info("config watcher started",
		"path", w.path,
		"debounce_ms", w.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("config watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("config watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("config file event", "path", event.Name, "op", event.Op.String())
			w.trigger(func() { w.reload(onChange) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// trigger runs fn once no further events arrive for the debounce interval.
func (w *Watcher) trigger(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.interval, func() {
		select {
		case <-w.stopCh:
		default:
			fn()
		}
	})
}

func (w *Watcher) reload(onChange func(*Config) error) {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping current configuration", "error", err)
		return
	}
	if err := onChange(cfg); err != nil {
		w.logger.Error("config reload rejected", "error", err)
		return
	}
	w.logger.Info("configuration reloaded", "limiters", len(cfg.Limiters))
}

// Stop stops the watcher and cancels any pending reload.
// It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return nil
	default:
	}
	close(w.stopCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	running := w.running
	w.mu.Unlock()

	if running {
		<-w.doneCh
	}

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}
