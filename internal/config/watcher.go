package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher watches the config file and reloads it on change.
type Watcher struct {
	onReload func(*Config, error)
	fsw      *fsnotify.Watcher
	done     chan struct{}
	path     string
	debounce time.Duration
	reloads  atomic.Uint32
	closed   atomic.Bool
}

// NewWatcher starts watching path; onReload receives every reload result.
// The parent directory is watched so that editors replacing the file are seen.
func NewWatcher(path string, onReload func(*Config, error)) (*Watcher, error) {
	return newWatcher(path, onReload, defaultDebounce)
}

func newWatcher(path string, onReload func(*Config, error), debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create file watcher: %w", err)
	}

	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: failed to watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     filepath.Clean(path),
		onReload: onReload,
		fsw:      fsw,
		done:     make(chan struct{}),
		debounce: debounce,
	}

	go w.watch()

	return w, nil
}

// watch watches for configuration changes.
func (w *Watcher) watch() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}

			slog.Error("Config watcher error", "error", err)
		}
	}
}

// reload reloads the config file.
func (w *Watcher) reload() {
	if w.closed.Load() {
		return
	}

	count := w.reloads.Add(1)
	slog.Info("Reloading config file", "path", w.path, "count", count)

	cfg, err := Load(w.path)
	if err != nil {
		slog.Error("Failed to reload config", "path", w.path, "error", err)
		w.onReload(nil, err)
		return
	}

	slog.Info("Config reloaded successfully", "count", count)
	w.onReload(cfg, nil)
}

// Close stops watching. Pending debounced reloads are dropped.
func (w *Watcher) Close() error {
	if w.closed.Swap(true) {
		return nil
	}

	err := w.fsw.Close()
	<-w.done
	return err
}
