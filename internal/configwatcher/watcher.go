// Package configwatcher notifies a Registry when the configuration
// directory's JSON documents change on disk.
package configwatcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Reloader is notified once per debounced batch of filesystem events.
// It is expected to re-read whatever changed and swap its own state
// atomically; the watcher does not know or care what a "kind" is.
type Reloader interface {
	Reload()
}

// Watcher watches a single configuration directory and calls Reload
// after a debounce window following the last write to any file in it.
// Generation counting lets tests observe how many reloads actually ran.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	reloader  Reloader
	logger    *slog.Logger
	debounce  time.Duration
	dir       string

	mu         sync.Mutex
	pending    *time.Timer
	generation int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Reloader Reloader
	Logger   *slog.Logger
	// Debounce is the delay after the last observed write before Reload
	// fires. Defaults to 250ms per §4.2.
	Debounce time.Duration
}

// New creates and starts a Watcher over cfg.Dir.
func New(cfg Config) (*Watcher, error) {
	if cfg.Reloader == nil {
		return nil, fmt.Errorf("configwatcher: reloader is required")
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("configwatcher: dir is required")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("configwatcher: create watcher: %w", err)
	}

	absDir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("configwatcher: resolve dir: %w", err)
	}
	if err := fsWatcher.Add(absDir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("configwatcher: watch %s: %w", absDir, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		fsWatcher: fsWatcher,
		reloader:  cfg.Reloader,
		logger:    logger,
		debounce:  debounce,
		dir:       absDir,
		ctx:       ctx,
		cancel:    cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.scheduleReload(event.Name)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error, re-arming", "error", err, "dir", w.dir)
			if rearmErr := w.fsWatcher.Add(w.dir); rearmErr != nil {
				w.logger.Error("config watcher re-arm failed", "error", rearmErr, "dir", w.dir)
			}
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) scheduleReload(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.generation++
		w.pending = nil
		w.mu.Unlock()

		w.logger.Debug("config directory changed, reloading", "trigger", path)
		w.reloader.Reload()
	})
}

// Generation returns how many debounced reload batches have fired,
// exposed for tests that need to wait for a specific reload to land.
func (w *Watcher) Generation() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.generation
}

// Close stops the watcher and waits for its event loop to exit.
func (w *Watcher) Close() error {
	w.cancel()
	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	w.wg.Wait()
	return w.fsWatcher.Close()
}
