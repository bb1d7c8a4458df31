package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/fimine/internal/logging"
)

// DefaultDebounce is used when New is given a non-positive debounce.
const DefaultDebounce = 250 * time.Millisecond

// Handler is called with the watched path after each change.
type Handler func(path string) error

// Watcher calls a Handler when a file changes.
type Watcher struct {
	path     string
	debounce time.Duration
	handle   Handler

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	runs atomic.Int64
	errs atomic.Int64
}

// New creates a Watcher for path. The file must exist.
func New(path string, debounce time.Duration, handle Handler) (*Watcher, error) {
	if handle == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		handle:   handle,
		stopCh:   make(chan struct{}),
	}, nil
}

// Path returns the absolute watched path.
func (w *Watcher) Path() string { return w.path }

// Runs returns how often the handler has been called.
func (w *Watcher) Runs() int { return int(w.runs.Load()) }

// Errors returns how many handler calls failed.
func (w *Watcher) Errors() int { return int(w.errs.Load()) }

// Start calls the handler once and then after every change.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.fs = fw

	w.run()

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Name != w.path || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			logging.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("input changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.run()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Str("path", w.path).Msg("watch error")
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) run() {
	w.runs.Add(1)
	if err := w.handle(w.path); err != nil {
		w.errs.Add(1)
		logging.Warn().Err(err).Str("path", w.path).Msg("re-run failed")
	}
}

// Stop halts the watcher and waits for a running handler to return.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.fs != nil {
			err = w.fs.Close()
		}
	})
	return err
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return w.Stop()
}
