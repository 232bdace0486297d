// Package watch reports changed source files under a project root, coalescing
// bursts of filesystem events into one callback.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jward/arbor/internal/project"
)

// DefaultDebounce is how long the watcher waits for events to settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher watches a directory tree and calls OnChange with the files that
// changed once events have been quiet for the debounce delay.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	onChange  func([]string)

	debounce time.Duration
	match    func(path string) bool
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	wg      sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before changes are reported.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithFilter restricts reported files to those match accepts.
func WithFilter(match func(path string) bool) Option {
	return func(w *Watcher) {
		w.match = match
	}
}

// WithOnError sets the callback for watcher errors. Errors are logged when
// it is not set.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a Watcher on every non-skipped directory under root.
func New(root string, onChange func([]string), opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		root:      abs,
		fsWatcher: fsWatcher,
		onChange:  onChange,
		debounce:  DefaultDebounce,
		match:     func(string) bool { return true },
		logger:    slog.Default(),
		pending:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addTree(abs); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch: add directories: %w", err)
	}
	return w, nil
}

// addTree adds dir and its subdirectories to the watch list.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && project.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Run handles events until ctx is done, then stops the watcher. Pending
// changes that have not been reported yet are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.reportError(err)
		}
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	if w.timer != nil && w.timer.Stop() {
		w.wg.Done()
	}
	w.timer = nil
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.fsWatcher.Close(); err != nil {
		w.reportError(err)
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if project.SkipDir(filepath.Base(event.Name)) {
				return
			}
			if err := w.addTree(event.Name); err != nil {
				w.reportError(fmt.Errorf("watch: add %s: %w", event.Name, err))
			}
			return
		}
	}
	if !w.match(event.Name) {
		return
	}

	w.logger.Debug("file changed", "path", event.Name, "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		if !w.timer.Stop() {
			// Already fired; that flush calls wg.Done itself.
			w.timer = nil
		} else {
			w.wg.Done()
		}
	}
	w.wg.Add(1)
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush reports the pending files, sorted.
func (w *Watcher) flush() {
	defer w.wg.Done()

	w.mu.Lock()
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(files) == 0 {
		return
	}
	slices.Sort(files)
	w.onChange(files)
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
		return
	}
	w.logger.Warn("watch error", "error", err)
}
