// Package watch keeps the vector index in step with a directory by
// re-ingesting files as they are created or written and removing the
// records of deleted files.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
	"github.com/custodia-labs/askdocs/internal/core/services"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// DefaultDebounce is how long a path must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("watcher closed")

// Op is the action taken for a changed file.
type Op int

// Actions.
const (
	OpIngest Op = iota + 1
	OpRemove
)

func (o Op) String() string {
	switch o {
	case OpIngest:
		return "ingest"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is a debounced file change.
type Change struct {
	Op       Op
	Path     string
	SourceID string
}

// Reporter receives every applied change with its outcome.
type Reporter func(Change, error)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period per path.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithReporter sets the function told about applied changes.
func WithReporter(r Reporter) Option {
	return func(w *Watcher) {
		if r != nil {
			w.report = r
		}
	}
}

// Watcher mirrors a directory into the index.
type Watcher struct {
	root      string
	ingestion driving.IngestionService
	ignore    *gitignore.GitIgnore
	debounce  time.Duration
	report    Reporter

	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan Change
	closed  bool
	done    chan struct{}
}

// New creates a watcher for root. Ignore rules are read from root's
// .askdocsignore once, at creation.
func New(root string, ingestion driving.IngestionService, opts ...Option) (*Watcher, error) {
	if ingestion == nil {
		return nil, errors.New("watch: ingestion service is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path error: %s is not a directory", root)
	}

	w := &Watcher{
		root:      abs,
		ingestion: ingestion,
		ignore:    services.LoadIgnore(abs),
		debounce:  DefaultDebounce,
		report:    func(Change, error) {},
		pending:   make(map[string]*time.Timer),
		ready:     make(chan Change, 64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string {
	return w.root
}

// Run watches until ctx is cancelled or Close is called. Changes are
// applied one at a time in the order they settle. A watcher runs once.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addTree(fsw, w.root, false); err != nil {
		return err
	}
	logger.Info("Watching %s", w.root)

	defer w.stopTimers()
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleDirEvent(fsw, ev)
			if change := w.handleEvent(ev); change != nil {
				w.schedule(*change)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case change := <-w.ready:
			w.apply(ctx, change)
		}
	}
}

// Close stops Run. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	return nil
}

// handleEvent turns a file event into a change, or nil when the event is
// not interesting.
func (w *Watcher) handleEvent(ev fsnotify.Event) *Change {
	rel, ok := w.relative(ev.Name)
	if !ok || w.skipped(rel, false) || !services.IsSupportedFile(rel) {
		return nil
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return &Change{Op: OpRemove, Path: ev.Name, SourceID: rel}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &Change{Op: OpIngest, Path: ev.Name, SourceID: rel}
	default:
		return nil
	}
}

// handleDirEvent starts watching new directories and schedules the files
// already inside them.
func (w *Watcher) handleDirEvent(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.addTree(fsw, ev.Name, true); err != nil {
		logger.Warn("watch %s: %v", ev.Name, err)
	}
}

// addTree watches dir and its subdirectories. With schedule set, supported
// files found on the way are queued for ingestion.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string, schedule bool) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, ok := w.relative(path)
		if !ok {
			return nil
		}
		if d.IsDir() {
			if rel != "." && w.skipped(rel, true) {
				return filepath.SkipDir
			}
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if schedule && !w.skipped(rel, false) && services.IsSupportedFile(rel) {
			w.schedule(Change{Op: OpIngest, Path: path, SourceID: rel})
		}
		return nil
	})
}

// schedule (re)starts the quiet period for change.Path. The latest change
// for a path wins.
func (w *Watcher) schedule(change Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[change.Path]; ok {
		t.Stop()
	}
	w.pending[change.Path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, change.Path)
		w.mu.Unlock()
		select {
		case w.ready <- change:
		case <-w.done:
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) apply(ctx context.Context, change Change) {
	var err error
	switch change.Op {
	case OpIngest:
		_, err = w.ingestion.IngestPath(ctx, change.Path, change.SourceID)
	case OpRemove:
		err = w.ingestion.Remove(ctx, change.SourceID)
	}
	if err != nil {
		logger.Warn("%s %s: %v", change.Op, change.SourceID, err)
	} else {
		logger.Debug("%s %s", change.Op, change.SourceID)
	}
	w.report(change, err)
}

// relative returns path relative to the root in slash form.
func (w *Watcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// skipped reports whether rel is hidden or ignored.
func (w *Watcher) skipped(rel string, dir bool) bool {
	for part := range strings.SplitSeq(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	if w.ignore == nil {
		return false
	}
	if dir {
		return w.ignore.MatchesPath(rel + "/")
	}
	return w.ignore.MatchesPath(rel)
}
