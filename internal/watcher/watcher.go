// Package watcher implements the filesystem watcher (§4.4): a single
// native recursive watcher over the config's base directory that filters
// events through .gitignore, a dynamic write-back ignore set, and each
// subscriber's include/exclude glob sets, then delivers debounced,
// coalesced path batches to subscribers.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// DebounceInterval is the ongoing-event coalescing window (§9: "a 1s
// ongoing-event coalescing is used when the backend supports it").
const DebounceInterval = time.Second

// Subscriber receives coalesced, filtered path batches for one
// subscription.
type Subscriber interface {
	WatchEvent(paths []string)
}

type subscription struct {
	name    string
	include []string
	exclude []string
	sub     Subscriber
}

func (s subscription) matches(abs string) bool {
	rel := abs
	matched := false
	for _, pattern := range s.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// Watcher owns the native watch handle and the list of subscriptions
// (§4: "The watcher exclusively owns the native watch handle and the
// list of subscriptions").
type Watcher struct {
	root      string
	fsw       *fsnotify.Watcher
	gitignore *gitignoreMatcher
	log       logger.Logger

	mu     sync.Mutex
	subs   []*subscription
	ignore map[string]bool

	pendingMu sync.Mutex
	pending   map[string]bool
	timer     *time.Timer
	debounce  time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceInterval overrides DebounceInterval, mainly for tests.
func WithDebounceInterval(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// New creates a recursive watcher rooted at dir. It reads dir's
// .gitignore once and begins watching every non-ignored subdirectory.
func New(dir string, log logger.Logger, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher init: %w", err)
	}

	w := &Watcher{
		root:      dir,
		fsw:       fsw,
		gitignore: loadGitignore(dir),
		log:       log,
		ignore:    map[string]bool{},
		pending:   map[string]bool{},
		debounce:  DebounceInterval,
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.addRecursive(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watcher init: %w", err)
	}
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.gitignore.Ignored(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Subscribe registers a task's watch/ignore glob sets, resolved to
// absolute patterns against the watcher's root (§4.4: "build absolute
// include/exclude glob sets and register them with the watcher").
func (w *Watcher) Subscribe(name string, include, exclude []string, sub Subscriber) {
	abs := func(patterns []string) []string {
		out := make([]string, len(patterns))
		for i, p := range patterns {
			if filepath.IsAbs(p) {
				out[i] = filepath.ToSlash(p)
			} else {
				out[i] = filepath.ToSlash(filepath.Join(w.root, p))
			}
		}
		return out
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, &subscription{
		name:    name,
		include: abs(include),
		exclude: abs(exclude),
		sub:     sub,
	})
}

// IgnorePath adds path to the dynamic ignore set, implementing
// pipe.IgnoreRegistrar so pipe-file writes never loop back into a reload
// (§4.4(b), §8 invariant 6).
func (w *Watcher) IgnorePath(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignore[filepath.ToSlash(abs)] = true
}

// Run consumes native filesystem events until ctx is canceled. It MUST be
// called from a dedicated goroutine; the fsnotify callback thread itself
// only constructs events, it never runs subscriber logic directly.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn(ctx, "watcher error", "error", err)
		}
	}
}

// handleEvent filters one native event and, if it survives, schedules it
// into the debounce buffer. Kept separate from Run so it is independently
// testable without a live fsnotify backend.
func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) &&
		!ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		abs = ev.Name
	}
	abs = filepath.ToSlash(abs)

	if w.gitignore.Ignored(ev.Name) {
		return
	}

	w.mu.Lock()
	ignored := w.ignore[abs]
	w.mu.Unlock()
	if ignored {
		return
	}

	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if addErr := w.addRecursive(ev.Name); addErr != nil {
				logger.Warn(ctx, "watcher add directory failed", "path", ev.Name, "error", addErr)
			}
		}
	}

	w.schedule(ctx, abs)
}

// schedule buffers abs for the next debounce flush. The flush timer is
// armed by the first buffered event and not reset by later ones, so every
// event arriving within the debounce window after that first one is
// coalesced into the same batch.
func (w *Watcher) schedule(_ context.Context, abs string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[abs] = true
	if w.timer != nil {
		return
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = map[string]bool{}
	w.timer = nil
	w.pendingMu.Unlock()

	if len(paths) == 0 {
		return
	}

	w.mu.Lock()
	subs := append([]*subscription(nil), w.subs...)
	w.mu.Unlock()

	for _, s := range subs {
		var matched []string
		for _, p := range paths {
			if s.matches(p) {
				matched = append(matched, p)
			}
		}
		if len(matched) > 0 {
			s.sub.WatchEvent(matched)
		}
	}
}

// Close stops the native watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
