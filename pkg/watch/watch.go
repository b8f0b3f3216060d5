// Package watch reports changed documents in a directory tree so they can
// be rewritten again.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/praetorian-inc/securelink/pkg/enum"
	"github.com/rs/zerolog"
)

const (
	// DefaultDebounce is how long changes are collected before they are
	// reported.
	DefaultDebounce = 500 * time.Millisecond

	eventChannelBuffer = 500
)

// Op is the kind of change.
type Op string

const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Event is a debounced document change.
type Event struct {
	Path string // absolute path
	Rel  string // path relative to the root, slash separated
	Op   Op
}

// Watcher watches a document tree.
type Watcher struct {
	root     string
	filter   *enum.Filter
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   zerolog.Logger

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events  chan Event
	dropped atomic.Int64
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher for the documents cfg selects.
func New(cfg enum.Config, opts ...Option) (*Watcher, error) {
	filter, err := enum.NewFilter(cfg)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:     cfg.Root,
		filter:   filter,
		debounce: DefaultDebounce,
		fsw:      fsw,
		logger:   zerolog.Nop(),
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan Event, eventChannelBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Events returns the channel of debounced changes. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start adds watches below the root and processes events until ctx is done
// or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	w.seed()
	go w.loop(ctx)

	w.logger.Info().
		Str("root", w.root).
		Dur("debounce", w.debounce).
		Msg("watching documents")
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// Remember records content as the current state of path. A later change
// event whose content hashes the same is suppressed, so writing a rewritten
// document back does not trigger another rewrite.
func (w *Watcher) Remember(path string, content []byte) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash(content)
}

// Dropped returns the number of events dropped because the channel was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.filter.SkipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("failed to watch directory")
		}
		return nil
	})
}

// seed hashes the documents that exist before watching starts so their
// first change is reported as a modification.
func (w *Watcher) seed() {
	_ = filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if w.filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.filter.Match(path) {
			return nil
		}
		if content, err := os.ReadFile(path); err == nil {
			w.Remember(path, content)
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.filter.SkipDir(ev.Name) {
				if err := w.addRecursive(ev.Name); err != nil {
					w.logger.Warn().Err(err).Str("path", ev.Name).Msg("failed to watch new directory")
				}
			}
			return
		}
	}
	if !w.filter.Match(ev.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pending[ev.Name] |= ev.Op
	w.pendingMu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path := range batch {
		if ctx.Err() != nil {
			return
		}

		rel, _ := filepath.Rel(w.root, path)
		ev := Event{Path: path, Rel: filepath.ToSlash(rel)}

		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				w.hashMu.Lock()
				delete(w.hashes, path)
				w.hashMu.Unlock()
				ev.Op = OpDelete
				w.send(ev)
			} else {
				w.logger.Warn().Err(err).Str("path", path).Msg("failed to read changed document")
			}
			continue
		}

		sum := hash(content)
		w.hashMu.Lock()
		old, known := w.hashes[path]
		w.hashes[path] = sum
		w.hashMu.Unlock()
		if known && old == sum {
			continue
		}

		if !known {
			ev.Op = OpCreate
		} else {
			ev.Op = OpModify
		}
		w.send(ev)
	}
}

func (w *Watcher) send(ev Event) {
	select {
	case w.events <- ev:
	default:
		n := w.dropped.Add(1)
		w.logger.Warn().Str("path", ev.Rel).Int64("total_dropped", n).Msg("event channel full, dropping event")
	}
}

func hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
