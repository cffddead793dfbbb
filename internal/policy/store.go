package policy

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Store holds the live policy document. Reload swaps the document wholesale;
// a validation pass takes one Snapshot and never observes a partial merge.
type Store struct {
	path   string
	doc    atomic.Pointer[Document]
	logger *slog.Logger

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// NewStore loads the policy at path and returns a store bound to it.
func NewStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		logger: logger.With("component", "policy"),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStoreFromDocument wraps a pre-built document, mainly for tests and for
// callers that assemble policy in memory.
func NewStoreFromDocument(doc *Document) *Store {
	s := &Store{logger: slog.Default().With("component", "policy")}
	s.doc.Store(doc)
	return s
}

// Snapshot returns the current document. The returned document is immutable.
func (s *Store) Snapshot() *Document {
	return s.doc.Load()
}

// Replace installs a new document atomically.
func (s *Store) Replace(doc *Document) {
	s.doc.Store(doc)
}

// Reload re-reads the policy file and swaps the document in one step. A load
// failure leaves the previous document in place.
func (s *Store) Reload() error {
	doc, err := Load(s.path)
	if err != nil {
		return err
	}
	s.doc.Store(doc)
	s.logger.Info("policy loaded",
		"path", s.path,
		"actions", len(doc.Actions),
		"confirm_ttl", doc.ConfirmTTL)
	return nil
}

// StartWatching watches the policy file's directory and reloads on change.
// Editors replace files rather than writing in place, so the watch is on the
// directory and events are filtered to the policy path.
func (s *Store) StartWatching(ctx context.Context) error {
	s.watchMu.Lock()
	if s.watcher != nil {
		s.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.watchMu.Unlock()
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		s.watchMu.Unlock()
		return err
	}
	s.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	s.watchMu.Unlock()

	s.watchWg.Add(1)
	go s.watchLoop(watchCtx, watcher)
	return nil
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	s.watchMu.Lock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	watcher := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	s.watchWg.Wait()
	return nil
}

func (s *Store) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer s.watchWg.Done()

	const debounce = 250 * time.Millisecond
	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if err := s.Reload(); err != nil {
				s.logger.Warn("policy reload failed, keeping previous document", "error", err)
			}
		})
	}

	target, _ := filepath.Abs(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name, _ := filepath.Abs(event.Name)
			if name != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("policy watch error", "error", err)
		}
	}
}
