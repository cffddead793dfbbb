// Package ratelimit tracks per-action execution counts over a rolling
// one-hour window for policy rate enforcement.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the rolling interval that rate limits apply to.
const Window = time.Hour

// maxEntries bounds the per-action history so an unbounded caller cannot
// grow memory; oldest entries are dropped first.
const maxEntries = 1000

// Entry records one execution outcome.
type Entry struct {
	At      time.Time
	Success bool
}

// window holds one action's recent executions behind its own lock, so
// different actions never contend.
type window struct {
	mu      sync.Mutex
	entries []Entry
}

// prune drops entries older than the rolling window (must hold w.mu).
func (w *window) prune(now time.Time) {
	cutoff := now.Add(-Window)
	keep := w.entries[:0]
	for _, e := range w.entries {
		if e.At.After(cutoff) {
			keep = append(keep, e)
		}
	}
	w.entries = keep
}

// Tracker keeps a sliding window per action name.
type Tracker struct {
	mu      sync.RWMutex
	windows map[string]*window

	// now is swappable for tests.
	now func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// getWindow returns or creates the window for an action.
func (t *Tracker) getWindow(action string) *window {
	t.mu.RLock()
	w, ok := t.windows[action]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[action]; ok {
		return w
	}
	w = &window{}
	t.windows[action] = w
	return w
}

// Count returns how many executions of action fall inside the rolling
// window, pruning stale entries as a side effect. Counting does not consume
// anything; validation stays idempotent.
func (t *Tracker) Count(action string) int {
	w := t.getWindow(action)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(t.now())
	return len(w.entries)
}

// Record appends an execution outcome for rate accounting.
func (t *Tracker) Record(action string, success bool) {
	w := t.getWindow(action)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, Entry{At: t.now(), Success: success})
	if len(w.entries) > maxEntries {
		w.entries = append(w.entries[:0], w.entries[len(w.entries)-maxEntries:]...)
	}
}

// Reset clears the window for one action.
func (t *Tracker) Reset(action string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, action)
}

// SetClock overrides the time source, for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
}
