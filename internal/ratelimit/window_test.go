package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestTracker_CountEmpty(t *testing.T) {
	tracker := NewTracker()
	if got := tracker.Count("take_screenshot"); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestTracker_RecordAndCount(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 5; i++ {
		tracker.Record("take_screenshot", true)
	}
	tracker.Record("create_task", false)

	if got := tracker.Count("take_screenshot"); got != 5 {
		t.Errorf("Count(take_screenshot) = %d, want 5", got)
	}
	if got := tracker.Count("create_task"); got != 1 {
		t.Errorf("Count(create_task) = %d, want 1", got)
	}
}

func TestTracker_PrunesOutsideWindow(t *testing.T) {
	tracker := NewTracker()
	current := time.Now()
	tracker.SetClock(func() time.Time { return current })

	tracker.Record("tail_log", true)
	tracker.Record("tail_log", true)

	// Advance past the rolling window; old entries no longer count.
	current = current.Add(Window + time.Minute)
	tracker.Record("tail_log", true)

	if got := tracker.Count("tail_log"); got != 1 {
		t.Errorf("Count() after window = %d, want 1", got)
	}
}

func TestTracker_BoundsHistory(t *testing.T) {
	tracker := NewTracker()
	for i := 0; i < maxEntries+200; i++ {
		tracker.Record("status_overview", true)
	}
	if got := tracker.Count("status_overview"); got != maxEntries {
		t.Errorf("Count() = %d, want %d", got, maxEntries)
	}
}

func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker()
	tracker.Record("git_push", true)
	tracker.Reset("git_push")
	if got := tracker.Count("git_push"); got != 0 {
		t.Errorf("Count() after reset = %d, want 0", got)
	}
}

func TestTracker_ConcurrentActions(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			action := fmt.Sprintf("action_%d", n%4)
			for j := 0; j < 100; j++ {
				tracker.Record(action, true)
				tracker.Count(action)
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < 4; i++ {
		total += tracker.Count(fmt.Sprintf("action_%d", i))
	}
	if total != 800 {
		t.Errorf("total recorded = %d, want 800", total)
	}
}
