package killswitch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newSwitch(t *testing.T) *Switch {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), ".killswitch"))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewInitializesActive(t *testing.T) {
	s := newSwitch(t)
	if !s.IsActive() {
		t.Errorf("fresh switch state = %q, want active", s.State())
	}
	if err := s.CheckOrBlock(); err != nil {
		t.Errorf("CheckOrBlock() on active = %v", err)
	}
}

func TestPauseResume(t *testing.T) {
	s := newSwitch(t)

	if err := s.Pause(); err != nil {
		t.Fatal(err)
	}
	if !s.IsPaused() {
		t.Error("switch should be paused")
	}
	if err := s.CheckOrBlock(); !errors.Is(err, ErrPaused) {
		t.Errorf("CheckOrBlock() = %v, want ErrPaused", err)
	}

	if err := s.Resume(); err != nil {
		t.Fatal(err)
	}
	if !s.IsActive() {
		t.Error("switch should be active after resume")
	}
}

func TestKillIsOneWay(t *testing.T) {
	s := newSwitch(t)

	if err := s.Kill(); err != nil {
		t.Fatal(err)
	}
	if err := s.CheckOrBlock(); !errors.Is(err, ErrKilled) {
		t.Errorf("CheckOrBlock() = %v, want ErrKilled", err)
	}

	// Resume must not revive a killed switch.
	if err := s.Resume(); !errors.Is(err, ErrKilled) {
		t.Errorf("Resume() on killed = %v, want ErrKilled", err)
	}
	if !s.IsKilled() {
		t.Error("switch resumed out of killed state")
	}

	// Only the manual reset path restores active.
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if !s.IsActive() {
		t.Error("switch should be active after reset")
	}
}

func TestCrossProcessView(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".killswitch")
	first, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := first.Pause(); err != nil {
		t.Fatal(err)
	}
	if !second.IsPaused() {
		t.Error("second handle should observe the pause")
	}
}

func TestCorruptStateReadsActive(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".killswitch")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("garbage\nnot-a-time"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !s.IsActive() {
		t.Errorf("corrupt state = %q, want active", s.State())
	}
}

func TestDetectPanic(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"please STOP EVERYTHING now", true},
		{"notfall stop bitte", true},
		{"take a screenshot", false},
		{"", false},
	}
	for _, tt := range tests {
		if _, got := DetectPanic(tt.input); got != tt.want {
			t.Errorf("DetectPanic(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestHandlePanicPausesNotKills(t *testing.T) {
	s := newSwitch(t)
	if !HandlePanic("emergency stop", s) {
		t.Fatal("panic phrase not handled")
	}
	if !s.IsPaused() {
		t.Error("panic should pause")
	}
	if s.IsKilled() {
		t.Error("panic must not kill")
	}
}
