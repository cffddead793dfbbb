// Package killswitch provides the durable, process-external flag that can
// veto all execution independent of per-action policy. State lives in a
// small file so the daemon, CLI, and UI front ends observe a consistent
// view without sharing a process.
package killswitch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// State is the tri-state switch value.
type State string

const (
	StateActive State = "active"
	StatePaused State = "paused"
	StateKilled State = "killed"
)

var (
	// ErrPaused signals a recoverable block: operations resume after a
	// resume call.
	ErrPaused = errors.New("operations paused by kill switch")

	// ErrKilled signals a hard stop. Only a manual reset returns the
	// switch to active.
	ErrKilled = errors.New("system killed, manual reset required")
)

// Switch reads and writes the durable state file. Reads go to disk every
// time; another process may have flipped the state.
type Switch struct {
	path string
}

// New returns a switch backed by the given state file, creating it as
// active when absent.
func New(path string) (*Switch, error) {
	s := &Switch{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("killswitch dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.write(StateActive); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// write persists state and timestamp as the two-line record shared with
// other front ends.
func (s *Switch) write(state State) error {
	record := fmt.Sprintf("%s\n%s", state, time.Now().Format(time.RFC3339))
	if err := os.WriteFile(s.path, []byte(record), 0o644); err != nil {
		return fmt.Errorf("killswitch write: %w", err)
	}
	return nil
}

// read returns the persisted state. Unreadable or corrupt state reads as
// active; see the design notes for the fail-open tradeoff.
func (s *Switch) read() (State, time.Time) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return StateActive, time.Now()
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	state := State(strings.TrimSpace(lines[0]))
	switch state {
	case StateActive, StatePaused, StateKilled:
	default:
		return StateActive, time.Now()
	}

	at := time.Now()
	if len(lines) > 1 {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
			at = parsed
		}
	}
	return state, at
}

// State returns the current persisted state.
func (s *Switch) State() State {
	state, _ := s.read()
	return state
}

// IsActive reports whether operations may run.
func (s *Switch) IsActive() bool { return s.State() == StateActive }

// IsPaused reports whether operations are temporarily suspended.
func (s *Switch) IsPaused() bool { return s.State() == StatePaused }

// IsKilled reports whether the switch was tripped permanently.
func (s *Switch) IsKilled() bool { return s.State() == StateKilled }

// Pause suspends operations. Reversible via Resume.
func (s *Switch) Pause() error { return s.write(StatePaused) }

// Resume returns a paused switch to active. Resuming a killed switch is not
// permitted; that requires Reset.
func (s *Switch) Resume() error {
	if s.IsKilled() {
		return ErrKilled
	}
	return s.write(StateActive)
}

// Kill trips the switch permanently. One-way: only Reset restores active.
func (s *Switch) Kill() error { return s.write(StateKilled) }

// Reset returns the switch to active. Exposed only through the manual
// reset path, never through the normal execution API.
func (s *Switch) Reset() error { return s.write(StateActive) }

// Status is a point-in-time snapshot of the switch.
type Status struct {
	State State     `json:"state"`
	Since time.Time `json:"since"`
}

// GetStatus returns the current state and when it was entered.
func (s *Switch) GetStatus() Status {
	state, at := s.read()
	return Status{State: state, Since: at}
}

// CheckOrBlock is the precondition gate callers invoke before the executor.
// Killed returns ErrKilled (callers treat it as fatal); paused returns
// ErrPaused (recoverable); active returns nil.
func (s *Switch) CheckOrBlock() error {
	switch s.State() {
	case StateKilled:
		return ErrKilled
	case StatePaused:
		return ErrPaused
	}
	return nil
}
