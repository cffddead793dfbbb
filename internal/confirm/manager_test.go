package confirm

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndConfirm(t *testing.T) {
	m := NewManager(5 * time.Minute)

	args := map[string]any{"repo_path": "/srv/repos/gatekeeper"}
	id := m.Create("git_push", args, "Push commits to the remote", 2)
	if id == "" {
		t.Fatal("Create() returned empty id")
	}

	c, err := m.Confirm(id)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if c.Action != "git_push" {
		t.Errorf("Action = %q, want git_push", c.Action)
	}
	if c.Args["repo_path"] != "/srv/repos/gatekeeper" {
		t.Errorf("Args = %v", c.Args)
	}
	if c.RiskLevel != 2 {
		t.Errorf("RiskLevel = %d, want 2", c.RiskLevel)
	}
}

func TestConfirmTwiceFails(t *testing.T) {
	m := NewManager(5 * time.Minute)
	id := m.Create("git_push", nil, "", 2)

	if _, err := m.Confirm(id); err != nil {
		t.Fatalf("first Confirm() error = %v", err)
	}
	if _, err := m.Confirm(id); !errors.Is(err, ErrChallengeInvalid) {
		t.Errorf("second Confirm() error = %v, want ErrChallengeInvalid", err)
	}
}

func TestConfirmUnknownID(t *testing.T) {
	m := NewManager(5 * time.Minute)
	if _, err := m.Confirm("no-such-id"); !errors.Is(err, ErrChallengeInvalid) {
		t.Errorf("Confirm(unknown) error = %v, want ErrChallengeInvalid", err)
	}
}

func TestConfirmAfterTTLEvicts(t *testing.T) {
	m := NewManager(time.Minute)
	current := time.Now()
	m.SetClock(func() time.Time { return current })

	id := m.Create("git_push", nil, "", 2)
	current = current.Add(2 * time.Minute)

	if _, err := m.Confirm(id); !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("Confirm(expired) error = %v, want ErrChallengeExpired", err)
	}
	// Entry is evicted as part of the failed confirm.
	if m.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expired confirm", m.Len())
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	m := NewManager(time.Minute)
	id := m.Create("git_push", nil, "push", 2)

	if c := m.Peek(id); c == nil || c.Description != "push" {
		t.Fatalf("Peek() = %v", c)
	}
	if _, err := m.Confirm(id); err != nil {
		t.Errorf("Confirm() after Peek() error = %v", err)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	m := NewManager(time.Minute)
	current := time.Now()
	m.SetClock(func() time.Time { return current })

	m.Create("git_push", nil, "", 2)
	current = current.Add(2 * time.Minute)
	fresh := m.Create("restart_service", nil, "", 2)

	if removed := m.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if m.Peek(fresh) == nil {
		t.Error("Sweep() removed a live challenge")
	}
}

func TestUniqueIDs(t *testing.T) {
	m := NewManager(time.Minute)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := m.Create("git_push", nil, "", 2)
		if seen[id] {
			t.Fatalf("duplicate challenge id %q", id)
		}
		seen[id] = true
	}
}
