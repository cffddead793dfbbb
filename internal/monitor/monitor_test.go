package monitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/gatekeeper/internal/audit"
	"github.com/haasonsaas/gatekeeper/internal/confirm"
	"github.com/haasonsaas/gatekeeper/internal/guard"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newAuditLogger(t *testing.T) *audit.Logger {
	t.Helper()
	logger, err := audit.NewLogger(filepath.Join(t.TempDir(), "audit"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	return logger
}

func TestSweepChallenges(t *testing.T) {
	challenges := confirm.NewManager(time.Minute)
	base := time.Now()
	challenges.SetClock(func() time.Time { return base })
	challenges.Create("git_push", nil, "", 2)
	challenges.Create("git_push", nil, "", 2)

	m := New(DefaultConfig(), challenges, nil, newAuditLogger(t), nil, nil, quietLogger())

	// Nothing expired yet.
	m.sweepChallenges()
	if challenges.Len() != 2 {
		t.Fatalf("Len = %d, want 2", challenges.Len())
	}

	challenges.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	m.sweepChallenges()
	if challenges.Len() != 0 {
		t.Errorf("Len = %d, want 0", challenges.Len())
	}
}

func TestCheckMountOnlyLogsTransitions(t *testing.T) {
	auditLog := newAuditLogger(t)
	volume := guard.NewVolumeGuard("DoesNotExist")
	m := New(DefaultConfig(), confirm.NewManager(time.Minute), volume, auditLog, nil, nil, quietLogger())

	// Not mounted and never was: no entry, no file.
	m.checkMount()
	if _, err := os.Stat(auditLog.CurrentFile()); !os.IsNotExist(err) {
		t.Errorf("unexpected audit write: %v", err)
	}

	// Simulate a previously-mounted volume disappearing: state flips but
	// an unmount is not a security event.
	m.lastMounted = true
	m.checkMount()
	if m.lastMounted {
		t.Error("lastMounted not updated")
	}
	if _, err := os.Stat(auditLog.CurrentFile()); !os.IsNotExist(err) {
		t.Errorf("unmount should not write a security event: %v", err)
	}
}

func TestPruneAudit(t *testing.T) {
	store, err := audit.OpenStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := DefaultConfig()
	cfg.AuditRetention = time.Hour
	m := New(cfg, confirm.NewManager(time.Minute), nil, newAuditLogger(t), store, nil, quietLogger())

	// Prune on an empty store is a no-op, not an error.
	m.pruneAudit()
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepSchedule = "not a schedule"
	m := New(cfg, confirm.NewManager(time.Minute), nil, newAuditLogger(t), nil, nil, quietLogger())
	if err := m.Start(); err == nil {
		t.Fatal("want error for invalid schedule")
	}
}

func TestStartStop(t *testing.T) {
	m := New(DefaultConfig(), confirm.NewManager(time.Minute), nil, newAuditLogger(t), nil, nil, quietLogger())
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	m.Stop()
}

func TestSkipsEmptySchedules(t *testing.T) {
	cfg := Config{}
	m := New(cfg, confirm.NewManager(time.Minute), nil, newAuditLogger(t), nil, nil, quietLogger())
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	m.Stop()
}
