package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func actionRecord(action, agent string, success bool, risk int, at time.Time) ActionRecord {
	return ActionRecord{
		ID:        uuid.NewString(),
		Timestamp: at,
		Kind:      KindAction,
		Action:    action,
		Agent:     agent,
		Trigger:   "cli",
		Result:    ResultSummary{Success: success},
		RiskLevel: RiskLabel(risk),
	}
}

func TestStoreRecent(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	if err := store.InsertAction(actionRecord("git_push", "executor", true, 2, now)); err != nil {
		t.Fatal(err)
	}
	if err := store.InsertAction(actionRecord("tail_log", "executor", true, 0, now.Add(-48*time.Hour))); err != nil {
		t.Fatal(err)
	}

	entries, err := store.Recent(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "git_push" {
		t.Errorf("Recent() = %+v, want only git_push", entries)
	}
}

func TestStoreStats(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()

	store.InsertAction(actionRecord("git_push", "supervisor", true, 2, now))
	store.InsertAction(actionRecord("tail_log", "assistant", false, 0, now))
	store.InsertEvent(SecurityEvent{
		ID:        uuid.NewString(),
		Timestamp: now,
		Kind:      KindSecurityEvent,
		EventType: "blocked_action",
		Severity:  SeverityWarning,
	})

	stats, err := store.Stats(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalActions != 2 {
		t.Errorf("TotalActions = %d, want 2", stats.TotalActions)
	}
	if stats.SecurityEvents != 1 {
		t.Errorf("SecurityEvents = %d, want 1", stats.SecurityEvents)
	}
	if stats.SuccessRate != 50 {
		t.Errorf("SuccessRate = %.1f, want 50", stats.SuccessRate)
	}
	if stats.ByRiskLevel["risk_2"] != 1 || stats.ByAgent["assistant"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestStoreSearch(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	store.InsertAction(actionRecord("git_push", "executor", true, 2, now))
	store.InsertAction(actionRecord("tail_log", "executor", true, 0, now))

	matched, err := store.Search("GIT_PUSH", now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 1 || matched[0].Action != "git_push" {
		t.Errorf("Search() = %+v", matched)
	}
}

func TestStorePrune(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	store.InsertAction(actionRecord("old", "executor", true, 0, now.Add(-72*time.Hour)))
	store.InsertAction(actionRecord("new", "executor", true, 0, now))

	pruned, err := store.Prune(24 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if pruned != 1 {
		t.Errorf("Prune() = %d, want 1", pruned)
	}

	entries, err := store.Recent(now.Add(-168 * time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Action != "new" {
		t.Errorf("entries after prune = %+v", entries)
	}
}

func TestExportReport(t *testing.T) {
	store := openTestStore(t)
	now := time.Now()
	store.InsertAction(actionRecord("git_push", "executor", true, 2, now))

	report, err := store.ExportReport(now.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(report, "git_push") || !strings.Contains(report, "Total actions: 1") {
		t.Errorf("report = %s", report)
	}
}

func TestLoggerMirrorsToStore(t *testing.T) {
	store := openTestStore(t)
	logger, err := NewLogger(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.WithStore(store)

	logger.LogAction("status_overview", "executor", "cli", nil,
		ResultSummary{Success: true}, RiskLabel(0), false)

	entries, err := store.Recent(time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("store entries = %d, want 1", len(entries))
	}
}
