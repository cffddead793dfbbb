package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestLogActionWritesJSONL(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	logger.LogAction("git_push", "executor", "cli",
		map[string]any{"repo_path": "/srv/repos/gatekeeper"},
		ResultSummary{Success: true, Message: "pushed"},
		RiskLabel(2), true)

	f, err := os.Open(logger.CurrentFile())
	if err != nil {
		t.Fatalf("audit file not written: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("audit file empty")
	}

	var rec ActionRecord
	if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
		t.Fatalf("entry not valid JSON: %v", err)
	}
	if rec.Action != "git_push" || rec.RiskLevel != "risk_2" || !rec.UserConfirmed {
		t.Errorf("record = %+v", rec)
	}
	if rec.ID == "" {
		t.Error("record missing id")
	}
	if rec.Kind != KindAction {
		t.Errorf("kind = %q, want action", rec.Kind)
	}
}

func TestLogSecurityEvent(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	logger.LogSecurityEvent("blocked_action", "run_shell_command denied",
		SeverityWarning, map[string]any{"violations": []string{"critical_risk"}})

	data, err := os.ReadFile(logger.CurrentFile())
	if err != nil {
		t.Fatal(err)
	}
	var ev SecurityEvent
	if err := json.Unmarshal(data[:len(data)-1], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.EventType != "blocked_action" || ev.Severity != SeverityWarning {
		t.Errorf("event = %+v", ev)
	}
}

func TestDayPartitionedFiles(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	logger.SetClock(func() time.Time { return day1 })
	logger.LogAction("status_overview", "executor", "cli", nil,
		ResultSummary{Success: true}, RiskLabel(0), false)
	firstFile := logger.CurrentFile()

	logger.SetClock(func() time.Time { return day1.Add(24 * time.Hour) })
	logger.LogAction("status_overview", "executor", "cli", nil,
		ResultSummary{Success: true}, RiskLabel(0), false)

	if logger.CurrentFile() == firstFile {
		t.Error("day rollover should switch the file")
	}
	if _, err := os.Stat(firstFile); err != nil {
		t.Errorf("first day file missing: %v", err)
	}
}

func TestRiskLabel(t *testing.T) {
	if RiskLabel(3) != "risk_3" {
		t.Errorf("RiskLabel(3) = %q", RiskLabel(3))
	}
	if RiskLabel(9) != "risk_unknown" {
		t.Errorf("RiskLabel(9) = %q", RiskLabel(9))
	}
}
