package guard

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/gatekeeper/internal/policy"
)

func testConfig() policy.GuardConfig {
	return policy.GuardConfig{
		Enabled:      true,
		DenyKeywords: []string{"invoice", "IBAN"},
		DenyPaths:    []string{"/srv/finance"},
		DenyApps:     []string{"Banking"},
		DenyDomains:  []string{"paypal.com"},
	}
}

func TestCheckDisabledGuardNeverMatches(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	d := NewDetector()
	if _, ok := d.Check(cfg, "create_task", map[string]any{"title": "send invoice"}); ok {
		t.Error("disabled guard matched")
	}
}

func TestCheckKeywordCaseInsensitive(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name  string
		args  map[string]any
		match bool
		rule  string
	}{
		{"plain hit", map[string]any{"title": "Send invoice to client"}, true, "invoice"},
		{"uppercase hit", map[string]any{"title": "SEND INVOICE NOW"}, true, "invoice"},
		{"rule uppercase", map[string]any{"note": "my iban is DE89"}, true, "IBAN"},
		{"nested value", map[string]any{"labels": []any{"urgent", "invoice"}}, true, "invoice"},
		{"clean", map[string]any{"title": "water the plants"}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := d.Check(testConfig(), "create_task", tt.args)
			if ok != tt.match {
				t.Fatalf("Check() match = %v, want %v", ok, tt.match)
			}
			if ok && m.Rule != tt.rule {
				t.Errorf("matched rule = %q, want %q", m.Rule, tt.rule)
			}
			if ok && m.Kind != MatchKeyword {
				t.Errorf("matched kind = %q, want keyword", m.Kind)
			}
		})
	}
}

func TestCheckPathUnresolvableFallsBackToString(t *testing.T) {
	d := NewDetector()
	// Neither path exists; the match must still fire on string containment.
	m, ok := d.Check(testConfig(), "read_file", map[string]any{
		"path": "/srv/finance/2024/q3.xlsx",
	})
	if !ok {
		t.Fatal("unresolvable deny path should match on string containment")
	}
	if m.Kind != MatchPath {
		t.Errorf("kind = %q, want path", m.Kind)
	}
}

func TestCheckPathCanonicalPrefix(t *testing.T) {
	root := t.TempDir()
	deny := filepath.Join(root, "finance")
	if err := os.MkdirAll(filepath.Join(deny, "inner"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := policy.GuardConfig{Enabled: true, DenyPaths: []string{deny}}
	d := NewDetector()

	if _, ok := d.Check(cfg, "read_file", map[string]any{
		"path": filepath.Join(deny, "inner"),
	}); !ok {
		t.Error("path under deny root should match")
	}

	outside := filepath.Join(root, "other")
	if err := os.MkdirAll(outside, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, ok := d.Check(cfg, "read_file", map[string]any{"path": outside}); ok {
		t.Error("path outside deny root matched")
	}
}

func TestCheckApp(t *testing.T) {
	d := NewDetector()

	if m, ok := d.Check(testConfig(), "open_app", map[string]any{"app_name": "My Banking App"}); !ok || m.Kind != MatchApp {
		t.Errorf("Check(app) = %v,%v, want app match", m, ok)
	}
	if _, ok := d.Check(testConfig(), "open_app", map[string]any{"app_name": "Notes"}); ok {
		t.Error("clean app matched")
	}
}

func TestCheckDomainOnlyForURLs(t *testing.T) {
	d := NewDetector()

	if m, ok := d.Check(testConfig(), "open_url", map[string]any{
		"url": "https://www.paypal.com/login",
	}); !ok || m.Kind != MatchDomain {
		t.Errorf("Check(url) = %v,%v, want domain match", m, ok)
	}

	// A bare mention without a scheme is not a URL argument.
	if _, ok := d.Check(testConfig(), "create_task", map[string]any{
		"title": "ask paypal.com support",
	}); ok {
		t.Error("non-URL argument matched domain rule")
	}
}

func TestAttemptLogAndStats(t *testing.T) {
	d := NewDetector()
	d.Check(testConfig(), "create_task", map[string]any{"title": "invoice"})
	d.Check(testConfig(), "open_app", map[string]any{"app_name": "Banking"})

	recent := d.RecentAttempts(time.Minute)
	if len(recent) != 2 {
		t.Fatalf("RecentAttempts() = %d, want 2", len(recent))
	}

	stats := d.AttemptStats()
	if stats.Total != 2 || stats.ByKind[MatchKeyword] != 1 || stats.ByKind[MatchApp] != 1 {
		t.Errorf("AttemptStats() = %+v", stats)
	}
}

func TestCheckSystemSecurity(t *testing.T) {
	g := New("Finance")
	g.Detector.Check(testConfig(), "create_task", map[string]any{"title": "invoice"})

	check := g.CheckSystemSecurity()
	if check.Secure {
		t.Error("recent attempts should make the check insecure")
	}
	if check.RecentAttempts != 1 {
		t.Errorf("RecentAttempts = %d, want 1", check.RecentAttempts)
	}
}
