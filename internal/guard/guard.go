// Package guard implements the layered sensitive-resource guard: deny
// matching on keywords, paths, apps, and domains in action arguments, plus
// an OS-level check that the protected volume stays unmounted. A match from
// any layer escalates the request to the blocked risk tier regardless of
// the action's declared tier.
package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/gatekeeper/internal/policy"
)

// MatchKind identifies which matcher layer fired.
type MatchKind string

const (
	MatchKeyword MatchKind = "keyword"
	MatchPath    MatchKind = "path"
	MatchApp     MatchKind = "app"
	MatchDomain  MatchKind = "domain"
)

// Match describes one deny-rule hit.
type Match struct {
	Kind  MatchKind
	Rule  string
	Value string
}

func (m Match) String() string {
	return fmt.Sprintf("%s rule %q matched %q", m.Kind, m.Rule, m.Value)
}

// Attempt is one recorded deny-rule hit, kept for the security log.
type Attempt struct {
	At    time.Time `json:"at"`
	Kind  MatchKind `json:"kind"`
	Rule  string    `json:"rule"`
	Value string    `json:"value"`
}

// maxAttempts bounds the in-memory attempt log.
const maxAttempts = 1000

// Detector matches action arguments against the configured deny lists and
// records every hit.
type Detector struct {
	mu       sync.Mutex
	attempts []Attempt
}

// NewDetector returns an empty detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Check runs the four matcher layers against an action's arguments in a
// fixed order: keyword, path, app, domain. The first hit wins. A disabled
// guard never matches.
func (d *Detector) Check(cfg policy.GuardConfig, action string, args map[string]any) (Match, bool) {
	if !cfg.Enabled {
		return Match{}, false
	}

	if m, ok := d.checkKeywords(cfg, args); ok {
		return m, true
	}
	if m, ok := d.checkPaths(cfg, args); ok {
		return m, true
	}
	if m, ok := d.checkApp(cfg, args); ok {
		return m, true
	}
	if m, ok := d.checkDomains(cfg, args); ok {
		return m, true
	}
	return Match{}, false
}

// checkKeywords does a case-insensitive substring match of each deny keyword
// against the serialized argument set.
func (d *Detector) checkKeywords(cfg policy.GuardConfig, args map[string]any) (Match, bool) {
	serialized := strings.ToLower(serializeArgs(args))
	for _, keyword := range cfg.DenyKeywords {
		if strings.Contains(serialized, strings.ToLower(keyword)) {
			return d.record(MatchKeyword, keyword, serialized), true
		}
	}
	return Match{}, false
}

// checkPaths compares every string argument against the deny paths. Resolved
// paths match on canonical prefix; an unresolvable path falls back to a
// string-level containment check rather than being skipped.
func (d *Detector) checkPaths(cfg policy.GuardConfig, args map[string]any) (Match, bool) {
	for _, value := range stringArgs(args) {
		argExpanded := expandHome(value)
		for _, denyPath := range cfg.DenyPaths {
			denyExpanded := expandHome(denyPath)

			denyCanonical, denyErr := filepath.EvalSymlinks(denyExpanded)
			argCanonical, argErr := filepath.EvalSymlinks(argExpanded)
			if denyErr == nil && argErr == nil {
				if strings.HasPrefix(argCanonical, denyCanonical) {
					return d.record(MatchPath, denyPath, value), true
				}
				continue
			}

			if strings.Contains(argExpanded, denyExpanded) {
				return d.record(MatchPath, denyPath, value), true
			}
		}
	}
	return Match{}, false
}

// checkApp matches the app_name argument, when present, against deny apps.
func (d *Detector) checkApp(cfg policy.GuardConfig, args map[string]any) (Match, bool) {
	appName, ok := args["app_name"].(string)
	if !ok || appName == "" {
		return Match{}, false
	}
	lower := strings.ToLower(appName)
	for _, denyApp := range cfg.DenyApps {
		if strings.Contains(lower, strings.ToLower(denyApp)) {
			return d.record(MatchApp, denyApp, appName), true
		}
	}
	return Match{}, false
}

// checkDomains matches any URL-looking argument against deny domains.
func (d *Detector) checkDomains(cfg policy.GuardConfig, args map[string]any) (Match, bool) {
	for _, value := range stringArgs(args) {
		if !strings.Contains(value, "http://") && !strings.Contains(value, "https://") {
			continue
		}
		lower := strings.ToLower(value)
		for _, denyDomain := range cfg.DenyDomains {
			if strings.Contains(lower, strings.ToLower(denyDomain)) {
				return d.record(MatchDomain, denyDomain, value), true
			}
		}
	}
	return Match{}, false
}

func (d *Detector) record(kind MatchKind, rule, value string) Match {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, Attempt{
		At:    time.Now(),
		Kind:  kind,
		Rule:  rule,
		Value: value,
	})
	if len(d.attempts) > maxAttempts {
		d.attempts = append(d.attempts[:0], d.attempts[len(d.attempts)-maxAttempts:]...)
	}
	return Match{Kind: kind, Rule: rule, Value: value}
}

// RecentAttempts returns the attempts recorded within the given window.
func (d *Detector) RecentAttempts(window time.Duration) []Attempt {
	cutoff := time.Now().Add(-window)
	d.mu.Lock()
	defer d.mu.Unlock()

	var recent []Attempt
	for _, a := range d.attempts {
		if a.At.After(cutoff) {
			recent = append(recent, a)
		}
	}
	return recent
}

// Stats summarizes recorded attempts.
type Stats struct {
	Total     int               `json:"total"`
	ByKind    map[MatchKind]int `json:"by_kind"`
	Recent24h int               `json:"recent_24h"`
}

// AttemptStats returns aggregate counts of recorded attempts.
func (d *Detector) AttemptStats() Stats {
	recent := len(d.RecentAttempts(24 * time.Hour))

	d.mu.Lock()
	defer d.mu.Unlock()
	stats := Stats{
		Total:     len(d.attempts),
		ByKind:    map[MatchKind]int{},
		Recent24h: recent,
	}
	for _, a := range d.attempts {
		stats.ByKind[a.Kind]++
	}
	return stats
}

// serializeArgs renders the argument set deterministically for keyword
// matching. Map iteration order must not change match results.
func serializeArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%v ", key, args[key])
	}
	return b.String()
}

// stringArgs collects string argument values, including string elements of
// array arguments, in deterministic order.
func stringArgs(args map[string]any) []string {
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var values []string
	for _, key := range keys {
		switch v := args[key].(type) {
		case string:
			values = append(values, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					values = append(values, s)
				}
			}
		case []string:
			values = append(values, v...)
		}
	}
	return values
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
