package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	id             TEXT PRIMARY KEY,
	ts             INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	action         TEXT,
	agent          TEXT,
	trigger_source TEXT,
	risk_level     TEXT,
	user_confirmed INTEGER NOT NULL DEFAULT 0,
	success        INTEGER NOT NULL DEFAULT 0,
	event_type     TEXT,
	severity       TEXT,
	payload        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries(ts);
`

// Store is the SQLite-backed audit query store.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the store at path. ":memory:" works for
// tests.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertAction mirrors an action record into the store.
func (s *Store) InsertAction(rec ActionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO audit_entries
			(id, ts, kind, action, agent, trigger_source, risk_level, user_confirmed, success, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.Unix(), string(rec.Kind), rec.Action, rec.Agent,
		rec.Trigger, rec.RiskLevel, boolInt(rec.UserConfirmed), boolInt(rec.Result.Success),
		string(payload))
	return err
}

// InsertEvent mirrors a security event into the store.
func (s *Store) InsertEvent(ev SecurityEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO audit_entries
			(id, ts, kind, event_type, severity, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp.Unix(), string(ev.Kind), ev.EventType, ev.Severity,
		string(payload))
	return err
}

// Entry is one stored audit entry as returned by queries.
type Entry struct {
	ID        string
	Timestamp time.Time
	Kind      Kind
	Action    string
	Agent     string
	Trigger   string
	RiskLevel string
	Success   bool
	EventType string
	Severity  string
	Payload   string
}

// Recent returns entries newer than the cutoff, newest first.
func (s *Store) Recent(since time.Time) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, ts, kind,
			COALESCE(action, ''), COALESCE(agent, ''), COALESCE(trigger_source, ''),
			COALESCE(risk_level, ''), success,
			COALESCE(event_type, ''), COALESCE(severity, ''), payload
		FROM audit_entries
		WHERE ts >= ?
		ORDER BY ts DESC`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var success int
		var kind string
		if err := rows.Scan(&e.ID, &ts, &kind, &e.Action, &e.Agent, &e.Trigger,
			&e.RiskLevel, &success, &e.EventType, &e.Severity, &e.Payload); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		e.Kind = Kind(kind)
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Search returns recent entries whose payload contains the query,
// case-insensitive.
func (s *Store) Search(query string, since time.Time) ([]Entry, error) {
	entries, err := s.Recent(since)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)
	var matched []Entry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Payload), lower) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// StatsReport summarizes recent audit activity.
type StatsReport struct {
	TotalActions   int            `json:"total_actions"`
	ByRiskLevel    map[string]int `json:"by_risk_level"`
	ByAgent        map[string]int `json:"by_agent"`
	ByTrigger      map[string]int `json:"by_trigger"`
	SuccessRate    float64        `json:"success_rate"`
	SecurityEvents int            `json:"security_events"`
}

// Stats aggregates entries newer than the cutoff.
func (s *Store) Stats(since time.Time) (StatsReport, error) {
	entries, err := s.Recent(since)
	if err != nil {
		return StatsReport{}, err
	}

	report := StatsReport{
		ByRiskLevel: map[string]int{},
		ByAgent:     map[string]int{},
		ByTrigger:   map[string]int{},
	}
	successful := 0
	for _, e := range entries {
		if e.Kind == KindSecurityEvent {
			report.SecurityEvents++
			continue
		}
		report.TotalActions++
		if e.RiskLevel != "" {
			report.ByRiskLevel[e.RiskLevel]++
		}
		if e.Agent != "" {
			report.ByAgent[e.Agent]++
		}
		if e.Trigger != "" {
			report.ByTrigger[e.Trigger]++
		}
		if e.Success {
			successful++
		}
	}
	if report.TotalActions > 0 {
		report.SuccessRate = float64(successful) / float64(report.TotalActions) * 100
	}
	return report, nil
}

// Prune removes entries older than the retention window and returns how
// many were deleted.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM audit_entries WHERE ts < ?`,
		time.Now().Add(-olderThan).Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExportReport renders a human-readable summary of activity since the
// cutoff.
func (s *Store) ExportReport(since time.Time) (string, error) {
	entries, err := s.Recent(since)
	if err != nil {
		return "", err
	}
	stats, err := s.Stats(since)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	divider := strings.Repeat("=", 60)
	fmt.Fprintln(&b, divider)
	fmt.Fprintln(&b, "GATEKEEPER AUDIT REPORT")
	fmt.Fprintln(&b, divider)
	fmt.Fprintf(&b, "Since: %s\n", since.Format(time.RFC3339))
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().Format(time.RFC3339))

	fmt.Fprintf(&b, "Total actions: %d\n", stats.TotalActions)
	fmt.Fprintf(&b, "Success rate: %.1f%%\n", stats.SuccessRate)
	fmt.Fprintf(&b, "Security events: %d\n\n", stats.SecurityEvents)

	writeCounts(&b, "By risk level:", stats.ByRiskLevel)
	writeCounts(&b, "By agent:", stats.ByAgent)
	writeCounts(&b, "By trigger:", stats.ByTrigger)

	fmt.Fprintln(&b, "Recent entries:")
	limit := 20
	for i, e := range entries {
		if i >= limit {
			break
		}
		marker := "ok"
		if e.Kind == KindSecurityEvent {
			marker = "event:" + e.EventType
		} else if !e.Success {
			marker = "failed"
		}
		fmt.Fprintf(&b, "  %s  %-8s %-12s %s\n",
			e.Timestamp.Format(time.RFC3339), marker, e.Agent, e.Action)
	}
	fmt.Fprintln(&b, divider)
	return b.String(), nil
}

func writeCounts(b *strings.Builder, title string, counts map[string]int) {
	fmt.Fprintln(b, title)
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(b, "  %s: %d\n", key, counts[key])
	}
	fmt.Fprintln(b)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
