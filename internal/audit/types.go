// Package audit records every executed, denied, or blocked action for later
// security review. The durable write contract is one JSON Lines entry per
// terminal state, day-partitioned; an optional SQLite store mirrors entries
// for querying and reports.
package audit

import "time"

// Kind distinguishes the two entry shapes in the log.
type Kind string

const (
	KindAction        Kind = "action"
	KindSecurityEvent Kind = "security_event"
)

// Event severities for security events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ResultSummary is the condensed handler outcome stored with an action.
type ResultSummary struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActionRecord is one audited action execution attempt.
type ActionRecord struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Kind          Kind           `json:"kind"`
	Action        string         `json:"action"`
	Agent         string         `json:"agent"`
	Trigger       string         `json:"trigger"`
	Params        map[string]any `json:"params,omitempty"`
	Result        ResultSummary  `json:"result"`
	RiskLevel     string         `json:"risk_level"`
	UserConfirmed bool           `json:"user_confirmed"`
}

// SecurityEvent is one audited security occurrence: a blocked action, a
// guard match, a lockdown, suspicious input.
type SecurityEvent struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Kind        Kind           `json:"kind"`
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	Severity    string         `json:"severity"`
	Details     map[string]any `json:"details,omitempty"`
}

// RiskLabel renders a numeric tier the way entries store it.
func RiskLabel(risk int) string {
	switch risk {
	case 0:
		return "risk_0"
	case 1:
		return "risk_1"
	case 2:
		return "risk_2"
	case 3:
		return "risk_3"
	default:
		return "risk_unknown"
	}
}
