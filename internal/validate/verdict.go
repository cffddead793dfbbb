// Package validate implements the deterministic policy validation pipeline.
// A verdict is a pure function of the action request, the loaded policy
// document, and current rate/guard state; validation itself has no side
// effects beyond read-only rate inspection.
package validate

// Result tags the verdict variant.
type Result string

const (
	ResultAllowed             Result = "allowed"
	ResultDenied              Result = "denied"
	ResultPendingConfirmation Result = "pending_confirmation"
)

// Machine-readable violation codes. Schema and path failures carry
// free-form messages alongside these fixed codes.
const (
	ViolationActionNotFound = "action_not_found"
	ViolationCriticalRisk   = "critical_risk"
	ViolationRateLimit      = "rate_limit_exceeded"
	ViolationResourceGuard  = "resource_guard_blocked"
)

// Pending carries the data needed to build a confirmation challenge. Only
// present on PendingConfirmation verdicts.
type Pending struct {
	Action      string
	Args        map[string]any
	Description string
}

// Verdict is the outcome of one validation pass. It is created fresh per
// call and never mutated after return. Violations is populated only for
// Denied; Pending only for PendingConfirmation.
type Verdict struct {
	Result    Result
	Reason    string
	RiskLevel int

	// RequiresConfirm is informational on Allowed verdicts for tier-1
	// actions (lightweight confirmation handled by the caller).
	RequiresConfirm bool

	Violations []string
	Pending    *Pending
}

// Denied reports whether the verdict blocks execution outright.
func (v Verdict) Denied() bool { return v.Result == ResultDenied }
