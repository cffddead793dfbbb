// Package policy defines the declarative action policy document: every known
// action, its risk tier, argument constraints, rate limits, and the global
// allow/deny lists consulted by the validator.
package policy

import (
	"fmt"
	"sort"
	"time"
)

// Risk tiers for actions. The tier decides how an otherwise-valid request is
// handled: auto-execute, flag, confirm, or permanently deny.
const (
	RiskAuto    = 0 // execute immediately
	RiskFlagged = 1 // execute immediately, flagged for lightweight confirmation
	RiskConfirm = 2 // requires an explicit confirmation challenge
	RiskBlocked = 3 // permanently denied, arguments never inspected
)

// ActionSpec describes a single gated action.
type ActionSpec struct {
	// Risk is the declared tier (0..3).
	Risk int

	// Description is shown to the user when confirmation is requested.
	Description string

	// DenyReason is the reason returned for RiskBlocked actions.
	DenyReason string

	// RequiresConfirm forces the confirmation workflow regardless of tier.
	RequiresConfirm bool

	// RateLimit is the per-hour execution cap. Nil means the document-level
	// fallback map is consulted; absent there too means unlimited.
	RateLimit *int

	// Args holds the compiled constraint for each declared argument.
	Args map[string]*Constraint
}

// GuardConfig is the sensitive-resource guard section of the document.
type GuardConfig struct {
	Enabled      bool
	DenyKeywords []string
	DenyPaths    []string
	DenyApps     []string
	DenyDomains  []string

	// VolumeName names the protected volume checked by the mount guard.
	VolumeName string
}

// Document is one loaded, immutable policy. A reload replaces the whole
// document; nothing mutates it after Load returns.
type Document struct {
	Allowlists map[string][]string
	RootPaths  map[string][]string
	Guard      GuardConfig
	Actions    map[string]*ActionSpec
	RateLimits map[string]int
	ConfirmTTL time.Duration
}

// Action returns the spec for name, or nil if the document does not know it.
func (d *Document) Action(name string) *ActionSpec {
	return d.Actions[name]
}

// EffectiveRateLimit resolves the per-hour cap for an action, falling back to
// the document-level rate_limits map. The second return is false when no
// limit applies.
func (d *Document) EffectiveRateLimit(name string) (int, bool) {
	spec := d.Actions[name]
	if spec != nil && spec.RateLimit != nil {
		return *spec.RateLimit, true
	}
	if limit, ok := d.RateLimits[name]; ok {
		return limit, true
	}
	return 0, false
}

// Allowlist returns the named allowlist, or nil when not configured.
func (d *Document) Allowlist(name string) []string {
	return d.Allowlists[name]
}

// AllowedRoots flattens every configured containment root, in deterministic
// order, for path containment checks.
func (d *Document) AllowedRoots() []string {
	keys := make([]string, 0, len(d.RootPaths))
	for key := range d.RootPaths {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var roots []string
	for _, key := range keys {
		roots = append(roots, d.RootPaths[key]...)
	}
	return roots
}

// ListActions returns the names of all actions below RiskBlocked, sorted.
// Passing a non-negative tier filters to exactly that tier (including 3).
func (d *Document) ListActions(risk int) []string {
	var names []string
	for name, spec := range d.Actions {
		if risk >= 0 {
			if spec.Risk == risk {
				names = append(names, name)
			}
			continue
		}
		if spec.Risk < RiskBlocked {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// validate checks document-level consistency after compilation.
func (d *Document) validate() error {
	for name, spec := range d.Actions {
		if spec.Risk < RiskAuto || spec.Risk > RiskBlocked {
			return fmt.Errorf("action %q: risk %d out of range", name, spec.Risk)
		}
		for argName, c := range spec.Args {
			if err := c.validate(); err != nil {
				return fmt.Errorf("action %q argument %q: %w", name, argName, err)
			}
		}
	}
	return nil
}
