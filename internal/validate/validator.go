package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/haasonsaas/gatekeeper/internal/guard"
	"github.com/haasonsaas/gatekeeper/internal/policy"
	"github.com/haasonsaas/gatekeeper/internal/ratelimit"
)

// Validator runs the validation pipeline against the live policy document.
type Validator struct {
	policies *policy.Store
	rates    *ratelimit.Tracker
	detector *guard.Detector
}

// New wires a validator to its policy store, rate tracker, and guard
// detector. The tracker is shared with the executor, which records
// outcomes into it.
func New(policies *policy.Store, rates *ratelimit.Tracker, detector *guard.Detector) *Validator {
	return &Validator{
		policies: policies,
		rates:    rates,
		detector: detector,
	}
}

// Policy returns the current policy snapshot.
func (v *Validator) Policy() *policy.Document {
	return v.policies.Snapshot()
}

// Rates exposes the shared rate tracker for execution recording.
func (v *Validator) Rates() *ratelimit.Tracker {
	return v.rates
}

// Validate checks one action request. Checks short-circuit on first failure
// in a fixed order; the order decides which reason a caller sees and is
// part of the contract:
//
//  1. action existence
//  2. blocked tier (arguments never inspected)
//  3. argument schema
//  4. rate limit
//  5. resource guard (escalates to the blocked tier)
//  6. path security
//  7. confirmation requirement
//
// One policy snapshot is taken up front; a concurrent reload never yields a
// partially-merged view.
func (v *Validator) Validate(action string, args map[string]any) Verdict {
	doc := v.policies.Snapshot()

	spec := doc.Action(action)
	if spec == nil {
		return Verdict{
			Result:     ResultDenied,
			Reason:     fmt.Sprintf("action %q not defined in policy", action),
			RiskLevel:  policy.RiskBlocked,
			Violations: []string{ViolationActionNotFound},
		}
	}

	if spec.Risk == policy.RiskBlocked {
		reason := spec.DenyReason
		if reason == "" {
			reason = "action is permanently blocked"
		}
		return Verdict{
			Result:     ResultDenied,
			Reason:     reason,
			RiskLevel:  policy.RiskBlocked,
			Violations: []string{ViolationCriticalRisk},
		}
	}

	if violations := checkSchema(doc, spec, args); len(violations) > 0 {
		return Verdict{
			Result:     ResultDenied,
			Reason:     "schema validation failed: " + strings.Join(violations, ", "),
			RiskLevel:  spec.Risk,
			Violations: violations,
		}
	}

	if limit, ok := doc.EffectiveRateLimit(action); ok {
		if count := v.rates.Count(action); count >= limit {
			return Verdict{
				Result:     ResultDenied,
				Reason:     fmt.Sprintf("rate limit exceeded: %d/%d per hour", count, limit),
				RiskLevel:  spec.Risk,
				Violations: []string{ViolationRateLimit},
			}
		}
	}

	if match, ok := v.detector.Check(doc.Guard, action, args); ok {
		// Escalated to the blocked tier: a sensitive-resource match is
		// never downgraded by a low declared action risk.
		return Verdict{
			Result:     ResultDenied,
			Reason:     "resource guard: " + match.String(),
			RiskLevel:  policy.RiskBlocked,
			Violations: []string{ViolationResourceGuard},
		}
	}

	if violations := checkPaths(doc, args); len(violations) > 0 {
		return Verdict{
			Result:     ResultDenied,
			Reason:     "path security violation: " + strings.Join(violations, ", "),
			RiskLevel:  spec.Risk,
			Violations: violations,
		}
	}

	if spec.RequiresConfirm || spec.Risk == policy.RiskConfirm {
		return Verdict{
			Result:          ResultPendingConfirmation,
			Reason:          fmt.Sprintf("action requires explicit confirmation (risk %d)", spec.Risk),
			RiskLevel:       spec.Risk,
			RequiresConfirm: true,
			Pending: &Pending{
				Action:      action,
				Args:        args,
				Description: spec.Description,
			},
		}
	}

	return Verdict{
		Result:          ResultAllowed,
		Reason:          "action validated successfully",
		RiskLevel:       spec.Risk,
		RequiresConfirm: spec.Risk == policy.RiskFlagged,
	}
}

// checkSchema validates provided arguments against the compiled constraints
// and reports every violation, not just the first. Arguments not declared
// in the schema pass through unchecked; they can never downgrade the tier.
func checkSchema(doc *policy.Document, spec *policy.ActionSpec, args map[string]any) []string {
	var violations []string

	names := make([]string, 0, len(spec.Args))
	for name := range spec.Args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := spec.Args[name]
		if c.Optional {
			continue
		}
		if _, ok := args[name]; !ok {
			violations = append(violations, fmt.Sprintf("missing required argument: %s", name))
		}
	}

	provided := make([]string, 0, len(args))
	for name := range args {
		if _, ok := spec.Args[name]; ok {
			provided = append(provided, name)
		}
	}
	sort.Strings(provided)

	for _, name := range provided {
		violations = append(violations, checkConstraint(doc, name, args[name], spec.Args[name])...)
	}
	return violations
}

func checkConstraint(doc *policy.Document, name string, value any, c *policy.Constraint) []string {
	var violations []string

	switch c.Type {
	case policy.TypeString:
		s, ok := value.(string)
		if !ok {
			return []string{fmt.Sprintf("%s must be string", name)}
		}
		if c.MinLength != nil && len(s) < *c.MinLength {
			violations = append(violations, fmt.Sprintf("%s too short (min %d)", name, *c.MinLength))
		}
		if c.MaxLength != nil && len(s) > *c.MaxLength {
			violations = append(violations, fmt.Sprintf("%s too long (max %d)", name, *c.MaxLength))
		}
		if c.Pattern != nil && !c.Pattern.MatchString(s) {
			violations = append(violations, fmt.Sprintf("%s does not match pattern %s", name, c.Pattern))
		}
		if c.MustBeUnder != "" {
			roots := doc.RootPaths[c.MustBeUnder]
			if len(roots) > 0 && !underAny(s, roots) {
				violations = append(violations,
					fmt.Sprintf("%s must be under %s", name, strings.Join(roots, " or ")))
			}
		}

	case policy.TypeInteger:
		n, ok := intValue(value)
		if !ok {
			return []string{fmt.Sprintf("%s must be integer", name)}
		}
		if c.Min != nil && n < *c.Min {
			violations = append(violations, fmt.Sprintf("%s too small (min %d)", name, *c.Min))
		}
		if c.Max != nil && n > *c.Max {
			violations = append(violations, fmt.Sprintf("%s too large (max %d)", name, *c.Max))
		}

	case policy.TypeEnum:
		s, ok := value.(string)
		if !ok || !c.AllowsValue(s) {
			violations = append(violations,
				fmt.Sprintf("%s must be one of %v, got %q", name, c.Values, value))
		}

	case policy.TypeArray:
		items, ok := arrayValue(value)
		if !ok {
			return []string{fmt.Sprintf("%s must be array", name)}
		}
		if c.Items != nil && c.Items.Type == policy.TypeEnum {
			for _, item := range items {
				s, ok := item.(string)
				if !ok || !c.Items.AllowsValue(s) {
					violations = append(violations,
						fmt.Sprintf("%s contains invalid value %q", name, item))
				}
			}
		}
	}
	return violations
}

// checkPaths applies path security to every path-looking string argument:
// traversal tokens are always rejected; containment under the configured
// roots applies only when the path resolves. An unresolved path (a create
// target) passes containment, a policy choice the validator does not
// tighten on its own.
func checkPaths(doc *policy.Document, args map[string]any) []string {
	var violations []string

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	roots := doc.AllowedRoots()

	for _, name := range names {
		value, ok := args[name].(string)
		if !ok || !looksLikePath(value) {
			continue
		}

		expanded := expandHome(value)
		if hasTraversal(expanded) {
			violations = append(violations,
				fmt.Sprintf("%s contains parent-directory traversal", name))
			continue
		}

		if len(roots) == 0 {
			continue
		}
		canonical, exists := canonicalize(expanded)
		if !exists {
			continue
		}
		if !underAny(canonical, roots) {
			violations = append(violations,
				fmt.Sprintf("%s outside allowed roots: %s", name, canonical))
		}
	}
	return violations
}

func underAny(path string, roots []string) bool {
	for _, root := range roots {
		if isPathUnder(path, root) {
			return true
		}
	}
	return false
}

// intValue accepts the integer spellings different front ends produce:
// native ints from YAML, float64 from JSON decoding.
func intValue(value any) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func arrayValue(value any) ([]any, bool) {
	switch items := value.(type) {
	case []any:
		return items, true
	case []string:
		out := make([]any, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// ActionInfo returns the policy spec for an action, or nil when unknown.
func (v *Validator) ActionInfo(action string) *policy.ActionSpec {
	return v.policies.Snapshot().Action(action)
}

// ListAllowedActions lists actions below the blocked tier; a non-negative
// risk filters to that tier.
func (v *Validator) ListAllowedActions(risk int) []string {
	return v.policies.Snapshot().ListActions(risk)
}

// AllowlistValues returns a named allowlist from the current policy.
func (v *Validator) AllowlistValues(name string) []string {
	return v.policies.Snapshot().Allowlist(name)
}
