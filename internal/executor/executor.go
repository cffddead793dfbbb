package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/gatekeeper/internal/audit"
	"github.com/haasonsaas/gatekeeper/internal/confirm"
	"github.com/haasonsaas/gatekeeper/internal/killswitch"
	"github.com/haasonsaas/gatekeeper/internal/observability"
	"github.com/haasonsaas/gatekeeper/internal/validate"
)

// Result is the caller-facing outcome of an execution request. Exactly one
// of three shapes comes back: a failure (Success false, Error set), a
// confirmation request (RequiresConfirmation true, ChallengeID set), or a
// completed execution (Success true, Data set).
type Result struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	RiskLevel int    `json:"risk_level"`

	Violations []string `json:"violations,omitempty"`

	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	ChallengeID          string `json:"challenge_id,omitempty"`
	Description          string `json:"description,omitempty"`
	TTLSeconds           int    `json:"ttl_seconds,omitempty"`

	Data map[string]any `json:"data,omitempty"`
}

// Executor runs the full gate: kill switch, validation, confirmation
// workflow, handler dispatch, rate recording, and audit logging.
type Executor struct {
	validator  *validate.Validator
	challenges *confirm.Manager
	kill       *killswitch.Switch
	registry   *Registry
	audit      *audit.Logger
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// New wires an executor. metrics may be nil, everything else is required.
func New(validator *validate.Validator, challenges *confirm.Manager, kill *killswitch.Switch, registry *Registry, auditLog *audit.Logger, metrics *observability.Metrics, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		validator:  validator,
		challenges: challenges,
		kill:       kill,
		registry:   registry,
		audit:      auditLog,
		metrics:    metrics,
		logger:     logger.With("component", "executor"),
	}
}

// Registry exposes the handler registry for startup wiring.
func (e *Executor) Registry() *Registry { return e.registry }

// Execute validates an action request and, depending on the verdict, runs
// it, denies it, or parks it behind a confirmation challenge.
func (e *Executor) Execute(ctx context.Context, action string, args map[string]any, agent, trigger string) Result {
	if res, blocked := e.checkKillSwitch(action, agent); blocked {
		return res
	}

	verdict := e.validator.Validate(action, args)
	e.metrics.RecordValidation(string(verdict.Result))

	switch verdict.Result {
	case validate.ResultDenied:
		return e.deny(action, args, agent, trigger, verdict)

	case validate.ResultPendingConfirmation:
		id := e.challenges.Create(action, args, verdict.Pending.Description, verdict.RiskLevel)
		e.metrics.ChallengeOpened()
		e.logger.Info("confirmation required",
			"action", action,
			"agent", agent,
			"risk_level", verdict.RiskLevel,
			"challenge_id", id)
		return Result{
			RiskLevel:            verdict.RiskLevel,
			RequiresConfirmation: true,
			ChallengeID:          id,
			Description:          verdict.Pending.Description,
			TTLSeconds:           int(e.challenges.TTL() / time.Second),
		}
	}

	return e.dispatch(ctx, action, args, agent, trigger, verdict, false)
}

// ConfirmAndExecute consumes a confirmation challenge and runs the action
// it was created for. The challenge is spent whether or not execution
// succeeds; a second confirm with the same ID fails.
func (e *Executor) ConfirmAndExecute(ctx context.Context, challengeID, agent, trigger string) Result {
	if res, blocked := e.checkKillSwitch("confirm", agent); blocked {
		return res
	}

	ch, err := e.challenges.Confirm(challengeID)
	if err != nil {
		e.logger.Warn("challenge rejected", "challenge_id", challengeID, "error", err)
		return Result{Error: "invalid or expired challenge"}
	}
	e.metrics.ChallengeClosed(1)

	// Policy, rate limits, or guard state may have changed while the
	// challenge sat open, so the request is validated again. A fresh
	// pending verdict is treated as allowed: the user just confirmed.
	verdict := e.validator.Validate(ch.Action, ch.Args)
	e.metrics.RecordValidation(string(verdict.Result))
	if verdict.Result == validate.ResultDenied {
		return e.deny(ch.Action, ch.Args, agent, trigger, verdict)
	}

	return e.dispatch(ctx, ch.Action, ch.Args, agent, trigger, verdict, true)
}

func (e *Executor) checkKillSwitch(action, agent string) (Result, bool) {
	err := e.kill.CheckOrBlock()
	if err == nil {
		return Result{}, false
	}
	e.audit.LogSecurityEvent("killswitch_block",
		fmt.Sprintf("request %q from %s blocked by kill switch", action, agent),
		audit.SeverityWarning,
		map[string]any{"action": action, "agent": agent, "state": string(e.kill.State())})
	e.metrics.RecordExecution("killswitch_blocked")
	return Result{Error: err.Error()}, true
}

func (e *Executor) deny(action string, args map[string]any, agent, trigger string, verdict validate.Verdict) Result {
	for _, violation := range verdict.Violations {
		e.metrics.RecordDenial(violation)
	}
	e.audit.LogSecurityEvent("blocked_action",
		fmt.Sprintf("action %q denied: %s", action, verdict.Reason),
		audit.SeverityWarning,
		map[string]any{
			"action":     action,
			"agent":      agent,
			"trigger":    trigger,
			"args":       observability.RedactArgs(args),
			"violations": verdict.Violations,
		})
	e.logger.Warn("action denied",
		"action", action,
		"agent", agent,
		"reason", verdict.Reason,
		"violations", verdict.Violations)
	return Result{
		Error:      verdict.Reason,
		RiskLevel:  verdict.RiskLevel,
		Violations: verdict.Violations,
	}
}

func (e *Executor) dispatch(ctx context.Context, action string, args map[string]any, agent, trigger string, verdict validate.Verdict, userConfirmed bool) Result {
	handler, ok := e.registry.Get(action)
	if !ok {
		// Allowed by policy but nothing wired to run it. Counts against
		// the rate limit like any other failed attempt.
		return e.finish(action, args, agent, trigger, verdict, userConfirmed, nil,
			fmt.Errorf("%w: %q", ErrHandlerNotFound, action))
	}

	data, err := e.runHandler(ctx, handler, args)
	return e.finish(action, args, agent, trigger, verdict, userConfirmed, data, err)
}

// runHandler isolates handler panics so a broken handler produces a failed
// result instead of taking the process down.
func (e *Executor) runHandler(ctx context.Context, handler Handler, args map[string]any) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			data = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler(ctx, args)
}

func (e *Executor) finish(action string, args map[string]any, agent, trigger string, verdict validate.Verdict, userConfirmed bool, data map[string]any, err error) Result {
	success := err == nil
	e.validator.Rates().Record(action, success)

	summary := audit.ResultSummary{Success: success}
	if err != nil {
		summary.Error = err.Error()
	}
	e.audit.LogAction(action, agent, trigger, observability.RedactArgs(args), summary, audit.RiskLabel(verdict.RiskLevel), userConfirmed)

	if success {
		e.metrics.RecordExecution("success")
		e.logger.Info("action executed",
			"action", action,
			"agent", agent,
			"risk_level", verdict.RiskLevel,
			"user_confirmed", userConfirmed)
		return Result{
			Success:   true,
			RiskLevel: verdict.RiskLevel,
			Data:      data,
		}
	}

	e.metrics.RecordExecution("failure")
	e.logger.Error("action failed",
		"action", action,
		"agent", agent,
		"error", err)
	return Result{
		Error:     err.Error(),
		RiskLevel: verdict.RiskLevel,
	}
}
