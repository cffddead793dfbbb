// Package main provides the CLI entry point for the gatekeeper authorization
// gate.
//
// handlers.go contains the RunE handler functions for all CLI commands.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/gatekeeper/internal/audit"
	"github.com/haasonsaas/gatekeeper/internal/config"
	"github.com/haasonsaas/gatekeeper/internal/confirm"
	"github.com/haasonsaas/gatekeeper/internal/executor"
	"github.com/haasonsaas/gatekeeper/internal/guard"
	"github.com/haasonsaas/gatekeeper/internal/killswitch"
	"github.com/haasonsaas/gatekeeper/internal/monitor"
	"github.com/haasonsaas/gatekeeper/internal/observability"
	"github.com/haasonsaas/gatekeeper/internal/policy"
	"github.com/haasonsaas/gatekeeper/internal/ratelimit"
	"github.com/haasonsaas/gatekeeper/internal/validate"
)

// =============================================================================
// Shared Wiring
// =============================================================================

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist. An explicitly configured path must exist.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && configPath == defaultConfigPath() {
		return config.Default(), nil
	}
	return nil, err
}

// gate bundles the fully wired components used by execute, confirm,
// validate, policy, and serve.
type gate struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *policy.Store
	guard      *guard.Guard
	validator  *validate.Validator
	challenges *confirm.Manager
	kill       *killswitch.Switch
	auditLog   *audit.Logger
	auditStore *audit.Store
	exec       *executor.Executor
}

// openGate wires every component from the config and the policy document.
// metrics may be nil for one-shot commands.
func openGate(metrics *observability.Metrics) (*gate, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	store, err := policy.NewStore(cfg.PolicyPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	doc := store.Snapshot()

	volumeName := cfg.Guard.VolumeName
	if volumeName == "" {
		volumeName = doc.Guard.VolumeName
	}
	g := guard.New(volumeName)

	kill, err := killswitch.New(cfg.KillSwitchPath())
	if err != nil {
		return nil, fmt.Errorf("kill switch: %w", err)
	}

	auditLog, err := audit.NewLogger(cfg.Audit.Dir, logger)
	if err != nil {
		return nil, err
	}
	auditStore, err := audit.OpenStore(cfg.Audit.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	auditLog = auditLog.WithStore(auditStore)

	validator := validate.New(store, ratelimit.NewTracker(), g.Detector)
	challenges := confirm.NewManager(doc.ConfirmTTL)
	exec := executor.New(validator, challenges, kill, executor.NewRegistry(), auditLog, metrics, logger)

	gk := &gate{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		guard:      g,
		validator:  validator,
		challenges: challenges,
		kill:       kill,
		auditLog:   auditLog,
		auditStore: auditStore,
		exec:       exec,
	}
	gk.registerBuiltins()
	return gk, nil
}

func (g *gate) close() {
	g.store.Close()
	g.auditStore.Close()
}

// registerBuiltins wires the handlers this binary can serve itself. These
// are introspection actions; anything touching the outside world comes from
// the program embedding the gate.
func (g *gate) registerBuiltins() {
	g.exec.Registry().Register("status_overview", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		status := g.kill.GetStatus()
		return map[string]any{
			"killswitch":         string(status.State),
			"pending_challenges": g.challenges.Len(),
			"allowed_actions":    len(g.validator.ListAllowedActions(-1)),
			"volume_mounted":     g.guard.Volume.IsMounted(),
		}, nil
	})
	g.exec.Registry().Register("list_actions", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		return map[string]any{"actions": g.validator.ListAllowedActions(-1)}, nil
	})
}

// printJSON writes indented JSON to stdout for both humans and scripts.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseArgs(argsJSON string) (map[string]any, error) {
	if strings.TrimSpace(argsJSON) == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return nil, fmt.Errorf("parse --args: %w", err)
	}
	return args, nil
}

// =============================================================================
// Serve Command Handler
// =============================================================================

func runServe(ctx context.Context, configPath string, debug bool) error {
	if debug {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	var metrics *observability.Metrics
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	g, err := openGate(metrics)
	if err != nil {
		return err
	}
	defer g.close()

	slog.Info("starting gatekeeper",
		"version", version,
		"commit", commit,
		"policy", g.cfg.PolicyPath,
		"debug", debug,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := g.store.StartWatching(ctx); err != nil {
		return fmt.Errorf("watch policy: %w", err)
	}

	monitorCfg := monitor.Config{
		SweepSchedule:      g.cfg.Monitor.SweepSchedule,
		MountCheckSchedule: g.cfg.Monitor.MountCheckSchedule,
		PruneSchedule:      g.cfg.Monitor.PruneSchedule,
		AuditRetention:     g.cfg.AuditRetention(),
	}
	mon := monitor.New(monitorCfg, g.challenges, g.guard.Volume, g.auditLog, g.auditStore, metrics, g.logger)
	if err := mon.Start(); err != nil {
		return err
	}
	defer mon.Stop()

	var metricsSrv *http.Server
	if g.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: g.cfg.Metrics.Listen, Handler: mux}
		go func() {
			slog.Info("metrics listening", "addr", g.cfg.Metrics.Listen)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown", "error", err)
		}
	}
	return nil
}

// =============================================================================
// Execute / Confirm / Validate Handlers
// =============================================================================

func runExecute(ctx context.Context, action, argsJSON, agent, trigger string, yes bool) error {
	args, err := parseArgs(argsJSON)
	if err != nil {
		return err
	}

	g, err := openGate(nil)
	if err != nil {
		return err
	}
	defer g.close()

	result := g.exec.Execute(ctx, action, args, agent, trigger)
	if result.RequiresConfirmation {
		if !yes && !promptConfirm(result.Description, result.TTLSeconds) {
			fmt.Println("aborted")
			return nil
		}
		result = g.exec.ConfirmAndExecute(ctx, result.ChallengeID, agent, trigger)
	}
	return printJSON(result)
}

// promptConfirm asks on the terminal whether a risky action should run.
func promptConfirm(description string, ttlSeconds int) bool {
	if description == "" {
		description = "this action"
	}
	fmt.Printf("Confirm %s (expires in %ds) [y/N]: ", description, ttlSeconds)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func runConfirm(ctx context.Context, challengeID, agent, trigger string) error {
	g, err := openGate(nil)
	if err != nil {
		return err
	}
	defer g.close()

	return printJSON(g.exec.ConfirmAndExecute(ctx, challengeID, agent, trigger))
}

func runValidate(action, argsJSON string) error {
	args, err := parseArgs(argsJSON)
	if err != nil {
		return err
	}

	g, err := openGate(nil)
	if err != nil {
		return err
	}
	defer g.close()

	verdict := g.validator.Validate(action, args)
	out := map[string]any{
		"result":     string(verdict.Result),
		"risk_level": verdict.RiskLevel,
	}
	if verdict.Reason != "" {
		out["reason"] = verdict.Reason
	}
	if len(verdict.Violations) > 0 {
		out["violations"] = verdict.Violations
	}
	if verdict.RequiresConfirm {
		out["requires_confirmation"] = true
	}
	return printJSON(out)
}

// =============================================================================
// Policy Handlers
// =============================================================================

func runPolicyCheck() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	doc, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("policy check failed: %w", err)
	}
	fmt.Printf("policy OK: %d actions, %d allowlists, confirm TTL %s\n",
		len(doc.Actions), len(doc.Allowlists), doc.ConfirmTTL)
	return nil
}

func runPolicyActions(risk int) error {
	g, err := openGate(nil)
	if err != nil {
		return err
	}
	defer g.close()

	doc := g.store.Snapshot()
	for _, name := range doc.ListActions(risk) {
		spec := doc.Action(name)
		line := fmt.Sprintf("%-24s risk %d", name, spec.Risk)
		if spec.Description != "" {
			line += "  " + spec.Description
		}
		fmt.Println(line)
	}
	return nil
}

func runPolicyShow(action string) error {
	g, err := openGate(nil)
	if err != nil {
		return err
	}
	defer g.close()

	doc := g.store.Snapshot()
	spec := doc.Action(action)
	if spec == nil {
		return fmt.Errorf("unknown action %q", action)
	}

	out := map[string]any{
		"action":     action,
		"risk_level": spec.Risk,
	}
	if spec.Description != "" {
		out["description"] = spec.Description
	}
	if spec.DenyReason != "" {
		out["deny_reason"] = spec.DenyReason
	}
	if spec.RequiresConfirm {
		out["requires_confirm"] = true
	}
	if limit, ok := doc.EffectiveRateLimit(action); ok {
		out["rate_limit_per_hour"] = limit
	}
	if len(spec.Args) > 0 {
		schema := map[string]any{}
		for name, c := range spec.Args {
			schema[name] = map[string]any{
				"type":     string(c.Type),
				"optional": c.Optional,
			}
		}
		out["args_schema"] = schema
	}
	return printJSON(out)
}

// =============================================================================
// Kill Switch Handlers
// =============================================================================

func openKillSwitch() (*killswitch.Switch, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return killswitch.New(cfg.KillSwitchPath())
}

func runKillSwitchStatus() error {
	kill, err := openKillSwitch()
	if err != nil {
		return err
	}
	return printJSON(kill.GetStatus())
}

func runKillSwitchSet(op string) error {
	kill, err := openKillSwitch()
	if err != nil {
		return err
	}

	switch op {
	case "pause":
		err = kill.Pause()
	case "resume":
		err = kill.Resume()
	case "kill":
		err = kill.Kill()
	case "reset":
		err = kill.Reset()
	default:
		return fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		return err
	}
	fmt.Printf("kill switch: %s\n", kill.State())
	return nil
}

func runKillSwitchScan(text string) error {
	kill, err := openKillSwitch()
	if err != nil {
		return err
	}

	phrase, ok := killswitch.DetectPanic(text)
	if !ok {
		fmt.Println("no panic phrase detected")
		return nil
	}
	if err := kill.Pause(); err != nil {
		return err
	}
	fmt.Printf("panic phrase %q detected, execution paused\n", phrase)
	return nil
}

// =============================================================================
// Guard Handlers
// =============================================================================

func openGuard() (*guard.Guard, *audit.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	volumeName := cfg.Guard.VolumeName
	if volumeName == "" {
		// Best effort: the policy document names the volume when present.
		if doc, err := policy.Load(cfg.PolicyPath); err == nil {
			volumeName = doc.Guard.VolumeName
		}
	}

	auditLog, err := audit.NewLogger(cfg.Audit.Dir, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	return guard.New(volumeName), auditLog, nil
}

func runGuardStatus() error {
	g, _, err := openGuard()
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"check":    g.CheckSystemSecurity(),
		"volume":   g.Volume.Status(),
		"attempts": g.Detector.AttemptStats(),
	})
}

func runGuardLockdown(ctx context.Context) error {
	g, auditLog, err := openGuard()
	if err != nil {
		return err
	}
	return printJSON(g.EmergencyLockdown(ctx, auditLog))
}

// =============================================================================
// Audit Handlers
// =============================================================================

func openAuditStore() (*audit.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return audit.OpenStore(cfg.Audit.SQLitePath)
}

func parseSince(since string) (time.Time, error) {
	d, err := time.ParseDuration(since)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --since: %w", err)
	}
	return time.Now().Add(-d), nil
}

func runAuditRecent(since string) error {
	cutoff, err := parseSince(since)
	if err != nil {
		return err
	}
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Recent(cutoff)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func runAuditSearch(query, since string) error {
	cutoff, err := parseSince(since)
	if err != nil {
		return err
	}
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.Search(query, cutoff)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func printEntries(entries []audit.Entry) {
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}
	for _, e := range entries {
		ts := e.Timestamp.Format(time.RFC3339)
		if e.Kind == audit.KindSecurityEvent {
			fmt.Printf("%s  [%s] %s (%s)\n", ts, e.Kind, e.EventType, e.Severity)
			continue
		}
		outcome := "ok"
		if !e.Success {
			outcome = "failed"
		}
		fmt.Printf("%s  [%s] %s agent=%s trigger=%s %s %s\n",
			ts, e.Kind, e.Action, e.Agent, e.Trigger, e.RiskLevel, outcome)
	}
}

func runAuditReport(since string) error {
	cutoff, err := parseSince(since)
	if err != nil {
		return err
	}
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := store.ExportReport(cutoff)
	if err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}
