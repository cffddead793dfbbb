// Package monitor runs the periodic housekeeping jobs: expired challenge
// sweeps, sensitive volume mount checks, and audit retention pruning.
package monitor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/gatekeeper/internal/audit"
	"github.com/haasonsaas/gatekeeper/internal/confirm"
	"github.com/haasonsaas/gatekeeper/internal/guard"
	"github.com/haasonsaas/gatekeeper/internal/observability"
)

// Config sets the job schedules. Schedules use cron syntax, including the
// @every descriptors.
type Config struct {
	SweepSchedule      string
	MountCheckSchedule string
	PruneSchedule      string

	// AuditRetention bounds how far back the audit store keeps entries.
	AuditRetention time.Duration
}

// DefaultConfig returns the schedules used when the config file does not
// override them.
func DefaultConfig() Config {
	return Config{
		SweepSchedule:      "@every 1m",
		MountCheckSchedule: "@every 5m",
		PruneSchedule:      "@daily",
		AuditRetention:     90 * 24 * time.Hour,
	}
}

// Monitor owns the cron runner. Construct with New, then Start.
type Monitor struct {
	cfg        Config
	cron       *cron.Cron
	challenges *confirm.Manager
	volume     *guard.VolumeGuard
	audit      *audit.Logger
	store      *audit.Store
	metrics    *observability.Metrics
	logger     *slog.Logger

	lastMounted bool
}

// New builds a monitor. store and metrics may be nil; volume may be nil
// when the resource guard has no volume configured.
func New(cfg Config, challenges *confirm.Manager, volume *guard.VolumeGuard, auditLog *audit.Logger, store *audit.Store, metrics *observability.Metrics, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		cfg:        cfg,
		cron:       cron.New(),
		challenges: challenges,
		volume:     volume,
		audit:      auditLog,
		store:      store,
		metrics:    metrics,
		logger:     logger.With("component", "monitor"),
	}
}

// Start registers the jobs and begins the scheduler. Jobs with an empty
// schedule are skipped.
func (m *Monitor) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"challenge_sweep", m.cfg.SweepSchedule, m.sweepChallenges},
		{"mount_check", m.cfg.MountCheckSchedule, m.checkMount},
		{"audit_prune", m.cfg.PruneSchedule, m.pruneAudit},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if _, err := m.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.name, job.schedule, err)
		}
	}
	m.cron.Start()
	m.logger.Info("monitor started",
		"sweep", m.cfg.SweepSchedule,
		"mount_check", m.cfg.MountCheckSchedule,
		"prune", m.cfg.PruneSchedule)
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

func (m *Monitor) sweepChallenges() {
	n := m.challenges.Sweep()
	if n == 0 {
		return
	}
	m.metrics.ChallengeClosed(n)
	m.logger.Info("expired challenges swept", "count", n)
}

// checkMount records a security event when the sensitive volume appears or
// disappears. Only transitions are logged.
func (m *Monitor) checkMount() {
	if m.volume == nil {
		return
	}
	status := m.volume.Status()
	if status.Mounted == m.lastMounted {
		return
	}
	m.lastMounted = status.Mounted

	if status.Mounted {
		m.audit.LogSecurityEvent("sensitive_volume_mounted",
			fmt.Sprintf("volume %q is mounted at %s", status.VolumeName, status.MountPoint),
			audit.SeverityWarning,
			map[string]any{"volume": status.VolumeName, "mount_point": status.MountPoint})
		m.metrics.RecordSecurityEvent("sensitive_volume_mounted", audit.SeverityWarning)
		return
	}
	m.logger.Info("sensitive volume unmounted", "volume", status.VolumeName)
}

func (m *Monitor) pruneAudit() {
	if m.store == nil {
		return
	}
	pruned, err := m.store.Prune(m.cfg.AuditRetention)
	if err != nil {
		m.logger.Error("audit prune failed", "error", err)
		return
	}
	if pruned > 0 {
		m.logger.Info("audit entries pruned", "count", pruned, "retention", m.cfg.AuditRetention)
	}
}
