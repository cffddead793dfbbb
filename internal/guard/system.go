package guard

import (
	"context"
	"fmt"
	"time"
)

// SecurityLogger receives guard security events. Satisfied by audit.Logger.
type SecurityLogger interface {
	LogSecurityEvent(eventType, description, severity string, details map[string]any)
}

// Guard combines the deny-list detector with the volume mount guard.
type Guard struct {
	Detector *Detector
	Volume   *VolumeGuard
}

// New builds a guard for the named protected volume.
func New(volumeName string) *Guard {
	return &Guard{
		Detector: NewDetector(),
		Volume:   NewVolumeGuard(volumeName),
	}
}

// SecurityCheck is the result of a system-wide guard sweep.
type SecurityCheck struct {
	Secure         bool      `json:"secure"`
	VolumeMounted  bool      `json:"volume_mounted"`
	RecentAttempts int       `json:"recent_attempts"`
	Violations     []string  `json:"violations"`
	Timestamp      time.Time `json:"timestamp"`
}

// CheckSystemSecurity verifies the protected volume is unmounted and reports
// recent deny-rule hits.
func (g *Guard) CheckSystemSecurity() SecurityCheck {
	check := SecurityCheck{Timestamp: time.Now()}

	check.VolumeMounted = g.Volume.IsMounted()
	if check.VolumeMounted {
		check.Violations = append(check.Violations,
			fmt.Sprintf("protected volume %q is mounted", g.Volume.Name))
	}

	recent := g.Detector.RecentAttempts(time.Hour)
	check.RecentAttempts = len(recent)
	if len(recent) > 0 {
		check.Violations = append(check.Violations,
			fmt.Sprintf("%d guard-blocked attempts in the last hour", len(recent)))
	}

	check.Secure = len(check.Violations) == 0
	return check
}

// LockdownResult reports the outcome of an emergency lockdown.
type LockdownResult struct {
	Unmounted bool   `json:"unmounted"`
	Message   string `json:"message"`
}

// EmergencyLockdown force-unmounts the protected volume and writes a
// critical security event. This is the only caller of ForceUnmount.
func (g *Guard) EmergencyLockdown(ctx context.Context, sink SecurityLogger) LockdownResult {
	ok, message := g.Volume.ForceUnmount(ctx)
	result := LockdownResult{Unmounted: ok, Message: message}

	if sink != nil {
		sink.LogSecurityEvent(
			"resource_guard_lockdown",
			"emergency lockdown activated",
			"critical",
			map[string]any{
				"unmounted": ok,
				"message":   message,
				"attempts":  g.Detector.AttemptStats(),
			},
		)
	}
	return result
}
