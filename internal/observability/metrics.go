// Package observability provides Prometheus metrics and structured logging
// for the authorization gate.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the decision pipeline:
//   - validation verdicts by result
//   - denials by violation code
//   - executions by terminal status
//   - open confirmation challenges
//
// All helpers are nil-safe so callers can run without metrics in tests.
type Metrics struct {
	// ValidationCounter counts validation passes.
	// Labels: result (allowed|denied|pending_confirmation)
	ValidationCounter *prometheus.CounterVec

	// DenialCounter counts denials by machine-readable violation code.
	// Labels: violation (action_not_found|critical_risk|...)
	DenialCounter *prometheus.CounterVec

	// ExecutionCounter counts dispatch outcomes.
	// Labels: status (success|failure|killswitch_blocked)
	ExecutionCounter *prometheus.CounterVec

	// PendingChallenges gauges confirmation challenges currently open.
	PendingChallenges prometheus.Gauge

	// SecurityEventCounter counts recorded security events.
	// Labels: event_type, severity
	SecurityEventCounter *prometheus.CounterVec
}

// NewMetrics creates metrics registered on the given registerer. Pass
// prometheus.DefaultRegisterer at startup; tests use a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ValidationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_validations_total",
				Help: "Total validation passes by verdict result",
			},
			[]string{"result"},
		),

		DenialCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_denials_total",
				Help: "Total denials by violation code",
			},
			[]string{"violation"},
		),

		ExecutionCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_executions_total",
				Help: "Total execution attempts by terminal status",
			},
			[]string{"status"},
		),

		PendingChallenges: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gatekeeper_pending_challenges",
				Help: "Confirmation challenges currently awaiting a decision",
			},
		),

		SecurityEventCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeeper_security_events_total",
				Help: "Total security events by type and severity",
			},
			[]string{"event_type", "severity"},
		),
	}
}

// RecordValidation increments the verdict counter.
func (m *Metrics) RecordValidation(result string) {
	if m == nil {
		return
	}
	m.ValidationCounter.WithLabelValues(result).Inc()
}

// RecordDenial increments the denial counter for one violation code.
func (m *Metrics) RecordDenial(violation string) {
	if m == nil {
		return
	}
	m.DenialCounter.WithLabelValues(violation).Inc()
}

// RecordExecution increments the execution counter.
func (m *Metrics) RecordExecution(status string) {
	if m == nil {
		return
	}
	m.ExecutionCounter.WithLabelValues(status).Inc()
}

// RecordSecurityEvent increments the security event counter.
func (m *Metrics) RecordSecurityEvent(eventType, severity string) {
	if m == nil {
		return
	}
	m.SecurityEventCounter.WithLabelValues(eventType, severity).Inc()
}

// ChallengeOpened bumps the pending challenge gauge.
func (m *Metrics) ChallengeOpened() {
	if m == nil {
		return
	}
	m.PendingChallenges.Inc()
}

// ChallengeClosed drops the pending challenge gauge. Called on confirm,
// expiry sweep, and failed lookup eviction.
func (m *Metrics) ChallengeClosed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PendingChallenges.Sub(float64(n))
}
