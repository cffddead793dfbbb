package observability

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordValidation("allowed")
	m.RecordValidation("allowed")
	m.RecordValidation("denied")
	m.RecordDenial("critical_risk")

	expected := `
		# HELP gatekeeper_validations_total Total validation passes by verdict result
		# TYPE gatekeeper_validations_total counter
		gatekeeper_validations_total{result="allowed"} 2
		gatekeeper_validations_total{result="denied"} 1
	`
	if err := testutil.CollectAndCompare(m.ValidationCounter, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected validation counter state: %v", err)
	}

	if got := testutil.ToFloat64(m.DenialCounter.WithLabelValues("critical_risk")); got != 1 {
		t.Errorf("denial counter = %v, want 1", got)
	}
}

func TestMetricsChallengeGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ChallengeOpened()
	m.ChallengeOpened()
	m.ChallengeClosed(1)

	if got := testutil.ToFloat64(m.PendingChallenges); got != 1 {
		t.Errorf("pending challenges = %v, want 1", got)
	}

	// Closing zero or negative is a no-op.
	m.ChallengeClosed(0)
	if got := testutil.ToFloat64(m.PendingChallenges); got != 1 {
		t.Errorf("pending challenges after no-op = %v, want 1", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics

	// None of these may panic when metrics are disabled.
	m.RecordValidation("allowed")
	m.RecordDenial("rate_limit_exceeded")
	m.RecordExecution("success")
	m.RecordSecurityEvent("blocked_action", "warning")
	m.ChallengeOpened()
	m.ChallengeClosed(1)
}
