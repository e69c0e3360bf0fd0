package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLeadMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLeadMetrics(reg)
	m.ObserveAttempt("primary-cors", "retryable-failure", 0.2)
	m.ObserveAttempt("primary-cors", "success", 0.1)
	m.ObserveSubmission("success", "primary-cors")
	m.ObserveModeSwitch()
	m.ObserveIntake("accepted")
	m.ObserveDeadLetter(false)

	if got := testutil.ToFloat64(m.attemptsTotal.WithLabelValues("primary-cors", "success")); got != 1 {
		t.Fatalf("expected 1 successful attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.modeSwitches); got != 1 {
		t.Fatalf("expected 1 mode switch, got %v", got)
	}
	if got := testutil.ToFloat64(m.deadLetterTotal.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed dead letter, got %v", got)
	}
	if count := testutil.CollectAndCount(m.attemptLatency); count != 1 {
		t.Fatalf("expected one latency series, got %d", count)
	}
}

func TestLeadMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewLeadMetrics(nil)
	m.ObserveIntake("honeypot")
	if got := testutil.ToFloat64(m.intakeTotal.WithLabelValues("honeypot")); got != 1 {
		t.Fatalf("expected honeypot intake counted, got %v", got)
	}
}

func TestLeadMetricsNilSafe(t *testing.T) {
	var m *LeadMetrics
	m.ObserveAttempt("primary-cors", "success", 0.1)
	m.ObserveSubmission("failure", "no-cors-fallback")
	m.ObserveModeSwitch()
	m.ObserveIntake("accepted")
	m.ObserveDeadLetter(true)
}
