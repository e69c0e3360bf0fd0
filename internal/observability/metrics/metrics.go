package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead submission pipeline.
type LeadMetrics struct {
	attemptsTotal    *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	modeSwitches     prometheus.Counter
	attemptLatency   *prometheus.HistogramVec
	intakeTotal      *prometheus.CounterVec
	deadLetterTotal  *prometheus.CounterVec
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "attempts_total",
			Help:      "Webhook send attempts by transport mode and outcome",
		}, []string{"mode", "outcome"}),
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Finished lead submissions by outcome and final mode",
		}, []string{"outcome", "mode"}),
		modeSwitches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "fallback_switches_total",
			Help:      "Submissions that switched to the no-cors fallback mode",
		}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "attempt_latency_seconds",
			Help:      "Latency of single webhook send attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		intakeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "intake_requests_total",
			Help:      "Lead form posts received by the relay, by result",
		}, []string{"result"}),
		deadLetterTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "dead_letter_total",
			Help:      "Undeliverable leads handed to the dead-letter sink",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.submissionsTotal, m.modeSwitches, m.attemptLatency, m.intakeTotal, m.deadLetterTotal)
	return m
}

func (m *LeadMetrics) ObserveAttempt(mode, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(mode, outcome).Inc()
	m.attemptLatency.WithLabelValues(mode).Observe(seconds)
}

func (m *LeadMetrics) ObserveSubmission(outcome, mode string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome, mode).Inc()
}

func (m *LeadMetrics) ObserveModeSwitch() {
	if m == nil {
		return
	}
	m.modeSwitches.Inc()
}

func (m *LeadMetrics) ObserveIntake(result string) {
	if m == nil {
		return
	}
	m.intakeTotal.WithLabelValues(result).Inc()
}

func (m *LeadMetrics) ObserveDeadLetter(published bool) {
	if m == nil {
		return
	}
	status := "published"
	if !published {
		status = "failed"
	}
	m.deadLetterTotal.WithLabelValues(status).Inc()
}
