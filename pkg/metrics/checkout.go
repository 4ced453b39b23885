package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout and capture outcomes.
type CheckoutMetrics struct {
	checkouts       *prometheus.CounterVec
	captures        *prometheus.CounterVec
	captureDuration *prometheus.HistogramVec
	mailFailures    prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout initiations by outcome.",
	}, []string{"outcome"})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_total",
		Help: "Capture attempts by outcome.",
	}, []string{"outcome"})
	captureDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "capture_duration_seconds",
		Help:    "Duration of capture attempts in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	mailFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mail_failure_total",
		Help: "Best-effort mail sends that failed.",
	})
	reg.MustRegister(checkouts, captures, captureDuration, mailFailures)
	return &CheckoutMetrics{
		checkouts:       checkouts,
		captures:        captures,
		captureDuration: captureDuration,
		mailFailures:    mailFailures,
	}
}

// IncCheckout increments the checkout counter for the given outcome.
func (m *CheckoutMetrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCapture increments the capture counter for the given outcome.
func (m *CheckoutMetrics) IncCapture(outcome string) {
	if m == nil || m.captures == nil {
		return
	}
	m.captures.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveCaptureDuration records how long a capture attempt took.
func (m *CheckoutMetrics) ObserveCaptureDuration(outcome string, duration time.Duration) {
	if m == nil || m.captureDuration == nil {
		return
	}
	m.captureDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncMailFailure counts a swallowed mail failure.
func (m *CheckoutMetrics) IncMailFailure() {
	if m == nil || m.mailFailures == nil {
		return
	}
	m.mailFailures.Inc()
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
