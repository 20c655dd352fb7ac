package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics records procurement dispatch outcomes per retailer.
type DispatchMetrics struct {
	duration    *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	captures    *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retailer_submission_duration_seconds",
		Help:    "Duration of retailer purchase order submissions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"retailer"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailer_submissions_total",
		Help: "Successful retailer purchase order submissions.",
	}, []string{"retailer"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "retailer_submission_failures_total",
		Help: "Failed retailer purchase order submissions.",
	}, []string{"retailer"})
	captures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_captures_total",
		Help: "Payment capture attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, submissions, failures, captures)
	return &DispatchMetrics{
		duration:    duration,
		submissions: submissions,
		failures:    failures,
		captures:    captures,
	}
}

// ObserveSubmission records the duration for the named retailer.
func (d *DispatchMetrics) ObserveSubmission(retailer string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(retailer)).Observe(duration.Seconds())
}

// IncSubmitted increments the success counter for the named retailer.
func (d *DispatchMetrics) IncSubmitted(retailer string) {
	if d == nil || d.submissions == nil {
		return
	}
	d.submissions.WithLabelValues(normalizeLabel(retailer)).Inc()
}

// IncFailed increments the failure counter for the named retailer.
func (d *DispatchMetrics) IncFailed(retailer string) {
	if d == nil || d.failures == nil {
		return
	}
	d.failures.WithLabelValues(normalizeLabel(retailer)).Inc()
}

// IncCapture increments the payment capture counter for an outcome label.
func (d *DispatchMetrics) IncCapture(outcome string) {
	if d == nil || d.captures == nil {
		return
	}
	d.captures.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
