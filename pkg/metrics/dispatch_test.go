package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDispatchMetrics(reg)

	m.IncSubmitted("home-supply")
	m.IncSubmitted("home-supply")
	m.IncFailed("lumberline")
	m.IncCapture("completed")
	m.ObserveSubmission("home-supply", 120*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.submissions.WithLabelValues("home-supply")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("lumberline")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.captures.WithLabelValues("completed")))
}

func TestDispatchMetricsNilSafe(t *testing.T) {
	var m *DispatchMetrics
	m.IncSubmitted("x")
	m.IncFailed("x")
	m.IncCapture("x")
	m.ObserveSubmission("x", time.Second)

	empty := NewDispatchMetrics(nil)
	empty.IncSubmitted("unlabeled")
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "unknown", normalizeLabel(""))
	assert.Equal(t, "acme", normalizeLabel("acme"))
}
