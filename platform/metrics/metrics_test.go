package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTier("Gold")
		m.IncrementTransition("applied")
		m.IncrementAuditFailure()
	})
}

func TestIncrementTierLabelsNoTier(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())
	m.IncrementTier("")
	m.IncrementTier("Diamond")
	m.IncrementTier("Diamond")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.TierAssigned.WithLabelValues("none")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.TierAssigned.WithLabelValues("Diamond")))
}
