// Package metrics holds the Prometheus collectors for the lead engine.
// All methods are safe on a nil *Metrics so services can run without them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Leads classified by tier label ("" for no tier)
	TierAssigned *prometheus.CounterVec

	// Status transitions by outcome: applied, noop, rejected, overridden
	Transitions *prometheus.CounterVec

	// Ranking fallbacks by reason: lookup_failed, timeout, no_coordinates
	GeocodeFallbacks *prometheus.CounterVec

	GeocodeLatency prometheus.Histogram

	// Realtime change events by result: applied, duplicate, stale, dropped
	RealtimeEvents *prometheus.CounterVec

	AuditWriteFailures prometheus.Counter
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TierAssigned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recruitment_lead_tier_total",
			Help: "Leads classified by tier",
		}, []string{"tier"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recruitment_lead_transitions_total",
			Help: "Lead status transition attempts by outcome",
		}, []string{"outcome"}),

		GeocodeFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recruitment_geocode_fallbacks_total",
			Help: "Site rankings that fell back to the original order",
		}, []string{"reason"}),

		GeocodeLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recruitment_geocode_duration_seconds",
			Help:    "Duration of postal code lookups",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),

		RealtimeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recruitment_realtime_events_total",
			Help: "Change stream events handled by board sessions",
		}, []string{"result"}),

		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "recruitment_audit_write_failures_total",
			Help: "Audit entries that failed to persist after a committed change",
		}),
	}
}

func (m *Metrics) IncrementTier(tier string) {
	if m != nil {
		if tier == "" {
			tier = "none"
		}
		m.TierAssigned.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncrementTransition(outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementGeocodeFallback(reason string) {
	if m != nil {
		m.GeocodeFallbacks.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveGeocodeLatency(d time.Duration) {
	if m != nil {
		m.GeocodeLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRealtime(result string) {
	if m != nil {
		m.RealtimeEvents.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementAuditFailure() {
	if m != nil {
		m.AuditWriteFailures.Inc()
	}
}
