package metrics

import "github.com/prometheus/client_golang/prometheus"

// AvailabilityMetrics exposes counters/histograms for the availability engine.
type AvailabilityMetrics struct {
	computeLatency   *prometheus.HistogramVec
	reservationTotal *prometheus.CounterVec
	suggestProviders prometheus.Histogram
}

func NewAvailabilityMetrics(reg prometheus.Registerer) *AvailabilityMetrics {
	m := &AvailabilityMetrics{
		computeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "console",
			Subsystem: "availability",
			Name:      "compute_latency_seconds",
			Help:      "Latency of availability pipeline runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reservationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "console",
			Subsystem: "availability",
			Name:      "reservation_total",
			Help:      "Total reservation attempts by outcome",
		}, []string{"outcome"}),
		suggestProviders: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "console",
			Subsystem: "availability",
			Name:      "suggest_candidates",
			Help:      "Number of candidate providers evaluated per suggestion query",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.computeLatency, m.reservationTotal, m.suggestProviders)
	return m
}

func (m *AvailabilityMetrics) ObserveCompute(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.computeLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *AvailabilityMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationTotal.WithLabelValues(outcome).Inc()
}

func (m *AvailabilityMetrics) ObserveSuggestCandidates(n int) {
	if m == nil {
		return
	}
	m.suggestProviders.Observe(float64(n))
}
