package metrics

import "github.com/prometheus/client_golang/prometheus"

// SlotMetrics exposes counters/histograms for slot resolution.
type SlotMetrics struct {
	queriesTotal   *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	evaluatedTotal *prometheus.CounterVec
}

func NewSlotMetrics(reg prometheus.Registerer) *SlotMetrics {
	m := &SlotMetrics{
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coaching",
			Subsystem: "slots",
			Name:      "queries_total",
			Help:      "Total slot engine queries by operation and outcome",
		}, []string{"operation", "status"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coaching",
			Subsystem: "slots",
			Name:      "query_latency_seconds",
			Help:      "Latency of slot engine queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		evaluatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coaching",
			Subsystem: "slots",
			Name:      "evaluated_total",
			Help:      "Candidate slots evaluated, by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.queriesTotal, m.queryLatency, m.evaluatedTotal)
	return m
}

// ObserveQuery records one engine call. status is "ok", "not_found",
// "invalid" or "error".
func (m *SlotMetrics) ObserveQuery(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(operation, status).Inc()
	m.queryLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *SlotMetrics) ObserveEvaluated(available, blocked int) {
	if m == nil {
		return
	}
	if available > 0 {
		m.evaluatedTotal.WithLabelValues("available").Add(float64(available))
	}
	if blocked > 0 {
		m.evaluatedTotal.WithLabelValues("blocked").Add(float64(blocked))
	}
}
