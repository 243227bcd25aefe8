package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	OutcomeReserved = "reserved"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// SchedulingMetrics exposes counters/histograms for availability and reservation flows.
type SchedulingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	lockWait          prometheus.Histogram
	queryLatency      *prometheus.HistogramVec
	cacheTotal        *prometheus.CounterVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "reservation",
			Name:      "attempts_total",
			Help:      "Reservation attempts by outcome",
		}, []string{"outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "reservation",
			Name:      "scope_wait_seconds",
			Help:      "Time spent waiting for the per staff-day reservation scope",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
		}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salonbook",
			Subsystem: "availability",
			Name:      "query_seconds",
			Help:      "Latency of availability queries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salonbook",
			Subsystem: "staff_cache",
			Name:      "lookups_total",
			Help:      "Staff availability cache lookups",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.lockWait, m.queryLatency, m.cacheTotal)
	return m
}

func (m *SchedulingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveScopeWait(seconds float64) {
	if m == nil {
		return
	}
	m.lockWait.Observe(seconds)
}

func (m *SchedulingMetrics) ObserveQuery(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.queryLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheTotal.WithLabelValues(result).Inc()
}
