package query

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts cache behaviour per domain. A nil *Metrics records
// nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates the cache counters and registers them with reg. A nil
// reg leaves them unregistered, which is what tests use.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_query_cache_hits_total",
			Help: "Reads served from a fresh cache entry.",
		}, []string{"domain"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_query_cache_misses_total",
			Help: "Reads that needed a fetch.",
		}, []string{"domain"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_query_fetch_errors_total",
			Help: "Fetches that returned an error.",
		}, []string{"domain"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lectern_query_invalidated_entries_total",
			Help: "Cache entries marked stale by invalidation.",
		}, []string{"domain"}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.fetchErrors, m.invalidations)
	}
	return m
}

func (m *Metrics) hit(domain string) {
	if m != nil {
		m.hits.WithLabelValues(domain).Inc()
	}
}

func (m *Metrics) miss(domain string) {
	if m != nil {
		m.misses.WithLabelValues(domain).Inc()
	}
}

func (m *Metrics) fetchError(domain string) {
	if m != nil {
		m.fetchErrors.WithLabelValues(domain).Inc()
	}
}

func (m *Metrics) invalidated(domain string) {
	if m != nil {
		m.invalidations.WithLabelValues(domain).Inc()
	}
}
