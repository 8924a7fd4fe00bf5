// Package metrics exposes query and refresh statistics of the suggest service
// as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "suggestd"

// Metric names as exported on /metrics.
const (
	queriesName       = namespace + "_queries_total"
	queryDurationName = namespace + "_query_duration_seconds"
	rejectedName      = namespace + "_rejected_requests_total"
	refreshesName     = namespace + "_refresh_cycles_total"
)

// Label values.
const (
	resultHit   = "hit"
	resultEmpty = "empty"

	refreshInstalled = "installed"
	refreshUnchanged = "unchanged"
	refreshFailed    = "failed"
)

// Metrics collects query and refresh statistics on its own registry.
// All methods are safe for concurrent use.
type Metrics struct {
	startTime time.Time
	registry  *prometheus.Registry

	queries       *prometheus.CounterVec
	queryDuration prometheus.Histogram
	rejected      *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
}

// Stats is a point-in-time summary of the counters, served on /stats.
type Stats struct {
	Uptime           string           `json:"uptime"`
	Queries          int64            `json:"queries"`
	EmptyResults     int64            `json:"empty_results"`
	AvgQueryMicros   float64          `json:"avg_query_us"`
	Rejected         map[string]int64 `json:"rejected"`
	RefreshOK        int64            `json:"refresh_ok"`
	RefreshFailed    int64            `json:"refresh_failed"`
	RefreshUnchanged int64            `json:"refresh_unchanged"`
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: queriesName,
			Help: "Answered suggest queries, by whether anything matched",
		}, []string{"result"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    queryDurationName,
			Help:    "Time spent answering one suggest query",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: rejectedName,
			Help: "Rejected suggest requests, by reason",
		}, []string{"reason"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: refreshesName,
			Help: "Dataset refresh cycles, by outcome",
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.queries,
		m.queryDuration,
		m.rejected,
		m.refreshes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordQuery counts one answered query.
func (m *Metrics) RecordQuery(matches int, elapsed time.Duration) {
	result := resultHit
	if matches == 0 {
		result = resultEmpty
	}
	m.queries.WithLabelValues(result).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}

// RecordRejected counts one rejected request by reason.
func (m *Metrics) RecordRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// RecordRefresh counts one refresh cycle.
func (m *Metrics) RecordRefresh(err error, unchanged bool) {
	switch {
	case err != nil:
		m.refreshes.WithLabelValues(refreshFailed).Inc()
	case unchanged:
		m.refreshes.WithLabelValues(refreshUnchanged).Inc()
	default:
		m.refreshes.WithLabelValues(refreshInstalled).Inc()
	}
}

// Snapshot summarizes the registered collectors.
func (m *Metrics) Snapshot() Stats {
	stats := Stats{
		Uptime:   time.Since(m.startTime).Round(time.Second).String(),
		Rejected: make(map[string]int64),
	}

	// Gather reports collector errors alongside whatever it could collect.
	families, _ := m.registry.Gather()

	var querySeconds float64
	var queryCount uint64
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			label := ""
			if pairs := metric.GetLabel(); len(pairs) > 0 {
				label = pairs[0].GetValue()
			}
			value := int64(metric.GetCounter().GetValue())

			switch mf.GetName() {
			case queriesName:
				stats.Queries += value
				if label == resultEmpty {
					stats.EmptyResults = value
				}
			case rejectedName:
				stats.Rejected[label] = value
			case refreshesName:
				switch label {
				case refreshInstalled:
					stats.RefreshOK = value
				case refreshUnchanged:
					stats.RefreshUnchanged = value
				case refreshFailed:
					stats.RefreshFailed = value
				}
			case queryDurationName:
				querySeconds = metric.GetHistogram().GetSampleSum()
				queryCount = metric.GetHistogram().GetSampleCount()
			}
		}
	}
	if queryCount > 0 {
		stats.AvgQueryMicros = querySeconds / float64(queryCount) * 1e6
	}
	return stats
}
