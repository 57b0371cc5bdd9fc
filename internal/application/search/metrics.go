package search

import (
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/infrastructure/monitoring/prometheus"
)

// EngineMetrics wraps the counters and histograms the fingerprint engine
// exposes to the platform's MetricsCollector. A zero-value EngineMetrics
// (nil fields) is safe to call into — every method no-ops.
type EngineMetrics struct {
	loadsTotal     prometheus.Counter
	searchesTotal  prometheus.CounterVec
	searchDuration prometheus.HistogramVec
	populationSize prometheus.Gauge
}

// searchDurationBuckets spans the range from sub-millisecond lookups (a
// handful of populated buckets) out to multi-second full-population scans.
var searchDurationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// NewEngineMetrics registers the fingerprint engine's metric series against
// collector. Passing a nil collector yields a usable no-op EngineMetrics.
func NewEngineMetrics(collector prometheus.MetricsCollector) *EngineMetrics {
	if collector == nil {
		return &EngineMetrics{}
	}
	loadsTotal := collector.RegisterCounter(
		"fingerprint_loads_total", "Total number of fingerprint population loads.")
	searchesVec := collector.RegisterCounter(
		"fingerprint_searches_total", "Total number of fingerprint similarity searches.", "outcome")
	searchDurationVec := collector.RegisterHistogram(
		"fingerprint_search_duration_seconds", "Duration of fingerprint similarity searches.",
		searchDurationBuckets)
	populationGauge := collector.RegisterGauge(
		"fingerprint_population_size", "Number of fingerprints in the currently loaded population.")

	return &EngineMetrics{
		loadsTotal:     loadsTotal.With(nil),
		searchesTotal:  searchesVec,
		searchDuration: searchDurationVec,
		populationSize: populationGauge.With(nil),
	}
}

// ObserveLoad records one completed Load call and the resulting population
// size.
func (m *EngineMetrics) ObserveLoad(populationSize int) {
	if m == nil || m.loadsTotal == nil {
		return
	}
	m.loadsTotal.Inc()
	if m.populationSize != nil {
		m.populationSize.Set(float64(populationSize))
	}
}

// ObserveSearch records one completed Search/SearchBatch call's duration and
// outcome ("ok" or "error").
func (m *EngineMetrics) ObserveSearch(duration time.Duration, err error) {
	if m == nil || m.searchesTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.searchesTotal.With(map[string]string{"outcome": outcome}).Inc()
	if m.searchDuration != nil {
		m.searchDuration.With(map[string]string{"outcome": outcome}).Observe(duration.Seconds())
	}
}
