package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// initEngineMetrics initializes decay, clustering, and search metrics.
func (m *Manager) initEngineMetrics(cfg Config) {
	m.decayComputations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decay_computations_total",
			Help: "Total number of memory lifecycle computations",
		},
		[]string{"stage"},
	)

	m.decayDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "decay_computation_duration_seconds",
			Help:    "Duration of a single lifecycle computation",
			Buckets: cfg.DecayDurationBuckets,
		},
	)

	m.decayStageChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "decay_stage_transitions_total",
			Help: "Total number of lifecycle stage transitions",
		},
		[]string{"from", "to"},
	)

	m.clusteringRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clustering_runs_total",
			Help: "Total number of full clustering passes",
		},
	)

	m.clusteringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clustering_duration_seconds",
			Help:    "Duration of a full clustering pass",
			Buckets: cfg.ClusterBuckets,
		},
	)

	m.clusterCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusters_current",
			Help: "Number of clusters in the latest clustering result",
		},
	)

	m.clusteredMemories = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clustered_memories_current",
			Help: "Number of memories in the latest clustering result",
		},
	)

	m.searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total number of search requests",
		},
		[]string{"mode"},
	)

	m.searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Search request duration in seconds",
			Buckets: cfg.SearchDurationBuckets,
		},
	)

	m.registry.MustRegister(
		m.decayComputations,
		m.decayDuration,
		m.decayStageChanges,
		m.clusteringRuns,
		m.clusteringDuration,
		m.clusterCount,
		m.clusteredMemories,
		m.searchRequests,
		m.searchDuration,
	)
}

// RecordDecayComputation records one lifecycle computation and its
// resulting stage.
func (m *Manager) RecordDecayComputation(stage string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.decayComputations.WithLabelValues(stage).Inc()
	m.decayDuration.Observe(duration.Seconds())
}

// RecordStageTransition records a lifecycle stage change.
func (m *Manager) RecordStageTransition(from, to string) {
	if !m.enabled || from == to {
		return
	}
	m.decayStageChanges.WithLabelValues(from, to).Inc()
}

// RecordClusteringRun records a full clustering pass and its output shape.
func (m *Manager) RecordClusteringRun(duration time.Duration, clusters, memories int) {
	if !m.enabled {
		return
	}
	m.clusteringRuns.Inc()
	m.clusteringDuration.Observe(duration.Seconds())
	m.clusterCount.Set(float64(clusters))
	m.clusteredMemories.Set(float64(memories))
}

// RecordSearch records a search request. Mode is sparse, dense, or hybrid.
func (m *Manager) RecordSearch(mode string, duration time.Duration) {
	if !m.enabled {
		return
	}
	m.searchRequests.WithLabelValues(mode).Inc()
	m.searchDuration.Observe(duration.Seconds())
}

// initCacheMetrics initializes cache layer metrics.
func (m *Manager) initCacheMetrics() {
	m.cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total cache operations by type and outcome",
		},
		[]string{"op", "outcome"},
	)

	m.cacheHitRate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Cache hit rate from the latest metrics snapshot",
		},
	)

	m.cacheLatencyUs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_latency_microseconds",
			Help: "Cache backend latency from the latest metrics snapshot",
		},
		[]string{"quantile"},
	)

	m.registry.MustRegister(m.cacheOps, m.cacheHitRate, m.cacheLatencyUs)
}

// RecordCacheOp records a single cache operation outcome (hit, miss, error, ok).
func (m *Manager) RecordCacheOp(op, outcome string) {
	if !m.enabled {
		return
	}
	m.cacheOps.WithLabelValues(op, outcome).Inc()
}

// PublishCacheSnapshot exports a cache metrics snapshot to Prometheus.
func (m *Manager) PublishCacheSnapshot(hitRate float64, mean, p95, p99 time.Duration) {
	if !m.enabled {
		return
	}
	m.cacheHitRate.Set(hitRate)
	m.cacheLatencyUs.WithLabelValues("mean").Set(float64(mean.Microseconds()))
	m.cacheLatencyUs.WithLabelValues("p95").Set(float64(p95.Microseconds()))
	m.cacheLatencyUs.WithLabelValues("p99").Set(float64(p99.Microseconds()))
}
