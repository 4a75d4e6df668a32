package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// latencyWindow bounds the latency sample used for percentiles.
const latencyWindow = 1000

// OpRecorder receives per-operation outcomes, letting an external metrics
// registry mirror the cache counters.
type OpRecorder interface {
	RecordCacheOp(op, outcome string)
}

// Metrics tracks cache operation counters and a bounded latency window.
// Counters are atomic; the latency ring has its own mutex so metric reads
// never contend with the counter hot path.
type Metrics struct {
	gets      atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	getErrors atomic.Int64
	setErrors atomic.Int64

	// recorder must be attached before the cache serves traffic.
	recorder OpRecorder

	mu        sync.Mutex
	latencies []time.Duration
	next      int
}

// NewMetrics creates empty metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		latencies: make([]time.Duration, 0, latencyWindow),
	}
}

// SetRecorder attaches an external per-operation recorder. Call once at
// startup, before the cache handles requests.
func (m *Metrics) SetRecorder(r OpRecorder) {
	m.recorder = r
}

func (m *Metrics) emit(op, outcome string) {
	if m.recorder != nil {
		m.recorder.RecordCacheOp(op, outcome)
	}
}

func (m *Metrics) recordHit() {
	m.gets.Add(1)
	m.hits.Add(1)
	m.emit("get", "hit")
}

func (m *Metrics) recordMiss() {
	m.gets.Add(1)
	m.misses.Add(1)
	m.emit("get", "miss")
}

func (m *Metrics) recordSet() {
	m.sets.Add(1)
	m.emit("set", "ok")
}

func (m *Metrics) recordSets(n int) {
	m.sets.Add(int64(n))
	for i := 0; i < n; i++ {
		m.emit("set", "ok")
	}
}

func (m *Metrics) recordDelete() {
	m.deletes.Add(1)
	m.emit("delete", "ok")
}

func (m *Metrics) recordDeletes(n int) {
	m.deletes.Add(int64(n))
	for i := 0; i < n; i++ {
		m.emit("delete", "ok")
	}
}

func (m *Metrics) recordGetError() {
	m.gets.Add(1)
	m.getErrors.Add(1)
	m.emit("get", "error")
}

func (m *Metrics) recordSetError() {
	m.sets.Add(1)
	m.setErrors.Add(1)
	m.emit("set", "error")
}

// recordLatency appends to the ring, overwriting the oldest sample once
// the window is full.
func (m *Metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.latencies) < latencyWindow {
		m.latencies = append(m.latencies, d)
		return
	}
	m.latencies[m.next] = d
	m.next = (m.next + 1) % latencyWindow
}

// Snapshot is a point-in-time view of cache metrics.
type Snapshot struct {
	Gets      int64   `json:"gets"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	GetErrors int64   `json:"get_errors"`
	SetErrors int64   `json:"set_errors"`
	HitRate   float64 `json:"hit_rate"`

	MeanLatency time.Duration `json:"mean_latency_ns"`
	P95Latency  time.Duration `json:"p95_latency_ns"`
	P99Latency  time.Duration `json:"p99_latency_ns"`
	Samples     int           `json:"latency_samples"`
}

// Snapshot computes current counters and latency percentiles.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Gets:      m.gets.Load(),
		Sets:      m.sets.Load(),
		Deletes:   m.deletes.Load(),
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		GetErrors: m.getErrors.Load(),
		SetErrors: m.setErrors.Load(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}

	m.mu.Lock()
	samples := make([]time.Duration, len(m.latencies))
	copy(samples, m.latencies)
	m.mu.Unlock()

	s.Samples = len(samples)
	if len(samples) == 0 {
		return s
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	s.MeanLatency = sum / time.Duration(len(samples))
	s.P95Latency = samples[percentileIndex(len(samples), 0.95)]
	s.P99Latency = samples[percentileIndex(len(samples), 0.99)]
	return s
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n)*p) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// Cleanup resets counters and the latency window. Safe to call while
// traffic is in flight; concurrent recordings after the reset land in the
// fresh window.
func (m *Metrics) Cleanup() {
	m.gets.Store(0)
	m.sets.Store(0)
	m.deletes.Store(0)
	m.hits.Store(0)
	m.misses.Store(0)
	m.getErrors.Store(0)
	m.setErrors.Store(0)

	m.mu.Lock()
	m.latencies = m.latencies[:0]
	m.next = 0
	m.mu.Unlock()
}
