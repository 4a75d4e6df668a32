// Package engine wires the retention core to caching and observability.
// It owns the per-user working set: memory records, cluster assignments,
// and the sparse lexical index. Durable storage stays with the caller;
// everything here is recomputable.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/memtide/memtide/pkg/cache"
	"github.com/memtide/memtide/pkg/logger"
	"github.com/memtide/memtide/pkg/memory"
	"github.com/memtide/memtide/pkg/metrics"
)

// Sentinel errors for the engine.
var (
	ErrUnknownUser   = errors.New("engine: unknown user")
	ErrUnknownMemory = errors.New("engine: unknown memory")
	ErrEmptyQuery    = errors.New("engine: empty query")
)

// MemoryRecord is a memory item plus the mutable retention state the
// engine tracks for it.
type MemoryRecord struct {
	Item           memory.MemoryItem `json:"item"`
	Importance     float64           `json:"importance"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	AccessCount    int               `json:"access_count"`
}

// SearchParams tunes hybrid retrieval.
type SearchParams struct {
	// SparseWeight is the lexical contribution to the fused score.
	SparseWeight float64

	// DenseWeight is the vector contribution to the fused score.
	DenseWeight float64

	// TopK is the default result count.
	TopK int

	// RRFConstant is the k constant in reciprocal rank fusion.
	RRFConstant int
}

// DefaultSearchParams returns the standard retrieval tuning.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		SparseWeight: 0.3,
		DenseWeight:  0.7,
		TopK:         10,
		RRFConstant:  60,
	}
}

// Config tunes an Engine.
type Config struct {
	Decay   memory.DecayParams
	Cluster memory.ClusterParams
	Search  SearchParams
	BM25    memory.BM25Params

	// CacheTTL bounds engine-written cache entries. Zero uses the cache
	// default.
	CacheTTL time.Duration
}

// DefaultConfig returns the standard engine tuning.
func DefaultConfig() Config {
	return Config{
		Decay:   memory.DefaultDecayParams(),
		Cluster: memory.DefaultClusterParams(),
		Search:  DefaultSearchParams(),
		BM25:    memory.DefaultBM25Params(),
	}
}

// userState is the per-user working set. Guarded by Engine.mu.
type userState struct {
	records  map[string]*MemoryRecord
	clusters memory.ClusteringResult

	// index is rebuilt lazily after writes invalidate it.
	index *sparseIndex
}

// Engine is the retention and retrieval façade. All methods are safe for
// concurrent use.
type Engine struct {
	cfg      Config
	decay    *memory.DecayModel
	clusters *memory.ClusterEngine
	vectors  VectorSearcher
	analyzer memory.TextAnalyzer
	cache    *cache.Cache
	metrics  *metrics.Manager
	log      logger.Logger

	mu    sync.RWMutex
	users map[string]*userState
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCache attaches a cache layer. Without one the engine recomputes
// everything on demand.
func WithCache(c *cache.Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithVectorSearcher attaches a dense retrieval backend, enabling hybrid
// search.
func WithVectorSearcher(v VectorSearcher) Option {
	return func(e *Engine) { e.vectors = v }
}

// WithAnalyzer attaches a text analyzer used to enrich memories that
// arrive without a topic or entities.
func WithAnalyzer(a memory.TextAnalyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithMetrics attaches a metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an engine with the given tuning.
func New(cfg Config, opts ...Option) *Engine {
	if cfg.Search.TopK <= 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Search.RRFConstant <= 0 {
		cfg.Search.RRFConstant = 60
	}

	e := &Engine{
		cfg:      cfg,
		decay:    memory.NewDecayModel(cfg.Decay, nil),
		clusters: memory.NewClusterEngine(cfg.Cluster),
		users:    make(map[string]*userState),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.analyzer == nil {
		e.analyzer = memory.NoopAnalyzer{}
	}
	if e.metrics == nil {
		e.metrics = metrics.NoOpManager()
	}
	if e.log == nil {
		e.log = logger.Global()
	}
	return e
}

// Profiles returns the per-user decay profile store.
func (e *Engine) Profiles() *memory.ProfileStore {
	return e.decay.Profiles()
}

// UserDecayRate returns the profile-derived decay rate for a user.
func (e *Engine) UserDecayRate(userID string) float64 {
	return e.decay.ComputeUserDecayRate(userID)
}

func (e *Engine) state(userID string) *userState {
	if st, ok := e.users[userID]; ok {
		return st
	}
	st := &userState{
		records:  make(map[string]*MemoryRecord),
		clusters: memory.ClusteringResult{},
	}
	e.users[userID] = st
	return st
}

// UpsertMemory adds or replaces a memory record and places it into the
// existing clusters incrementally. A full RebuildClusters pass supersedes
// incremental placements.
func (e *Engine) UpsertMemory(ctx context.Context, userID string, rec MemoryRecord) error {
	if userID == "" {
		return memory.ErrInvalidUserID
	}
	if rec.Item.ID == "" {
		return memory.ErrInvalidMemoryID
	}
	if rec.LastAccessedAt.IsZero() {
		rec.LastAccessedAt = rec.Item.CreatedAt
	}
	if rec.Item.Topic == "" && len(rec.Item.Entities) == 0 {
		if analysis, err := e.analyzer.AnalyzeText(ctx, rec.Item.Content); err != nil {
			e.log.WarnContext(ctx, "content analysis failed", "memory_id", rec.Item.ID, "error", err)
		} else {
			rec.Item.Topic = analysis.Topic
			rec.Item.Entities = analysis.Entities
		}
	}

	e.mu.Lock()
	st := e.state(userID)
	_, existed := st.records[rec.Item.ID]
	st.records[rec.Item.ID] = &rec
	if !existed {
		st.clusters = e.clusters.AddMemory(st.clusters, &rec.Item)
	}
	st.index = nil
	e.mu.Unlock()

	e.invalidateUser(ctx, userID)
	return nil
}

// GetMemory returns a copy of the record for memoryID.
func (e *Engine) GetMemory(userID, memoryID string) (MemoryRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.users[userID]
	if !ok {
		return MemoryRecord{}, ErrUnknownUser
	}
	rec, ok := st.records[memoryID]
	if !ok {
		return MemoryRecord{}, ErrUnknownMemory
	}
	return *rec, nil
}

// ListMemories returns copies of every record for userID.
func (e *Engine) ListMemories(userID string) []MemoryRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.users[userID]
	if !ok {
		return nil
	}
	out := make([]MemoryRecord, 0, len(st.records))
	for _, rec := range st.records {
		out = append(out, *rec)
	}
	return out
}

// RemoveMemory deletes a record. The memory stays in its cluster until the
// next full rebuild; clusters describe a snapshot, not live membership.
func (e *Engine) RemoveMemory(ctx context.Context, userID, memoryID string) error {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownUser
	}
	if _, ok := st.records[memoryID]; !ok {
		e.mu.Unlock()
		return ErrUnknownMemory
	}
	delete(st.records, memoryID)
	st.index = nil
	e.mu.Unlock()

	e.invalidateUser(ctx, userID)
	return nil
}

// RecordAccess applies the access boost for one access event and updates
// the record's access statistics. Returns the new importance.
func (e *Engine) RecordAccess(ctx context.Context, userID, memoryID string, accessType memory.AccessType) (float64, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return 0, ErrUnknownUser
	}
	rec, ok := st.records[memoryID]
	if !ok {
		e.mu.Unlock()
		return 0, ErrUnknownMemory
	}

	rec.Importance = e.decay.BoostFromAccess(rec.Importance, accessType)
	rec.AccessCount++
	rec.LastAccessedAt = time.Now()
	importance := rec.Importance
	e.mu.Unlock()

	// Cached lifecycles were computed from the pre-boost importance.
	e.invalidateUser(ctx, userID)
	return importance, nil
}

// RefreshLifecycles recomputes the lifecycle of every memory the user
// owns, applies the new importance back to the records, and caches the
// result. Individual failures never abort the pass.
func (e *Engine) RefreshLifecycles(ctx context.Context, userID string) ([]*memory.MemoryLifecycle, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrUnknownUser
	}

	lifecycles := make([]*memory.MemoryLifecycle, 0, len(st.records))
	for _, rec := range st.records {
		start := time.Now()
		prevStage := stageOf(rec.Importance, e.cfg.Decay)

		lc := e.decay.ComputeLifecycle(rec.Item.ID, rec.Importance, rec.LastAccessedAt, rec.AccessCount, rec.Item.Topic, userID)
		rec.Importance = lc.CurrentImportance
		lifecycles = append(lifecycles, lc)

		e.metrics.RecordDecayComputation(string(lc.Stage), time.Since(start))
		e.metrics.RecordStageTransition(string(prevStage), string(lc.Stage))
	}
	e.mu.Unlock()

	e.cacheJSON(ctx, cache.ContextKey(userID, "lifecycles"), lifecycles)
	return lifecycles, nil
}

// stageOf mirrors the decay model's stage thresholds for transition
// accounting.
func stageOf(importance float64, params memory.DecayParams) memory.Stage {
	switch {
	case importance >= params.ImportanceThreshold:
		return memory.StageActive
	case importance >= params.ArchiveThreshold:
		return memory.StageFading
	case importance > 0:
		return memory.StageArchived
	default:
		return memory.StageForgotten
	}
}

// RebuildClusters runs a full clustering pass over the user's memories,
// replaces the incremental state, and caches a snapshot.
func (e *Engine) RebuildClusters(ctx context.Context, userID string) (memory.ClusteringResult, error) {
	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrUnknownUser
	}

	items := make([]*memory.MemoryItem, 0, len(st.records))
	for _, rec := range st.records {
		items = append(items, &rec.Item)
	}

	start := time.Now()
	result := e.clusters.ClusterMemories(items)
	st.clusters = result
	e.mu.Unlock()

	e.metrics.RecordClusteringRun(time.Since(start), len(result), result.Size())
	e.cacheJSON(ctx, cache.MemoryIndexKey(userID), result)
	return result, nil
}

// Clusters returns the current cluster assignments for userID.
func (e *Engine) Clusters(userID string) memory.ClusteringResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.users[userID]
	if !ok {
		return nil
	}
	return st.clusters
}

// Recommend returns related clusters for one of the user's memories.
func (e *Engine) Recommend(userID, memoryID string) ([]memory.Recommendation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, ok := e.users[userID]
	if !ok {
		return nil, ErrUnknownUser
	}
	rec, ok := st.records[memoryID]
	if !ok {
		return nil, ErrUnknownMemory
	}
	return e.clusters.Recommend(&rec.Item, st.clusters), nil
}

// cacheJSON writes a JSON-encoded snapshot with compression enabled.
// Cache failures are logged and swallowed; the cache is an accelerator,
// never a dependency.
func (e *Engine) cacheJSON(ctx context.Context, key cache.Key, v any) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		e.log.WarnContext(ctx, "cache snapshot marshal failed", "key", key.String(), "error", err)
		return
	}
	opts := cache.Options{TTL: e.cfg.CacheTTL, Compress: true}
	if err := e.cache.Set(ctx, key, data, opts); err != nil {
		e.log.WarnContext(ctx, "cache snapshot write failed", "key", key.String(), "error", err)
	}
}

// invalidateUser drops the user's cached snapshots after a write.
func (e *Engine) invalidateUser(ctx context.Context, userID string) {
	if e.cache == nil {
		return
	}
	for _, key := range []cache.Key{
		cache.MemoryIndexKey(userID),
		cache.ContextKey(userID, "lifecycles"),
	} {
		if err := e.cache.Delete(ctx, key); err != nil {
			e.log.WarnContext(ctx, "cache invalidation failed", "key", key.String(), "error", err)
		}
	}
	if _, err := e.cache.InvalidateByPattern(ctx, string(cache.KeySummary)+":"+userID+":*"); err != nil {
		e.log.WarnContext(ctx, "search cache invalidation failed", "user_id", userID, "error", err)
	}
}
