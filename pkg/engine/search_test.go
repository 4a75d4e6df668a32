package engine

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/memtide/memtide/pkg/cache"
)

// fakeVectorSearcher returns canned dense hits and counts invocations.
type fakeVectorSearcher struct {
	hits  []DenseHit
	err   error
	calls int
}

func (f *fakeVectorSearcher) Search(context.Context, string, string, int) ([]DenseHit, error) {
	f.calls++
	return f.hits, f.err
}

func seedSearchCorpus(t *testing.T, e *Engine) {
	t.Helper()
	ctx := context.Background()
	seed := []MemoryRecord{
		record("m1", "kubernetes", "kubernetes cluster deployment scaling", 0.8),
		record("m2", "kubernetes", "kubernetes networking ingress", 0.7),
		record("m3", "databases", "postgres database tuning", 0.6),
	}
	for _, rec := range seed {
		if err := e.UpsertMemory(ctx, "u1", rec); err != nil {
			t.Fatalf("UpsertMemory(%s) error = %v", rec.Item.ID, err)
		}
	}
}

func TestSearchSparseOnly(t *testing.T) {
	e := newTestEngine()
	seedSearchCorpus(t, e)

	results, err := e.Search(context.Background(), "u1", "kubernetes", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Search() len = %d, want 2: %+v", len(results), results)
	}
	// Both hits contain the term once; the shorter document scores higher
	// under length normalization.
	if results[0].MemoryID != "m2" {
		t.Errorf("top result = %s, want m2", results[0].MemoryID)
	}
	if results[0].SparseScore <= results[1].SparseScore {
		t.Errorf("sparse scores not descending: %v <= %v", results[0].SparseScore, results[1].SparseScore)
	}
	if results[0].Content == "" || results[0].Topic != "kubernetes" {
		t.Errorf("result not hydrated: %+v", results[0])
	}
}

func TestSearchValidation(t *testing.T) {
	e := newTestEngine()
	seedSearchCorpus(t, e)
	ctx := context.Background()

	if _, err := e.Search(ctx, "u1", "   ", 10); err != ErrEmptyQuery {
		t.Errorf("blank query error = %v, want ErrEmptyQuery", err)
	}
	if _, err := e.Search(ctx, "ghost", "kubernetes", 10); err != ErrUnknownUser {
		t.Errorf("unknown user error = %v, want ErrUnknownUser", err)
	}
}

func TestSearchNoMatchesReturnsEmpty(t *testing.T) {
	e := newTestEngine()
	seedSearchCorpus(t, e)

	results, err := e.Search(context.Background(), "u1", "quantum entanglement", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() = %+v, want empty", results)
	}
}

func TestSearchHybridFusion(t *testing.T) {
	vs := &fakeVectorSearcher{hits: []DenseHit{
		{MemoryID: "m1", Score: 0.9},
		{MemoryID: "m3", Score: 0.8},
	}}
	e := newTestEngine(WithVectorSearcher(vs))
	seedSearchCorpus(t, e)

	results, err := e.Search(context.Background(), "u1", "kubernetes", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if vs.calls != 1 {
		t.Errorf("dense backend calls = %d, want 1", vs.calls)
	}
	if len(results) != 3 {
		t.Fatalf("Search() len = %d, want 3: %+v", len(results), results)
	}

	// m1 is ranked by both lists, so reciprocal rank fusion puts it first.
	// The dense weight (0.7) outranks the sparse weight (0.3), so m3
	// beats the sparse-only m2.
	want := []string{"m1", "m3", "m2"}
	for i, id := range want {
		if results[i].MemoryID != id {
			t.Fatalf("results[%d] = %s, want %s (full: %+v)", i, results[i].MemoryID, id, results)
		}
	}
	if results[0].SparseScore == 0 || results[0].DenseScore == 0 {
		t.Errorf("fused result missing component scores: %+v", results[0])
	}
}

func TestSearchDenseFailureDegradesToSparse(t *testing.T) {
	vs := &fakeVectorSearcher{err: context.DeadlineExceeded}
	e := newTestEngine(WithVectorSearcher(vs))
	seedSearchCorpus(t, e)

	results, err := e.Search(context.Background(), "u1", "kubernetes", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Search() len = %d, want sparse-only 2", len(results))
	}
}

func TestSearchTopKTruncates(t *testing.T) {
	e := newTestEngine()
	seedSearchCorpus(t, e)

	results, err := e.Search(context.Background(), "u1", "kubernetes", 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search() len = %d, want 1", len(results))
	}
}

func newCachedEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c := cache.New(cache.NewRedisBackendFromClient(client), cache.DefaultConfig())
	return newTestEngine(append(opts, WithCache(c))...)
}

func TestSearchResponseCaching(t *testing.T) {
	vs := &fakeVectorSearcher{hits: []DenseHit{{MemoryID: "m1", Score: 0.9}}}
	e := newCachedEngine(t, WithVectorSearcher(vs))
	seedSearchCorpus(t, e)
	ctx := context.Background()

	first, err := e.Search(ctx, "u1", "kubernetes", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if vs.calls != 1 {
		t.Fatalf("dense calls after first search = %d, want 1", vs.calls)
	}

	second, err := e.Search(ctx, "u1", "kubernetes", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if vs.calls != 1 {
		t.Errorf("dense calls after cached search = %d, want 1", vs.calls)
	}
	if len(second) != len(first) || second[0].MemoryID != first[0].MemoryID {
		t.Errorf("cached response differs: %+v vs %+v", second, first)
	}

	// A write invalidates cached search responses for the user.
	if err := e.UpsertMemory(ctx, "u1", record("m4", "kubernetes", "kubernetes operators", 0.5)); err != nil {
		t.Fatalf("UpsertMemory() error = %v", err)
	}
	if _, err := e.Search(ctx, "u1", "kubernetes", 10); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if vs.calls != 2 {
		t.Errorf("dense calls after invalidation = %d, want 2", vs.calls)
	}
}

func TestRebuildClustersWritesSnapshot(t *testing.T) {
	e := newCachedEngine(t)
	seedSearchCorpus(t, e)
	ctx := context.Background()

	if _, err := e.RebuildClusters(ctx, "u1"); err != nil {
		t.Fatalf("RebuildClusters() error = %v", err)
	}

	data, err := e.cache.Get(ctx, cache.MemoryIndexKey("u1"), cache.Options{})
	if err != nil {
		t.Fatalf("cache Get() error = %v", err)
	}
	if data == nil {
		t.Fatal("expected cached cluster snapshot")
	}
}

func TestSearchAppliesBM25Tuning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.Deterministic = true
	cfg.BM25.B = 0.05
	tuned := New(cfg)
	std := newTestEngine()
	ctx := context.Background()

	seedSearchCorpus(t, tuned)
	seedSearchCorpus(t, std)

	sparseScore := func(e *Engine) float64 {
		t.Helper()
		results, err := e.Search(ctx, "u1", "kubernetes", 10)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		for _, r := range results {
			if r.MemoryID == "m1" {
				return r.SparseScore
			}
		}
		t.Fatal("m1 missing from results")
		return 0
	}

	// m1 is longer than the corpus average, so weakening length
	// normalization must change its score.
	if tunedScore, stdScore := sparseScore(tuned), sparseScore(std); tunedScore == stdScore {
		t.Errorf("sparse score unchanged by tuning: %v", tunedScore)
	}
}
