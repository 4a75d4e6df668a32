package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/memtide/memtide/pkg/cache"
	"github.com/memtide/memtide/pkg/memory"
)

// DenseHit is one result from a dense vector backend.
type DenseHit struct {
	MemoryID string  `json:"memory_id"`
	Score    float64 `json:"score"`
}

// VectorSearcher retrieves memories by embedding similarity. The engine
// treats it as opaque; any vector store qualifies and owns its own
// embedding of the query text.
type VectorSearcher interface {
	Search(ctx context.Context, userID, query string, topK int) ([]DenseHit, error)
}

// SearchResult is one fused retrieval result.
type SearchResult struct {
	MemoryID    string  `json:"memory_id"`
	Content     string  `json:"content"`
	Topic       string  `json:"topic,omitempty"`
	Score       float64 `json:"score"`
	SparseScore float64 `json:"sparse_score,omitempty"`
	DenseScore  float64 `json:"dense_score,omitempty"`
}

// sparseIndex is a per-user BM25 index: one vocabulary over the user's
// corpus plus a scored vector per memory.
type sparseIndex struct {
	vocab   *memory.Vocabulary
	scorer  *memory.BM25Scorer
	vectors map[string]memory.SparseVector
}

// buildSparseIndex scores every record against a vocabulary built from
// the whole corpus. Records whose content scores empty are indexed with
// an empty vector and simply never match.
func buildSparseIndex(records map[string]*MemoryRecord, params memory.BM25Params) (*sparseIndex, error) {
	docs := make([]string, 0, len(records))
	ids := make([]string, 0, len(records))
	for id, rec := range records {
		ids = append(ids, id)
		docs = append(docs, rec.Item.Content)
	}

	vocab, err := memory.BuildVocabulary(docs)
	if err != nil {
		return nil, err
	}

	idx := &sparseIndex{
		vocab:   vocab,
		scorer:  memory.NewBM25ScorerWith(params),
		vectors: make(map[string]memory.SparseVector, len(records)),
	}
	for i, id := range ids {
		vec, err := idx.scorer.ScoreDocument(docs[i], vocab)
		if err != nil {
			return nil, err
		}
		idx.vectors[id] = vec
	}
	return idx, nil
}

// query scores the query text against every indexed memory and returns
// positive matches sorted by descending score.
func (idx *sparseIndex) query(text string, topK int) []DenseHit {
	qvec, err := idx.scorer.ScoreDocument(text, idx.vocab)
	if err != nil || len(qvec) == 0 {
		return nil
	}

	hits := make([]DenseHit, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		if score := qvec.Dot(vec); score > 0 {
			hits = append(hits, DenseHit{MemoryID: id, Score: score})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].MemoryID < hits[j].MemoryID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Search runs hybrid retrieval: BM25 over the user's corpus, plus the
// dense backend when one is attached, fused by weighted reciprocal rank.
// Responses are cached per query with a sliding TTL; a cache hit skips
// retrieval entirely.
func (e *Engine) Search(ctx context.Context, userID, query string, topK int) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = e.cfg.Search.TopK
	}

	cacheKey := cache.SummaryKey(userID, searchCacheID(query, topK))
	if cached := e.cachedResults(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	start := time.Now()
	mode := "sparse"

	e.mu.Lock()
	st, ok := e.users[userID]
	if !ok {
		e.mu.Unlock()
		return nil, ErrUnknownUser
	}
	if st.index == nil && len(st.records) > 0 {
		idx, err := buildSparseIndex(st.records, e.cfg.BM25)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		st.index = idx
	}
	idx := st.index
	e.mu.Unlock()

	var sparse []DenseHit
	if idx != nil {
		sparse = idx.query(query, topK)
	}

	var dense []DenseHit
	if e.vectors != nil {
		hits, err := e.vectors.Search(ctx, userID, query, topK)
		if err != nil {
			// Dense failures degrade to sparse-only rather than failing
			// the request.
			e.log.WarnContext(ctx, "dense search failed", "user_id", userID, "error", err)
		} else {
			dense = hits
			mode = "hybrid"
		}
	}

	results := e.fuse(userID, sparse, dense, topK)
	e.metrics.RecordSearch(mode, time.Since(start))

	e.cacheResults(ctx, cacheKey, results)
	return results, nil
}

// fuse combines the two ranked lists with weighted reciprocal rank
// fusion: each list contributes weight/(k+rank) for every memory it
// ranks, so items ranked by both lists dominate.
func (e *Engine) fuse(userID string, sparse, dense []DenseHit, topK int) []SearchResult {
	k := float64(e.cfg.Search.RRFConstant)

	fused := make(map[string]*SearchResult)
	ensure := func(id string) *SearchResult {
		if r, ok := fused[id]; ok {
			return r
		}
		r := &SearchResult{MemoryID: id}
		fused[id] = r
		return r
	}

	for rank, hit := range sparse {
		r := ensure(hit.MemoryID)
		r.SparseScore = hit.Score
		r.Score += e.cfg.Search.SparseWeight / (k + float64(rank+1))
	}
	for rank, hit := range dense {
		r := ensure(hit.MemoryID)
		r.DenseScore = hit.Score
		r.Score += e.cfg.Search.DenseWeight / (k + float64(rank+1))
	}

	e.mu.RLock()
	if st, ok := e.users[userID]; ok {
		for id, r := range fused {
			if rec, ok := st.records[id]; ok {
				r.Content = rec.Item.Content
				r.Topic = rec.Item.Topic
			}
		}
	}
	e.mu.RUnlock()

	out := make([]SearchResult, 0, len(fused))
	for _, r := range fused {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MemoryID < out[j].MemoryID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out
}

// searchCacheID derives a stable cache identifier from the query shape.
func searchCacheID(query string, topK int) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(h[:8]) + "-" + strconv.Itoa(topK)
}

func (e *Engine) cachedResults(ctx context.Context, key cache.Key) []SearchResult {
	if e.cache == nil {
		return nil
	}
	data, err := e.cache.Get(ctx, key, cache.Options{Sliding: true, TTL: e.cfg.CacheTTL})
	if err != nil || data == nil {
		return nil
	}
	var results []SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil
	}
	return results
}

func (e *Engine) cacheResults(ctx context.Context, key cache.Key, results []SearchResult) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	opts := cache.Options{TTL: e.cfg.CacheTTL, Sliding: true, Compress: true}
	if err := e.cache.Set(ctx, key, data, opts); err != nil {
		e.log.WarnContext(ctx, "search cache write failed", "key", key.String(), "error", err)
	}
}
