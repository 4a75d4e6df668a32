package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/memtide/memtide/pkg/cache"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.New(cache.NewRedisBackendFromClient(client), cache.DefaultConfig())
}

func TestCacheHandler_Stats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, cache.SessionKey("u1", "s1"), []byte("x"), cache.Options{}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := c.Get(ctx, cache.SessionKey("u1", "s1"), cache.Options{}); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	h := NewCacheHandler(c, &nopLogger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	w := httptest.NewRecorder()

	h.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Stats() status = %d, want %d", w.Code, http.StatusOK)
	}

	var snap cache.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Sets != 1 || snap.Hits != 1 {
		t.Errorf("snapshot = %+v, want 1 set and 1 hit", snap)
	}
}

func TestCacheHandler_Stats_NoCache(t *testing.T) {
	h := NewCacheHandler(nil, &nopLogger{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil)
	w := httptest.NewRecorder()

	h.Stats(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Stats() status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestCacheHandler_ResetStats(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, cache.SessionKey("u1", "s1"), []byte("x"), cache.Options{}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	h := NewCacheHandler(c, &nopLogger{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cache/stats/reset", nil)
	w := httptest.NewRecorder()

	h.ResetStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ResetStats() status = %d, want %d", w.Code, http.StatusOK)
	}
	if snap := c.Metrics().Snapshot(); snap.Sets != 0 {
		t.Errorf("snapshot after reset = %+v, want zeroed", snap)
	}
}
