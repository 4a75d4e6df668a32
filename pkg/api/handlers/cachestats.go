package handlers

import (
	"net/http"

	"github.com/memtide/memtide/pkg/api/response"
	"github.com/memtide/memtide/pkg/cache"
)

// CacheHandler exposes cache statistics and maintenance endpoints.
type CacheHandler struct {
	cache  *cache.Cache
	logger handlerLogger
}

// NewCacheHandler creates a new cache handler. A nil cache disables the
// endpoints with 503s rather than panics.
func NewCacheHandler(c *cache.Cache, log handlerLogger) *CacheHandler {
	return &CacheHandler{
		cache:  c,
		logger: log,
	}
}

// Stats handles GET /api/v1/cache/stats
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Cache is not configured", getRequestID(r.Context()))
		return
	}
	response.JSON(w, http.StatusOK, h.cache.Metrics().Snapshot())
}

// ResetStats handles POST /api/v1/cache/stats/reset
func (h *CacheHandler) ResetStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		response.Error(w, http.StatusServiceUnavailable, response.ErrCodeServiceUnavailable, "Cache is not configured", getRequestID(r.Context()))
		return
	}
	h.cache.Metrics().Cleanup()
	response.JSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
