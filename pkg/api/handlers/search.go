package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memtide/memtide/pkg/api/response"
	"github.com/memtide/memtide/pkg/engine"
)

// SearchHandler handles hybrid retrieval endpoints.
type SearchHandler struct {
	engine *engine.Engine
	logger handlerLogger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(eng *engine.Engine, log handlerLogger) *SearchHandler {
	return &SearchHandler{
		engine: eng,
		logger: log,
	}
}

// Search handles GET /api/v1/search/{userID}?query=...&limit=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	query := r.URL.Query().Get("query")
	if query == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "Query parameter is required", getRequestID(ctx))
		return
	}

	topK := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	results, err := h.engine.Search(ctx, userID, query, topK)
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to search memories", "user_id", userID)
		return
	}
	if results == nil {
		results = []engine.SearchResult{}
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"total":   len(results),
	})
}
