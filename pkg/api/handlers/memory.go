package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/memtide/memtide/pkg/api/middleware"
	"github.com/memtide/memtide/pkg/api/response"
	"github.com/memtide/memtide/pkg/engine"
	"github.com/memtide/memtide/pkg/memory"
)

// handlerLogger is the slice of the logger the handlers need.
type handlerLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func getRequestID(ctx context.Context) string {
	return middleware.GetRequestID(ctx)
}

// MemoryHandler handles memory lifecycle API endpoints.
type MemoryHandler struct {
	engine *engine.Engine
	logger handlerLogger
}

// NewMemoryHandler creates a new memory handler.
func NewMemoryHandler(eng *engine.Engine, log handlerLogger) *MemoryHandler {
	return &MemoryHandler{
		engine: eng,
		logger: log,
	}
}

// --- Request/Response types ---

type upsertMemoryRequest struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Topic      string    `json:"topic,omitempty"`
	Entities   []string  `json:"entities,omitempty"`
	Importance float64   `json:"importance"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

type upsertMemoryResponse struct {
	ID string `json:"id"`
}

type accessRequest struct {
	Type string `json:"type"`
}

type accessResponse struct {
	MemoryID   string  `json:"memory_id"`
	Importance float64 `json:"importance"`
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error, requestID string, log handlerLogger, msg string, args ...any) {
	switch {
	case errors.Is(err, engine.ErrUnknownUser):
		response.Error(w, http.StatusNotFound, response.ErrCodeUserNotFound, err.Error(), requestID)
	case errors.Is(err, engine.ErrUnknownMemory):
		response.Error(w, http.StatusNotFound, response.ErrCodeMemoryNotFound, err.Error(), requestID)
	case errors.Is(err, engine.ErrEmptyQuery),
		errors.Is(err, memory.ErrInvalidUserID),
		errors.Is(err, memory.ErrInvalidMemoryID):
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, err.Error(), requestID)
	default:
		log.Error(msg, append(args, "error", err)...)
		response.Error(w, http.StatusInternalServerError, response.ErrCodeInternalServer, msg, requestID)
	}
}

// UpsertMemory handles POST /api/v1/memory/{userID}
func (h *MemoryHandler) UpsertMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var req upsertMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	if req.Content == "" {
		response.Error(w, http.StatusBadRequest, response.ErrCodeValidationFailed, "content is required", getRequestID(ctx))
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	rec := engine.MemoryRecord{
		Item: memory.MemoryItem{
			ID:        req.ID,
			Content:   req.Content,
			Topic:     req.Topic,
			Entities:  req.Entities,
			CreatedAt: req.CreatedAt,
		},
		Importance: req.Importance,
	}
	if err := h.engine.UpsertMemory(ctx, userID, rec); err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to store memory", "user_id", userID)
		return
	}

	response.JSON(w, http.StatusCreated, upsertMemoryResponse{ID: req.ID})
}

// GetMemory handles GET /api/v1/memory/{userID}/{memoryID}
func (h *MemoryHandler) GetMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	memoryID := chi.URLParam(r, "memoryID")

	rec, err := h.engine.GetMemory(userID, memoryID)
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to get memory", "user_id", userID, "memory_id", memoryID)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// ListMemories handles GET /api/v1/memory/{userID}
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	records := h.engine.ListMemories(userID)
	if records == nil {
		records = []engine.MemoryRecord{}
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"memories": records,
		"total":    len(records),
	})
}

// DeleteMemory handles DELETE /api/v1/memory/{userID}/{memoryID}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	memoryID := chi.URLParam(r, "memoryID")

	if err := h.engine.RemoveMemory(ctx, userID, memoryID); err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to delete memory", "user_id", userID, "memory_id", memoryID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]int{"deleted": 1})
}

// RecordAccess handles POST /api/v1/memory/{userID}/{memoryID}/access
func (h *MemoryHandler) RecordAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	memoryID := chi.URLParam(r, "memoryID")

	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}

	importance, err := h.engine.RecordAccess(ctx, userID, memoryID, memory.AccessType(req.Type))
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to record access", "user_id", userID, "memory_id", memoryID)
		return
	}
	response.JSON(w, http.StatusOK, accessResponse{MemoryID: memoryID, Importance: importance})
}

// RefreshLifecycles handles POST /api/v1/memory/{userID}/lifecycles
func (h *MemoryHandler) RefreshLifecycles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	lifecycles, err := h.engine.RefreshLifecycles(ctx, userID)
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to refresh lifecycles", "user_id", userID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"lifecycles": lifecycles,
		"total":      len(lifecycles),
	})
}

// RebuildClusters handles POST /api/v1/memory/{userID}/clusters
func (h *MemoryHandler) RebuildClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	result, err := h.engine.RebuildClusters(ctx, userID)
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to rebuild clusters", "user_id", userID)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"clusters": result,
		"total":    len(result),
	})
}

// GetClusters handles GET /api/v1/memory/{userID}/clusters
func (h *MemoryHandler) GetClusters(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	result := h.engine.Clusters(userID)
	if result == nil {
		result = memory.ClusteringResult{}
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"clusters": result,
		"total":    len(result),
	})
}

// Recommend handles GET /api/v1/memory/{userID}/{memoryID}/recommendations
func (h *MemoryHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	memoryID := chi.URLParam(r, "memoryID")

	recs, err := h.engine.Recommend(userID, memoryID)
	if err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to recommend", "user_id", userID, "memory_id", memoryID)
		return
	}
	if recs == nil {
		recs = []memory.Recommendation{}
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recs,
	})
}
