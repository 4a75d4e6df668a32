package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memtide/memtide/pkg/api/response"
	"github.com/memtide/memtide/pkg/engine"
	"github.com/memtide/memtide/pkg/memory"
)

// ProfileHandler handles decay profile endpoints.
type ProfileHandler struct {
	engine *engine.Engine
	logger handlerLogger
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(eng *engine.Engine, log handlerLogger) *ProfileHandler {
	return &ProfileHandler{
		engine: eng,
		logger: log,
	}
}

// GetProfile handles GET /api/v1/profiles/{userID}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	profile := h.engine.Profiles().Get(userID)
	response.JSON(w, http.StatusOK, profile)
}

// UpdateProfile handles PUT /api/v1/profiles/{userID}
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	var profile memory.DecayProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		response.Error(w, http.StatusBadRequest, response.ErrCodeBadRequest, "Invalid request body", getRequestID(ctx))
		return
	}
	// The path owns identity; the body cannot reassign it.
	profile.UserID = userID

	if err := h.engine.Profiles().Update(&profile); err != nil {
		writeEngineError(w, err, getRequestID(ctx), h.logger, "Failed to update profile", "user_id", userID)
		return
	}
	response.JSON(w, http.StatusOK, profile)
}

// GetDecayRate handles GET /api/v1/profiles/{userID}/decay-rate
func (h *ProfileHandler) GetDecayRate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"decay_rate": h.engine.UserDecayRate(userID),
	})
}
