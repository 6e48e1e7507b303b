package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/memory"
	"github.com/teilomillet/wave/server/middleware"
)

// ClearMemory handles POST /memory/clear/{user_id}/{character_id}. An
// unknown session is reported as not_found with status 200.
func (h *Handlers) ClearMemory(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	userID := chi.URLParam(r, "user_id")
	characterID := chi.URLParam(r, "character_id")
	key := memory.Key(userID, characterID)

	found, err := h.Memory.Clear(r.Context(), userID, characterID)
	if err != nil {
		werr := errors.NewInternalError(requestID, err)
		errors.LogError(h.logger(r), werr, requestID)
		errors.WriteError(w, werr)
		return
	}

	if !found {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "not_found",
			"message": "No memory found for " + key,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Memory cleared for " + key,
	})
}

// MemoryStats handles GET /memory/stats.
func (h *Handlers) MemoryStats(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	stats, err := h.Memory.Stats(r.Context())
	if err != nil {
		werr := errors.NewInternalError(requestID, err)
		errors.LogError(h.logger(r), werr, requestID)
		errors.WriteError(w, werr)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
