package handlers

import (
	"net/http"
	"strconv"

	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/archive"
	"github.com/teilomillet/wave/server/middleware"
	"github.com/teilomillet/wave/server/validation"
	"go.uber.org/zap"
)

// GenerateDiary handles POST /diary/generate. It always answers with a
// draft; archiving failures are only logged.
func (h *Handlers) GenerateDiary(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.DiaryRequest
	if werr := h.Validator.Decode(r, requestID, &req); werr != nil {
		errors.WriteError(w, werr)
		return
	}
	if werr := h.Validator.Tokens(requestID, req.Messages...); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	preference := validation.Preference(req.Provider)
	if werr := h.checkPreference(requestID, preference); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	draft := h.Summarizer.Summarize(r.Context(), req.Messages, preference)

	if h.Archive != nil && len(req.Messages) > 0 {
		if _, err := h.Archive.Save(r.Context(), draft, len(req.Messages)); err != nil {
			h.logger(r).Warn("failed to archive diary draft", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, draft)
}

// ListDrafts handles GET /diary/drafts?limit=N.
func (h *Handlers) ListDrafts(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if h.Archive == nil {
		errors.WriteError(w, errors.NewNotFoundError(requestID, "Diary archive is disabled"))
		return
	}

	limit := archive.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errors.WriteError(w, errors.NewValidationError(requestID, "Invalid limit", map[string]interface{}{
				"field": "limit",
				"value": raw,
			}))
			return
		}
		limit = n
	}

	entries, err := h.Archive.List(r.Context(), limit)
	if err != nil {
		werr := errors.NewInternalError(requestID, err)
		errors.LogError(h.logger(r), werr, requestID)
		errors.WriteError(w, werr)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"drafts": entries,
		"count":  len(entries),
	})
}
