// Package handlers implements the HTTP endpoints of the wave service.
// Handlers decode and validate requests, call into the domain packages and
// write JSON. Only malformed requests produce 4xx; provider failures are
// absorbed by the chat and diary pipelines.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/archive"
	"github.com/teilomillet/wave/server/diary"
	"github.com/teilomillet/wave/server/memory"
	"github.com/teilomillet/wave/server/middleware"
	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/processing"
	"github.com/teilomillet/wave/server/provider"
	"github.com/teilomillet/wave/server/validation"
	"go.uber.org/zap"
)

// Providers is the view of the provider gateway the handlers need.
type Providers interface {
	Statuses() map[string]provider.Status
	Has(name string) bool
}

// DraftArchive stores generated diary drafts.
type DraftArchive interface {
	Save(ctx context.Context, d diary.Draft, messageCount int) (archive.Entry, error)
	List(ctx context.Context, limit int) ([]archive.Entry, error)
	Ping(ctx context.Context) error
}

// Handlers holds the collaborators of every endpoint.
type Handlers struct {
	Version    string
	Processor  *processing.Processor
	Summarizer *diary.Summarizer
	Archive    DraftArchive // nil disables the drafts listing
	Memory     memory.Store
	Providers  Providers
	Personas   persona.Store
	Validator  *validation.Validator
	Logger     *zap.Logger
}

func (h *Handlers) logger(r *http.Request) *zap.Logger {
	return h.Logger.With(zap.String("request_id", middleware.GetRequestID(r.Context())))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// checkPreference rejects provider names the gateway does not know.
func (h *Handlers) checkPreference(requestID string, preference []string) *errors.WaveError {
	for _, name := range preference {
		if !h.Providers.Has(name) {
			return errors.NewValidationError(requestID, "Unknown provider", map[string]interface{}{
				"field":    "provider",
				"provider": name,
			})
		}
	}
	return nil
}
