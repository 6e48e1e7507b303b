package handlers

import (
	"net/http"

	"github.com/teilomillet/wave/server/provider"
	"go.uber.org/zap"
)

// Features lists what the root endpoint advertises.
var Features = []string{"memory", "multi-provider", "group-routing", "diary"}

// Root handles GET /.
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":  "Wave AI Service",
		"version":  h.Version,
		"status":   "running",
		"features": Features,
	})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status         string                     `json:"status"`
	Providers      map[string]provider.Status `json:"providers"`
	MemorySessions int                        `json:"memory_sessions"`
	Archive        string                     `json:"archive,omitempty"`
}

// Health handles GET /health. The service is healthy even when no provider
// is configured because chat degrades to canned replies.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Memory.Len(r.Context())
	if err != nil {
		h.logger(r).Warn("failed to count memory sessions", zap.Error(err))
		sessions = -1
	}

	resp := HealthResponse{
		Status:         "healthy",
		Providers:      h.Providers.Statuses(),
		MemorySessions: sessions,
	}
	if h.Archive != nil {
		resp.Archive = "ok"
		if err := h.Archive.Ping(r.Context()); err != nil {
			h.logger(r).Warn("diary archive unreachable", zap.Error(err))
			resp.Archive = "unavailable"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Characters handles GET /characters.
func (h *Handlers) Characters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"characters": h.Personas.List(),
	})
}
