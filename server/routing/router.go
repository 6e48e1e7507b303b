// Package routing assembles the HTTP surface of the wave service: the global
// middleware stack and every endpoint mounted on a chi router.
package routing

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/handlers"
	"github.com/teilomillet/wave/server/metrics"
	"github.com/teilomillet/wave/server/middleware"
	"go.uber.org/zap"
)

// Options configures the optional parts of the middleware stack.
type Options struct {
	Logger         *zap.Logger
	Metrics        *metrics.Metrics // nil disables request metrics and /metrics
	RateLimit      config.RateLimitConfig
	RequestTimeout time.Duration // zero disables the per-request deadline
}

// Router handles HTTP routing for the service.
type Router struct {
	router chi.Router
	logger *zap.Logger
}

// NewRouter mounts every endpoint of h behind the global middleware stack.
//
// Order matters: the request id must exist before anything logs, recovery
// wraps everything below it, and the timeout sits innermost so that a
// handler running past its deadline still gets logged and measured.
func NewRouter(h *handlers.Handlers, opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS)
	if opts.Metrics != nil {
		r.Use(middleware.PrometheusMetrics(opts.Metrics))
	}
	if opts.RateLimit.Enabled {
		r.Use(middleware.RateLimit(opts.RateLimit, opts.Metrics))
	}
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.WriteError(w, errors.NewNotFoundError(middleware.GetRequestID(req.Context()), "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.ValidationError, http.StatusMethodNotAllowed)
	})

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/characters", h.Characters)

	r.Post("/chat", h.Chat)
	r.Post("/ai/chat", h.GroupChat)

	r.Route("/diary", func(r chi.Router) {
		r.Post("/generate", h.GenerateDiary)
		r.Get("/drafts", h.ListDrafts)
	})

	r.Route("/memory", func(r chi.Router) {
		r.Post("/clear/{user_id}/{character_id}", h.ClearMemory)
		r.Get("/stats", h.MemoryStats)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	logger.Debug("routes mounted", zap.Int("routes", len(r.Routes())))

	return &Router{router: r, logger: logger}
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
