// Package server wires the wave service together: configuration, providers,
// memory, routing, diary drafting, background jobs and the HTTP server.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/archive"
	"github.com/teilomillet/wave/server/diary"
	"github.com/teilomillet/wave/server/dispatch"
	"github.com/teilomillet/wave/server/handlers"
	"github.com/teilomillet/wave/server/memory"
	"github.com/teilomillet/wave/server/metrics"
	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/processing"
	"github.com/teilomillet/wave/server/provider"
	"github.com/teilomillet/wave/server/routing"
	"github.com/teilomillet/wave/server/scheduler"
	"github.com/teilomillet/wave/server/validation"
	"go.uber.org/zap"
)

// Server represents the HTTP server and everything behind it.
type Server struct {
	cfg        *config.Config
	version    string
	logger     *zap.Logger
	httpServer *http.Server

	metrics   *metrics.Metrics
	gateway   *provider.Gateway
	router    *dispatch.Router
	memory    memory.Store
	archive   *archive.Archive
	scheduler *scheduler.Scheduler
	watcher   config.Watcher

	providers []provider.Provider
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithWatcher applies provider preference and routing strategy changes from
// w while the server runs.
func WithWatcher(w config.Watcher) Option {
	return func(s *Server) { s.watcher = w }
}

// WithProviders replaces the providers built from configuration.
func WithProviders(providers ...provider.Provider) Option {
	return func(s *Server) { s.providers = providers }
}

// New builds a server from cfg. A nil logger means errors.DefaultLogger.
// Nothing is started until Start or Serve.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	if logger == nil {
		logger = errors.DefaultLogger
	}
	s := &Server{cfg: cfg, logger: logger, version: "dev"}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.build(); err != nil {
		s.closeResources()
		return nil, err
	}
	return s, nil
}

func (s *Server) build() error {
	cfg := s.cfg
	s.metrics = metrics.NewMetrics()

	registry, err := loadPersonas(cfg)
	if err != nil {
		return err
	}

	if s.providers != nil {
		s.gateway, err = provider.NewGateway(s.providers, cfg.ProviderPreference, cfg.CircuitBreaker, s.logger, s.metrics.Registry(),
			provider.ConfiguredTimeouts(cfg.Providers)...)
	} else {
		s.gateway, err = provider.FromConfig(context.Background(), cfg, s.logger, s.metrics.Registry())
	}
	if err != nil {
		return fmt.Errorf("provider gateway: %w", err)
	}

	s.memory, err = memory.New(cfg.Memory, s.logger.Named("memory"))
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}
	if err := s.metrics.TrackSessions(s.sessionCount); err != nil {
		return fmt.Errorf("session gauge: %w", err)
	}

	strategy, err := dispatch.ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		return err
	}
	s.router = dispatch.NewRouter(registry,
		dispatch.WithStrategy(strategy),
		dispatch.WithGenerator(s.gateway),
		dispatch.WithProvider(cfg.Routing.Provider),
		dispatch.WithLogger(s.logger.Named("dispatch")),
		dispatch.WithMetrics(s.metrics.Registry()),
	)

	processor, err := processing.NewProcessor(registry, s.router, s.gateway, s.memory, s.logger.Named("processing"))
	if err != nil {
		return err
	}

	h := &handlers.Handlers{
		Version:    s.version,
		Processor:  processor,
		Summarizer: diary.NewSummarizer(s.gateway, s.logger.Named("diary")),
		Memory:     s.memory,
		Providers:  s.gateway,
		Personas:   registry,
		Validator: validation.New(
			validation.NewTokenCounter(cfg.Server.TokenizerModel, s.logger),
			cfg.Server.MaxMessageTokens,
		),
		Logger: s.logger,
	}

	if cfg.Diary.ArchivePath != "" {
		s.archive, err = archive.Open(cfg.Diary.ArchivePath, s.logger.Named("archive"))
		if err != nil {
			return fmt.Errorf("diary archive: %w", err)
		}
		h.Archive = s.archive
	}

	s.scheduler, err = scheduler.New(s.logger.Named("scheduler"))
	if err != nil {
		return err
	}
	if cfg.HealthCheck.Enabled {
		if err := s.scheduler.AddHealthProbe(s.gateway, cfg.HealthCheck.Interval, cfg.HealthCheck.Timeout); err != nil {
			return err
		}
	}
	if cfg.Sessions.IdleTTL > 0 {
		if err := s.scheduler.AddSessionSweep(s.memory, cfg.Sessions.SweepInterval, cfg.Sessions.IdleTTL); err != nil {
			return err
		}
	}

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: routing.NewRouter(h, routing.Options{
			Logger:         s.logger,
			Metrics:        s.metrics,
			RateLimit:      cfg.RateLimit,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}
	return nil
}

func loadPersonas(cfg *config.Config) (*persona.Registry, error) {
	var (
		registry *persona.Registry
		err      error
	)
	if cfg.Personas.File != "" {
		registry, err = persona.LoadFile(cfg.Personas.File)
	} else {
		registry, err = persona.Builtin()
	}
	if err != nil {
		return nil, fmt.Errorf("personas: %w", err)
	}

	if id := cfg.Routing.DefaultCharacter; id != "" {
		registry, err = registry.WithDefault(id)
		if err != nil {
			return nil, fmt.Errorf("personas: %w", err)
		}
	}
	return registry, nil
}

func (s *Server) sessionCount() float64 {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	store := s.memory
	if store == nil {
		return 0
	}
	n, err := store.Len(ctx)
	if err != nil {
		return 0
	}
	return float64(n)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// releases the memory store and archive.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.closeResources()

	s.scheduler.Start()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if s.watcher != nil {
		go s.watch(watchCtx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Server started",
			zap.String("address", ln.Addr().String()),
			zap.String("version", s.version),
			zap.Strings("providers", s.gateway.Names()),
		)
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// watch applies reloaded configuration. Only settings that can change
// without rebuilding components are applied; the rest need a restart.
func (s *Server) watch(ctx context.Context) {
	updates := s.watcher.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			s.Apply(cfg)
		}
	}
}

// Apply updates the provider preference and routing strategy from cfg.
func (s *Server) Apply(cfg *config.Config) {
	if err := s.gateway.SetPreference(cfg.ProviderPreference); err != nil {
		s.logger.Error("rejected provider preference from reloaded config",
			zap.Strings("preference", cfg.ProviderPreference),
			zap.Error(err),
		)
	}

	strategy, err := dispatch.ParseStrategy(cfg.Routing.Strategy)
	if err != nil {
		s.logger.Error("rejected routing strategy from reloaded config", zap.Error(err))
	} else {
		s.router.SetStrategy(strategy)
	}

	s.logger.Info("configuration reloaded",
		zap.Strings("preference", s.gateway.Preference()),
		zap.String("strategy", string(s.router.Strategy())),
	)
}

// Close releases the resources of a server that was built but never served.
func (s *Server) Close() {
	s.closeResources()
}

func (s *Server) closeResources() {
	if s.scheduler != nil {
		if err := s.scheduler.Shutdown(); err != nil {
			s.logger.Warn("scheduler shutdown", zap.Error(err))
		}
	}
	if s.memory != nil {
		if err := s.memory.Close(); err != nil {
			s.logger.Warn("memory store close", zap.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Warn("archive close", zap.Error(err))
		}
	}
	s.scheduler, s.memory, s.archive = nil, nil, nil
}
