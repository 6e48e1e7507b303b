package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/circuitbreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultTimeout = 30 * time.Second

// HealthStatus is the last observed state of a provider.
type HealthStatus struct {
	Healthy          bool
	LastCheck        time.Time
	ConsecutiveFails int
	Latency          time.Duration
	ErrorCount       int64
	RequestCount     int64
	LastError        string
}

// Status is what the health endpoint reports per provider.
type Status struct {
	Available  bool   `json:"available"`
	Configured bool   `json:"configured"`
	Healthy    bool   `json:"healthy"`
	Breaker    string `json:"breaker"`
	LastError  string `json:"last_error,omitempty"`
}

// Gateway calls providers in preference order.
type Gateway struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	breakers   map[string]*circuitbreaker.CircuitBreaker
	timeouts   map[string]time.Duration
	preference []string

	healthStates sync.Map // map[string]HealthStatus
	group        singleflight.Group
	logger       *zap.Logger
	metrics      *gatewayMetrics
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithTimeout sets the per-call timeout for one provider.
func WithTimeout(name string, d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.timeouts[name] = d
		}
	}
}

// ConfiguredTimeouts returns a WithTimeout option for every provider in cfg.
func ConfiguredTimeouts(cfg map[string]config.ProviderConfig) []GatewayOption {
	opts := make([]GatewayOption, 0, len(cfg))
	for name, pcfg := range cfg {
		opts = append(opts, WithTimeout(name, pcfg.Timeout))
	}
	return opts
}

// NewGateway builds a gateway over providers. Each provider gets its own
// circuit breaker configured by cb. registry may be nil.
func NewGateway(
	providers []Provider,
	preference []string,
	cb config.CircuitBreakerConfig,
	logger *zap.Logger,
	registry prometheus.Registerer,
	opts ...GatewayOption,
) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &Gateway{
		providers: make(map[string]Provider, len(providers)),
		breakers:  make(map[string]*circuitbreaker.CircuitBreaker, len(providers)),
		timeouts:  make(map[string]time.Duration, len(providers)),
		logger:    logger,
		metrics:   newGatewayMetrics(registry),
	}

	for _, p := range providers {
		name := p.Name()
		if _, dup := g.providers[name]; dup {
			return nil, fmt.Errorf("duplicate provider name: %s", name)
		}

		breaker, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             name,
			MaxRequests:      cb.MaxRequests,
			Interval:         cb.Interval,
			Timeout:          cb.Timeout,
			FailureThreshold: cb.FailureThreshold,
			TestMode:         registry == nil,
		}, logger.With(zap.String("provider", name)), registry)
		if err != nil {
			return nil, fmt.Errorf("circuit breaker for %s: %w", name, err)
		}

		g.providers[name] = p
		g.breakers[name] = breaker
		g.healthStates.Store(name, HealthStatus{Healthy: p.Available()})
		g.metrics.healthyProviders.WithLabelValues(name).Set(boolGauge(p.Available()))
	}

	for _, opt := range opts {
		opt(g)
	}

	if err := g.SetPreference(preference); err != nil {
		return nil, err
	}
	return g, nil
}

// FromConfig builds every provider in cfg and wraps them in a gateway.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger, registry prometheus.Registerer) (*Gateway, error) {
	providers := make([]Provider, 0, len(cfg.Providers))

	for name, pcfg := range cfg.Providers {
		p, err := New(ctx, name, pcfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize provider %s: %w", name, err)
		}
		providers = append(providers, p)

		logger.Info("provider initialized",
			zap.String("provider", name),
			zap.String("type", pcfg.Type),
			zap.Bool("configured", p.Available()),
		)
	}

	return NewGateway(providers, cfg.ProviderPreference, cfg.CircuitBreaker, logger, registry, ConfiguredTimeouts(cfg.Providers)...)
}

// SetPreference replaces the default provider order. Names must be known.
func (g *Gateway) SetPreference(preference []string) error {
	for _, name := range preference {
		if !g.Has(name) {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.preference = append([]string(nil), preference...)
	return nil
}

// Preference returns a copy of the default provider order.
func (g *Gateway) Preference() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.preference...)
}

// Has reports whether name is a known provider.
func (g *Gateway) Has(name string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.providers[name]
	return ok
}

// Names returns the known providers, default preference first.
func (g *Gateway) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool, len(g.providers))
	names := make([]string, 0, len(g.providers))
	for _, n := range g.preference {
		seen[n] = true
		names = append(names, n)
	}
	for n := range g.providers {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

// Generate returns the first successful response walking preference, or the
// configured order when preference is empty. Identical concurrent requests
// share one upstream call.
func (g *Gateway) Generate(ctx context.Context, req Request, preference []string) (Result, error) {
	if len(preference) == 0 {
		preference = g.Preference()
	}

	key := requestKey(req, preference)
	// The shared call must not die with whichever caller arrived first.
	ch := g.group.DoChan(key, func() (interface{}, error) {
		return g.walk(context.WithoutCancel(ctx), req, preference)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			g.metrics.deduplicatedRequests.Inc()
		}
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

func (g *Gateway) walk(ctx context.Context, req Request, preference []string) (Result, error) {
	var attempts []Attempt

	for _, name := range preference {
		p, breaker := g.resources(name)
		if p == nil {
			attempts = append(attempts, Attempt{Provider: name, Err: ErrUnknownProvider})
			continue
		}
		if !p.Available() {
			g.metrics.requests.WithLabelValues(name, outcomeUnconfigured).Inc()
			attempts = append(attempts, Attempt{Provider: name, Err: ErrNotConfigured})
			continue
		}
		if !breaker.Allows() {
			g.metrics.requests.WithLabelValues(name, outcomeOpen).Inc()
			attempts = append(attempts, Attempt{Provider: name, Err: circuitbreaker.ErrCircuitOpen})
			continue
		}

		content, err := g.call(ctx, name, p, breaker, req)
		if err == nil {
			return Result{Content: content, Provider: name}, nil
		}

		g.logger.Warn("provider attempt failed",
			zap.String("provider", name),
			zap.String("breaker_state", breaker.State().String()),
			zap.Error(err),
		)
		attempts = append(attempts, Attempt{Provider: name, Err: err})
	}

	g.metrics.exhausted.Inc()
	return Result{}, &AllFailedError{Attempts: attempts}
}

// call performs one attempt under the provider's breaker and timeout.
func (g *Gateway) call(ctx context.Context, name string, p Provider, breaker *circuitbreaker.CircuitBreaker, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout(name))
	defer cancel()

	start := time.Now()
	var content string
	err := breaker.Execute(func() error {
		out, err := p.Generate(ctx, req)
		if err != nil {
			return err
		}
		content = strings.TrimSpace(out)
		if content == "" {
			return &ProviderError{Provider: name, Err: ErrEmptyResponse}
		}
		return nil
	})
	latency := time.Since(start)

	g.metrics.requestLatency.WithLabelValues(name).Observe(latency.Seconds())
	if err != nil {
		g.metrics.requests.WithLabelValues(name, outcomeError).Inc()
	} else {
		g.metrics.requests.WithLabelValues(name, outcomeSuccess).Inc()
	}
	g.recordResult(name, breaker.Counts(), latency, err)

	return content, err
}

func (g *Gateway) resources(name string) (Provider, *circuitbreaker.CircuitBreaker) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.providers[name], g.breakers[name]
}

func (g *Gateway) timeout(name string) time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if d, ok := g.timeouts[name]; ok {
		return d
	}
	return defaultTimeout
}

func (g *Gateway) recordResult(name string, counts gobreaker.Counts, latency time.Duration, err error) {
	status := g.HealthStatus(name)
	status.LastCheck = time.Now()
	status.Latency = latency
	status.RequestCount++
	status.ConsecutiveFails = int(counts.ConsecutiveFailures)
	if err != nil {
		status.Healthy = false
		status.ErrorCount++
		status.LastError = err.Error()
	} else {
		status.Healthy = true
		status.LastError = ""
	}
	g.UpdateHealthStatus(name, status)
}

// HealthStatus returns the last recorded status for name.
func (g *Gateway) HealthStatus(name string) HealthStatus {
	if v, ok := g.healthStates.Load(name); ok {
		return v.(HealthStatus)
	}
	return HealthStatus{}
}

// UpdateHealthStatus stores status for name.
func (g *Gateway) UpdateHealthStatus(name string, status HealthStatus) {
	g.healthStates.Store(name, status)
	g.metrics.healthyProviders.WithLabelValues(name).Set(boolGauge(status.Healthy))
}

// Statuses reports every provider for the health endpoint.
func (g *Gateway) Statuses() map[string]Status {
	out := make(map[string]Status)
	for _, name := range g.Names() {
		p, breaker := g.resources(name)
		h := g.HealthStatus(name)
		out[name] = Status{
			Available:  p.Available() && breaker.Allows(),
			Configured: p.Available(),
			Healthy:    h.Healthy,
			Breaker:    breaker.State().String(),
			LastError:  h.LastError,
		}
	}
	return out
}

// Probe sends a minimal request to every configured provider in parallel and
// records the outcome. It bypasses the breakers so an open provider can be
// observed recovering.
func (g *Gateway) Probe(ctx context.Context, timeout time.Duration) map[string]error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var (
		mu      sync.Mutex
		results = make(map[string]error)
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for _, name := range g.Names() {
		p, breaker := g.resources(name)
		if !p.Available() {
			continue
		}
		eg.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			_, err := p.Generate(pctx, Request{Message: "ping", Options: Options{MaxTokens: 5}})
			latency := time.Since(start)
			g.metrics.healthCheckDuration.Observe(latency.Seconds())

			if err != nil {
				g.metrics.healthCheckErrors.WithLabelValues(name).Inc()
				g.logger.Warn("provider health check failed",
					zap.String("provider", name),
					zap.Error(err),
					zap.Duration("latency", latency),
				)
			}
			g.recordResult(name, breaker.Counts(), latency, err)

			mu.Lock()
			results[name] = err
			mu.Unlock()
			// Probe failures are reported per provider, not as a group error.
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// requestKey identifies identical requests for deduplication.
func requestKey(req Request, preference []string) string {
	b, err := json.Marshal(struct {
		Request
		Preference []string
	}{req, preference})
	if err != nil {
		// Unencodable requests (NaN options) are never shared.
		return fmt.Sprintf("unshared-%d", time.Now().UnixNano())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// IsExhausted reports whether err means no provider produced a response.
func IsExhausted(err error) bool {
	return errors.Is(err, ErrAllProvidersFailed)
}
