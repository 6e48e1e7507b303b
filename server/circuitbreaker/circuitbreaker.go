// Package circuitbreaker wraps sony/gobreaker with logging and Prometheus
// state metrics. One breaker guards one provider.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Config holds configuration for the circuit breaker.
type Config struct {
	Name             string
	MaxRequests      uint32        // calls allowed through while half-open
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open period before half-open
	FailureThreshold uint32        // consecutive failures that trip the breaker
	TestMode         bool          // skip metric registration
}

// CircuitBreaker guards calls to one dependency.
type CircuitBreaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
	metrics *Metrics
}

// NewCircuitBreaker creates a breaker. registry may be nil.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if cfg.Name == "" {
		return nil, errors.New("circuit breaker requires a name")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var m *Metrics
	if !cfg.TestMode && registry != nil {
		var err error
		if m, err = NewMetrics(registry); err != nil {
			return nil, err
		}
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 3
	}

	cb := &CircuitBreaker{
		name:    cfg.Name,
		logger:  logger,
		metrics: m,
	}

	cb.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cb.onStateChange,
	})
	cb.metrics.setState(cfg.Name, gobreaker.StateClosed)

	return cb, nil
}

func (cb *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	cb.metrics.setState(name, to)
	if to == gobreaker.StateOpen {
		cb.metrics.trip(name)
		cb.logger.Warn("circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	cb.logger.Info("circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f unless the breaker is open. f's error counts as a failure.
func (cb *CircuitBreaker) Execute(f func() error) error {
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) && !errors.Is(err, gobreaker.ErrTooManyRequests) {
		cb.metrics.failure(cb.name)
	}
	return err
}

// Allows reports whether a call would currently be let through. Half-open
// breakers report true even if their probe budget is spent.
func (cb *CircuitBreaker) Allows() bool {
	return cb.breaker.State() != gobreaker.StateOpen
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

// Counts returns the counts of the current generation.
func (cb *CircuitBreaker) Counts() gobreaker.Counts {
	return cb.breaker.Counts()
}
