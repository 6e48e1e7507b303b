package circuitbreaker

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
)

// Metrics are shared by every breaker registered on the same registry.
type Metrics struct {
	state    *prometheus.GaugeVec
	trips    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics registers breaker metrics, reusing collectors that are already
// registered so breakers can be rebuilt on config reload.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wave_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		trips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wave_circuit_breaker_trips_total",
			Help: "Total number of times the circuit breaker has tripped",
		}, []string{"name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wave_circuit_breaker_failures_total",
			Help: "Total number of failures recorded by the circuit breaker",
		}, []string{"name"}),
	}

	var err error
	if m.state, err = register(registry, m.state); err != nil {
		return nil, err
	}
	if m.trips, err = register(registry, m.trips); err != nil {
		return nil, err
	}
	if m.failures, err = register(registry, m.failures); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) setState(name string, s gobreaker.State) {
	if m == nil {
		return
	}
	// gobreaker orders states closed, half-open, open.
	m.state.WithLabelValues(name).Set(float64(s))
}

func (m *Metrics) trip(name string) {
	if m == nil {
		return
	}
	m.trips.WithLabelValues(name).Inc()
}

func (m *Metrics) failure(name string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(name).Inc()
}
