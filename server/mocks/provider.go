package mocks

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teilomillet/wave/server/provider"
)

// MockProvider implements provider.Provider with a swappable GenerateFunc.
type MockProvider struct {
	ProviderName string
	Configured   bool

	mu           sync.Mutex
	GenerateFunc func(context.Context, provider.Request) (string, error)
	requests     []provider.Request
	calls        atomic.Int32
}

var _ provider.Provider = (*MockProvider)(nil)

// NewMockProvider returns a configured provider answering with fn.
func NewMockProvider(name string, fn func(context.Context, provider.Request) (string, error)) *MockProvider {
	return &MockProvider{ProviderName: name, Configured: true, GenerateFunc: fn}
}

// NewStaticProvider returns a configured provider that always answers reply.
func NewStaticProvider(name, reply string) *MockProvider {
	return NewMockProvider(name, func(context.Context, provider.Request) (string, error) {
		return reply, nil
	})
}

// NewUnconfiguredProvider returns a provider without credentials.
func NewUnconfiguredProvider(name string) *MockProvider {
	return &MockProvider{ProviderName: name}
}

func (m *MockProvider) Name() string { return m.ProviderName }

func (m *MockProvider) Available() bool { return m.Configured }

func (m *MockProvider) Generate(ctx context.Context, req provider.Request) (string, error) {
	m.calls.Add(1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(ctx, req)
}

// SetGenerateFunc swaps the behaviour between calls.
func (m *MockProvider) SetGenerateFunc(fn func(context.Context, provider.Request) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = fn
}

// Calls returns how many times Generate ran.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []provider.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.Request(nil), m.requests...)
}
