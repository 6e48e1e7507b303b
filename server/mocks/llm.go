package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/gollm/utils"
)

// MockLLM is a gollm.LLM that answers through GenerateFunc and records every
// prompt it receives. Configuration setters are accepted and ignored.
type MockLLM struct {
	GenerateFunc func(context.Context, *gollm.Prompt) (string, error)

	mu      sync.Mutex
	prompts []*gollm.Prompt
	options map[string]interface{}
}

var _ gollm.LLM = (*MockLLM)(nil)

// NewMockLLM returns a MockLLM. A nil fn answers with an empty string.
func NewMockLLM(fn func(context.Context, *gollm.Prompt) (string, error)) *MockLLM {
	return &MockLLM{GenerateFunc: fn, options: make(map[string]interface{})}
}

func (m *MockLLM) Generate(ctx context.Context, prompt *gollm.Prompt, _ ...llm.GenerateOption) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn == nil {
		return "", nil
	}
	return fn(ctx, prompt)
}

func (m *MockLLM) GenerateWithSchema(ctx context.Context, prompt *gollm.Prompt, _ interface{}, opts ...llm.GenerateOption) (string, error) {
	return m.Generate(ctx, prompt, opts...)
}

// Prompts returns the prompts received so far.
func (m *MockLLM) Prompts() []*gollm.Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*gollm.Prompt(nil), m.prompts...)
}

// Option returns a value recorded by SetOption.
func (m *MockLLM) Option(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.options[key]
	return v, ok
}

func (m *MockLLM) SetOption(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.options[key] = value
}

func (m *MockLLM) NewPrompt(text string) *gollm.Prompt {
	return &gollm.Prompt{Messages: []gollm.PromptMessage{{Role: "user", Content: text}}}
}

func (m *MockLLM) GetPromptJSONSchema(...gollm.SchemaOption) ([]byte, error) {
	return []byte(`{}`), nil
}

func (m *MockLLM) SupportsJSONSchema() bool {
	return true
}

func (m *MockLLM) GetProvider() string {
	return "mock"
}

func (m *MockLLM) GetModel() string {
	return "mock-model"
}

func (m *MockLLM) GetLogLevel() gollm.LogLevel {
	return gollm.LogLevelInfo
}

func (m *MockLLM) GetLogger() utils.Logger {
	return nil
}

func (m *MockLLM) SetOllamaEndpoint(string) error {
	return nil
}

func (m *MockLLM) Debug(string, ...interface{}) {}

func (m *MockLLM) UpdateLogLevel(gollm.LogLevel) {}

func (m *MockLLM) SetLogLevel(gollm.LogLevel) {}

func (m *MockLLM) SetEndpoint(string) {}

func (m *MockLLM) SetSystemPrompt(string, llm.CacheType) {}
