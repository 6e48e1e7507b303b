package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/conversation"
	"github.com/teilomillet/wave/server/mocks"
	"github.com/teilomillet/wave/server/provider"
)

func TestGollmProvider(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "gollm reply", nil
	})
	p := provider.NewGollmWithLLM("anthropic", llm)
	require.True(t, p.Available())

	out, err := p.Generate(context.Background(), provider.Request{
		System:  "be kind",
		Message: "hello",
		History: []conversation.Turn{conversation.Assistant("earlier")},
	})
	require.NoError(t, err)
	assert.Equal(t, "gollm reply", out)

	require.Len(t, llm.Prompts(), 1)
	seen := llm.Prompts()[0]
	assert.Equal(t, "hello", seen.Input)
	assert.Equal(t, "be kind", seen.SystemPrompt)
	assert.Equal(t, []gollm.PromptMessage{{Role: "assistant", Content: "earlier"}}, seen.Messages)
}

func TestGollmMakesOneUpstreamCall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := provider.NewGollm("local", config.ProviderConfig{
		Type:    "gollm",
		Backend: "ollama",
		Model:   "llama3.1",
		APIKey:  "unused",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	require.True(t, p.Available())

	start := time.Now()
	_, err = p.Generate(context.Background(), provider.Request{System: "be kind", Message: "hi"})
	require.Error(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGollmProviderError(t *testing.T) {
	llm := mocks.NewMockLLM(func(ctx context.Context, p *gollm.Prompt) (string, error) {
		return "", errors.New("rate limited")
	})
	p := provider.NewGollmWithLLM("groq", llm)

	_, err := p.Generate(context.Background(), provider.Request{Message: "hi"})
	var perr *provider.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "groq", perr.Provider)
}

func TestGollmUnconfigured(t *testing.T) {
	p := provider.NewGollmWithLLM("none", nil)
	assert.False(t, p.Available())

	_, err := p.Generate(context.Background(), provider.Request{Message: "hi"})
	assert.ErrorIs(t, err, provider.ErrNotConfigured)
}
