package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/wave/config"
)

// Gollm adapts any backend the gollm library supports (openai, anthropic,
// groq, ollama, ...). The backend is chosen by ProviderConfig.Backend.
//
// gollm fixes sampling parameters per client, so per-request temperature is
// not honoured; the configured temperature applies to every call.
type Gollm struct {
	name string
	llm  gollm.LLM
}

// NewGollm creates the gollm client. An unconfigured provider gets no client
// and reports itself unavailable.
func NewGollm(name string, cfg config.ProviderConfig) (*Gollm, error) {
	if !cfg.Configured() {
		return &Gollm{name: name}, nil
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 256
	}

	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Backend),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
		gollm.SetMaxTokens(maxTokens),
		// The gateway moves on to the next provider instead of retrying.
		gollm.SetMaxRetries(0),
		gollm.SetRetryDelay(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gollm.SetTimeout(cfg.Timeout))
	}
	if cfg.Backend == "ollama" && cfg.BaseURL != "" {
		opts = append(opts, gollm.SetOllamaEndpoint(cfg.BaseURL))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm %s client: %w", cfg.Backend, err)
	}
	if cfg.Temperature > 0 {
		llm.SetOption("temperature", cfg.Temperature)
	}
	return &Gollm{name: name, llm: llm}, nil
}

// NewGollmWithLLM wraps an existing client.
func NewGollmWithLLM(name string, llm gollm.LLM) *Gollm {
	return &Gollm{name: name, llm: llm}
}

func (g *Gollm) Name() string { return g.name }

func (g *Gollm) Available() bool { return g.llm != nil }

func (g *Gollm) Generate(ctx context.Context, req Request) (string, error) {
	if err := requireCredentials(g.name, g.Available()); err != nil {
		return "", err
	}

	prompt := gollm.NewPrompt(req.Message)
	prompt.SystemPrompt = req.System
	for _, t := range req.History {
		if t.Content == "" {
			continue
		}
		prompt.Messages = append(prompt.Messages, gollm.PromptMessage{Role: string(t.Role), Content: t.Content})
	}

	out, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return "", &ProviderError{Provider: g.name, Err: err}
	}
	return out, nil
}
