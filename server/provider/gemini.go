package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/conversation"
	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	name        string
	model       string
	client      *genai.Client
	temperature float64
	maxTokens   int
}

// NewGemini creates the genai client. Unconfigured providers get no client.
func NewGemini(ctx context.Context, name string, cfg config.ProviderConfig) (*Gemini, error) {
	g := &Gemini{
		name:        name,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
	if g.model == "" {
		g.model = "gemini-2.0-flash"
	}
	if !cfg.Configured() {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	g.client = client
	return g, nil
}

func (g *Gemini) Name() string { return g.name }

func (g *Gemini) Available() bool { return g.client != nil }

func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	if err := requireCredentials(g.name, g.Available()); err != nil {
		return "", err
	}

	var contents []*genai.Content
	for _, t := range req.History {
		if t.Content == "" || t.Role == conversation.RoleSystem {
			continue
		}
		role := genai.RoleUser
		if t.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Message}},
	})

	opts := req.Options.withDefaults(g.temperature, g.maxTokens)
	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if opts.Temperature > 0 {
		temperature := float32(opts.Temperature)
		genCfg.Temperature = &temperature
	}
	if opts.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", &ProviderError{Provider: g.name, Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &ProviderError{Provider: g.name, Err: ErrEmptyResponse}
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
