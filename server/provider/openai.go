package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/teilomillet/wave/config"
)

// DefaultOllamaBaseURL is the Ollama cloud OpenAI-compatible endpoint.
const DefaultOllamaBaseURL = "https://api.ollama.ai/v1"

// OpenAICompatible speaks the OpenAI chat completions wire format. It backs
// both the "openai" and the "ollama" provider types.
type OpenAICompatible struct {
	name        string
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewOpenAICompatible builds the provider from cfg.
func NewOpenAICompatible(name string, cfg config.ProviderConfig, client *http.Client) *OpenAICompatible {
	if client == nil {
		client = http.DefaultClient
	}
	base := cfg.BaseURL
	if base == "" {
		if cfg.Type == "ollama" {
			base = DefaultOllamaBaseURL
		} else {
			base = "https://api.openai.com/v1"
		}
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.8
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 150
	}
	return &OpenAICompatible{
		name:        name,
		baseURL:     strings.TrimRight(base, "/"),
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      client,
	}
}

func (o *OpenAICompatible) Name() string { return o.name }

func (o *OpenAICompatible) Available() bool {
	return o.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (o *OpenAICompatible) Generate(ctx context.Context, req Request) (string, error) {
	if err := requireCredentials(o.name, o.Available()); err != nil {
		return "", err
	}

	opts := req.Options.withDefaults(o.temperature, o.maxTokens)
	turns := req.Messages()
	messages := make([]chatMessage, len(turns))
	for i, t := range turns {
		messages[i] = chatMessage{Role: string(t.Role), Content: t.Content}
	}

	body := chatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	if opts.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatCompletionResponse
	err := postJSON(ctx, o.client, o.name, o.baseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + o.apiKey,
	}, body, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: o.name, Err: ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}
