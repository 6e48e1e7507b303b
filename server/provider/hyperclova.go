package provider

import (
	"context"
	"net/http"

	"github.com/teilomillet/wave/config"
)

// DefaultHyperCLOVAURL is the CLOVA Studio HCX-003 chat completion endpoint.
const DefaultHyperCLOVAURL = "https://clovastudio.stream.ntruss.com/testapp/v1/chat-completions/HCX-003"

// HyperCLOVA calls Naver CLOVA Studio. It needs both the studio key and the
// API gateway key.
type HyperCLOVA struct {
	name        string
	url         string
	apiKey      string
	gatewayKey  string
	temperature float64
	maxTokens   int
	client      *http.Client
}

// NewHyperCLOVA builds the provider from cfg.
func NewHyperCLOVA(name string, cfg config.ProviderConfig, client *http.Client) *HyperCLOVA {
	if client == nil {
		client = http.DefaultClient
	}
	url := cfg.BaseURL
	if url == "" {
		url = DefaultHyperCLOVAURL
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 256
	}
	return &HyperCLOVA{
		name:        name,
		url:         url,
		apiKey:      cfg.APIKey,
		gatewayKey:  cfg.SecondaryKey,
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      client,
	}
}

func (h *HyperCLOVA) Name() string { return h.name }

func (h *HyperCLOVA) Available() bool {
	return h.apiKey != "" && h.gatewayKey != ""
}

type clovaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type clovaRequest struct {
	Messages         []clovaMessage `json:"messages"`
	TopP             float64        `json:"topP"`
	TopK             int            `json:"topK"`
	MaxTokens        int            `json:"maxTokens"`
	Temperature      float64        `json:"temperature"`
	RepeatPenalty    float64        `json:"repeatPenalty"`
	StopBefore       []string       `json:"stopBefore"`
	IncludeAIFilters bool           `json:"includeAiFilters"`
}

type clovaResponse struct {
	Result struct {
		Message clovaMessage `json:"message"`
	} `json:"result"`
}

func (h *HyperCLOVA) Generate(ctx context.Context, req Request) (string, error) {
	if err := requireCredentials(h.name, h.Available()); err != nil {
		return "", err
	}

	opts := req.Options.withDefaults(h.temperature, h.maxTokens)
	turns := req.Messages()
	messages := make([]clovaMessage, len(turns))
	for i, t := range turns {
		messages[i] = clovaMessage{Role: string(t.Role), Content: t.Content}
	}

	body := clovaRequest{
		Messages:         messages,
		TopP:             0.8,
		TopK:             0,
		MaxTokens:        opts.MaxTokens,
		Temperature:      opts.Temperature,
		RepeatPenalty:    5.0,
		StopBefore:       []string{},
		IncludeAIFilters: true,
	}

	var resp clovaResponse
	err := postJSON(ctx, h.client, h.name, h.url, map[string]string{
		"X-NCP-CLOVASTUDIO-API-KEY": h.apiKey,
		"X-NCP-APIGW-API-KEY":       h.gatewayKey,
	}, body, &resp)
	if err != nil {
		return "", err
	}
	return resp.Result.Message.Content, nil
}
