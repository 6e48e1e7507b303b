package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/teilomillet/wave/config"
	"github.com/teilomillet/wave/server/conversation"
)

// Ark calls Volcengine Ark through the eino chat model component.
type Ark struct {
	name        string
	chatModel   model.ChatModel
	temperature float64
	maxTokens   int
}

// NewArk creates the eino chat model. Unconfigured providers get no model.
func NewArk(ctx context.Context, name string, cfg config.ProviderConfig) (*Ark, error) {
	a := &Ark{name: name, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
	if !cfg.Configured() || cfg.Model == "" {
		return a, nil
	}

	var temperature *float32
	if cfg.Temperature > 0 {
		val := float32(cfg.Temperature)
		temperature = &val
	}
	var maxTokens *int
	if cfg.MaxTokens > 0 {
		val := cfg.MaxTokens
		maxTokens = &val
	}

	cm, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("create ark chat model: %w", err)
	}
	a.chatModel = cm
	return a, nil
}

// NewArkWithModel wraps an existing eino chat model.
func NewArkWithModel(name string, cm model.ChatModel) *Ark {
	return &Ark{name: name, chatModel: cm}
}

func (a *Ark) Name() string { return a.name }

func (a *Ark) Available() bool { return a.chatModel != nil }

func (a *Ark) Generate(ctx context.Context, req Request) (string, error) {
	if err := requireCredentials(a.name, a.Available()); err != nil {
		return "", err
	}

	turns := req.Messages()
	messages := make([]*schema.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleSystem:
			messages = append(messages, schema.SystemMessage(t.Content))
		case conversation.RoleUser:
			messages = append(messages, schema.UserMessage(t.Content))
		default:
			messages = append(messages, schema.AssistantMessage(t.Content, nil))
		}
	}

	var opts []model.Option
	if req.Options.Temperature > 0 {
		opts = append(opts, model.WithTemperature(float32(req.Options.Temperature)))
	}
	if req.Options.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.Options.MaxTokens))
	}

	msg, err := a.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", &ProviderError{Provider: a.name, Err: err}
	}
	if msg == nil {
		return "", &ProviderError{Provider: a.name, Err: ErrEmptyResponse}
	}
	return msg.Content, nil
}
