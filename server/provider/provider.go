// Package provider implements the LLM provider chain: a uniform Provider
// interface over each vendor and a Gateway that walks them in preference
// order behind per-provider circuit breakers.
package provider

import (
	"context"

	"github.com/teilomillet/wave/server/conversation"
)

// Options are the sampling parameters for one call. Zero values mean the
// provider's configured default.
type Options struct {
	Temperature float64
	MaxTokens   int
	JSON        bool // ask for a JSON object response where supported
}

// Request is a single chat completion request.
type Request struct {
	System  string
	Message string
	History []conversation.Turn
	Options Options
}

// Provider is one LLM backend.
type Provider interface {
	Name() string

	// Available reports whether the provider has the credentials it needs.
	// Unavailable providers are never attempted.
	Available() bool

	Generate(ctx context.Context, req Request) (string, error)
}

// Result is a successful generation.
type Result struct {
	Content  string
	Provider string
}

// Messages flattens a request into the system/history/user sequence most
// chat APIs take. The system turn is omitted when empty.
func (r Request) Messages() []conversation.Turn {
	out := make([]conversation.Turn, 0, len(r.History)+2)
	if r.System != "" {
		out = append(out, conversation.Turn{Role: conversation.RoleSystem, Content: r.System})
	}
	for _, t := range r.History {
		if t.Content == "" {
			continue
		}
		out = append(out, conversation.Turn{Role: t.Role, Content: t.Content})
	}
	return append(out, conversation.User(r.Message))
}

// withDefaults fills zero options from the provider configuration.
func (o Options) withDefaults(temperature float64, maxTokens int) Options {
	if o.Temperature == 0 {
		o.Temperature = temperature
	}
	if o.MaxTokens == 0 {
		o.MaxTokens = maxTokens
	}
	return o
}
