// Package processing runs the chat pipeline: character selection, prompt
// assembly, session memory and the provider call with its canned fallback.
package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teilomillet/wave/server/conversation"
	"github.com/teilomillet/wave/server/dispatch"
	"github.com/teilomillet/wave/server/memory"
	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/provider"
	"go.uber.org/zap"
)

// ModelFallback is reported as the model when a canned reply was used.
const ModelFallback = "fallback"

// deadlineMargin is kept back from the request deadline so the canned reply
// can still be written when the providers use up their share.
const deadlineMargin = 2 * time.Second

// ErrNoUserMessage is returned when a request has no user turn to answer.
var ErrNoUserMessage = errors.New("no user message found")

// Gateway is the part of provider.Gateway the processor uses.
type Gateway interface {
	Generate(ctx context.Context, req provider.Request, preference []string) (provider.Result, error)
	Has(name string) bool
}

// ChatRequest is a chat turn to answer.
type ChatRequest struct {
	CharacterID string
	Messages    []conversation.Turn
	Profile     persona.Profile

	// Preference overrides the configured provider order. Nil uses it.
	Preference []string

	UseMemory bool
	UserID    string
}

// ChatResult is the answer. Responding is set when the character was chosen
// by the router.
type ChatResult struct {
	Content    string
	ModelUsed  string
	MemoryUsed bool
	Fallback   bool
	Responding *dispatch.Decision
}

// Processor answers chat requests.
type Processor struct {
	registry *persona.Registry
	router   *dispatch.Router
	gateway  Gateway
	memory   memory.Store
	logger   *zap.Logger
}

// NewProcessor wires the pipeline. store may be nil, which disables memory.
func NewProcessor(registry *persona.Registry, router *dispatch.Router, gateway Gateway, store memory.Store, logger *zap.Logger) (*Processor, error) {
	if registry == nil {
		return nil, fmt.Errorf("persona registry is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("provider gateway is required")
	}
	if router == nil {
		router = dispatch.NewRouter(registry)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		registry: registry,
		router:   router,
		gateway:  gateway,
		memory:   store,
		logger:   logger,
	}, nil
}

// DefaultUserID is the session owner when the client sends none.
func DefaultUserID(characterID string) string {
	return "user_" + characterID
}

// Chat answers req. Provider failures never surface as errors: the
// character's canned reply is returned instead. Only malformed requests
// fail.
func (p *Processor) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	turns := conversation.Normalize(req.Messages)
	last := conversation.LastUser(turns)
	if last < 0 {
		return nil, ErrNoUserMessage
	}
	message := turns[last].Content

	for _, name := range req.Preference {
		if !p.gateway.Has(name) {
			return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, name)
		}
	}

	// Classification and the reply share one budget.
	callCtx, cancel := providerBudget(ctx)
	defer cancel()

	result := &ChatResult{}
	characterID := req.CharacterID
	if p.registry.IsGroup(characterID) {
		routeCtx, cancelRoute := halfRemaining(callCtx)
		d := p.router.Route(routeCtx, message, req.Preference)
		cancelRoute()
		result.Responding = &d
		characterID = d.CharacterID
	}

	system, err := p.registry.SystemPrompt(characterID, req.Profile)
	if err != nil {
		return nil, fmt.Errorf("build system prompt: %w", err)
	}

	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID(characterID)
	}
	logger := p.logger.With(
		zap.String("character", characterID),
		zap.String("user", userID),
	)

	useMemory := req.UseMemory && p.memory != nil
	history := turns[:last]
	if useMemory {
		h, err := p.sessionHistory(ctx, userID, characterID, turns)
		if err != nil {
			logger.Warn("session memory unavailable, answering without it", zap.Error(err))
			useMemory = false
		} else {
			history = h
		}
	}

	res, err := p.gateway.Generate(callCtx, provider.Request{
		System:  system,
		Message: message,
		History: history,
	}, req.Preference)
	if err != nil {
		logger.Warn("all providers failed, using canned reply", zap.Error(err))
		result.Content = p.registry.FallbackReply(characterID)
		result.ModelUsed = ModelFallback
		result.Fallback = true
		return result, nil
	}

	result.Content = res.Content
	result.ModelUsed = res.Provider

	if useMemory {
		err := p.memory.Append(ctx, userID, characterID,
			conversation.User(message),
			conversation.Assistant(res.Content),
		)
		if err != nil {
			logger.Warn("failed to store exchange", zap.Error(err))
			useMemory = false
		}
	}
	result.MemoryUsed = useMemory
	return result, nil
}

// sessionHistory returns the stored session, seeding an empty one with the
// request's earlier turns.
func (p *Processor) sessionHistory(ctx context.Context, userID, characterID string, turns []conversation.Turn) ([]conversation.Turn, error) {
	history, err := p.memory.Get(ctx, userID, characterID)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 || len(turns) < 2 {
		return history, nil
	}

	seed := turns[:len(turns)-1]
	if err := p.memory.Append(ctx, userID, characterID, seed...); err != nil {
		return nil, err
	}
	return p.memory.Get(ctx, userID, characterID)
}

// providerBudget bounds provider calls to the request deadline less a margin.
// Without a deadline the calls are bounded only by the provider timeouts.
func providerBudget(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	margin := deadlineMargin
	if remaining := time.Until(deadline); remaining < 4*margin {
		margin = remaining / 4
	}
	return context.WithDeadline(ctx, deadline.Add(-margin))
}

// halfRemaining leaves the reply at least half of what is left.
func halfRemaining(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Until(deadline)/2)
}
