// Package dispatch picks which character answers a group chat message:
// explicit mentions first, then keyword scoring, optionally an LLM
// classifier.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/teilomillet/wave/server/persona"
	"github.com/teilomillet/wave/server/provider"
	"go.uber.org/zap"
)

// Strategy selects how far routing goes past mentions.
type Strategy string

const (
	// StrategyKeyword: mention, then keyword scores, then the default character.
	StrategyKeyword Strategy = "keyword"
	// StrategyHybrid asks the LLM only when no keyword matched.
	StrategyHybrid Strategy = "hybrid"
	// StrategyLLM asks the LLM right after mentions; keywords are the fallback.
	StrategyLLM Strategy = "llm"
)

// ParseStrategy validates a configured strategy name. Empty means keyword.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyKeyword:
		return StrategyKeyword, nil
	case StrategyHybrid:
		return StrategyHybrid, nil
	case StrategyLLM:
		return StrategyLLM, nil
	}
	return "", fmt.Errorf("invalid routing strategy: %s", s)
}

// Source records which step produced a decision.
type Source string

const (
	SourceMention Source = "mention"
	SourceKeyword Source = "keyword"
	SourceDefault Source = "default"
	SourceLLM     Source = "llm"
)

// ReasonMention is the reason given for explicit mentions.
const ReasonMention = "explicit mention"

// Decision is the routing result for one message.
type Decision struct {
	CharacterID string `json:"charId"`
	Name        string `json:"charName"`
	Emoji       string `json:"charEmoji"`
	Reason      string `json:"reason"`
	Source      Source `json:"-"`
}

// Generator is the part of provider.Gateway the LLM classifier needs.
type Generator interface {
	Generate(ctx context.Context, req provider.Request, preference []string) (provider.Result, error)
}

// Router is safe for concurrent use.
type Router struct {
	registry  *persona.Registry
	generator Generator
	provider  string
	strategy  atomic.Value // Strategy
	logger    *zap.Logger
	decisions *prometheus.CounterVec
}

// Option configures a Router.
type Option func(*Router)

// WithStrategy sets the initial strategy.
func WithStrategy(s Strategy) Option {
	return func(r *Router) { r.strategy.Store(s) }
}

// WithGenerator enables LLM classification.
func WithGenerator(g Generator) Option {
	return func(r *Router) { r.generator = g }
}

// WithProvider pins classifier calls to one provider, overriding the
// request's preference.
func WithProvider(name string) Option {
	return func(r *Router) { r.provider = name }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithMetrics registers the decision counter on registry.
func WithMetrics(registry prometheus.Registerer) Option {
	return func(r *Router) {
		r.decisions = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "wave_routing_decisions_total",
			Help: "Group chat routing decisions by source and character",
		}, []string{"source", "character"})
	}
}

// NewRouter builds a router over the registry's characters.
func NewRouter(registry *persona.Registry, opts ...Option) *Router {
	r := &Router{registry: registry, logger: zap.NewNop()}
	r.strategy.Store(StrategyKeyword)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetStrategy switches strategy at runtime.
func (r *Router) SetStrategy(s Strategy) {
	r.strategy.Store(s)
}

// Strategy returns the active strategy.
func (r *Router) Strategy() Strategy {
	return r.strategy.Load().(Strategy)
}

// Route picks a character for message. It always returns a decision;
// classifier failures degrade to keyword scoring. preference is passed to
// the gateway for the classifier call.
func (r *Router) Route(ctx context.Context, message string, preference []string) Decision {
	d := r.route(ctx, message, preference)
	if r.decisions != nil {
		r.decisions.WithLabelValues(string(d.Source), d.CharacterID).Inc()
	}
	r.logger.Debug("routed message",
		zap.String("character", d.CharacterID),
		zap.String("source", string(d.Source)),
		zap.String("reason", d.Reason),
	)
	return d
}

func (r *Router) route(ctx context.Context, message string, preference []string) Decision {
	if d, ok := r.ByMention(message); ok {
		return d
	}

	strategy := r.Strategy()
	if r.generator == nil {
		strategy = StrategyKeyword
	}

	switch strategy {
	case StrategyLLM:
		d, err := r.ByLLM(ctx, message, preference)
		if err == nil {
			return d
		}
		r.logger.Warn("llm routing failed, using keywords", zap.Error(err))
		return r.ByKeywords(message)

	case StrategyHybrid:
		d := r.ByKeywords(message)
		if d.Source != SourceDefault {
			return d
		}
		ld, err := r.ByLLM(ctx, message, preference)
		if err == nil {
			return ld
		}
		r.logger.Warn("llm routing failed, using default character", zap.Error(err))
		return d

	default:
		return r.ByKeywords(message)
	}
}

// ByMention returns the first character, in registry order, whose handle
// appears in message. Matching ignores case.
func (r *Router) ByMention(message string) (Decision, bool) {
	lower := strings.ToLower(message)
	for _, c := range r.registry.List() {
		for _, handle := range c.Mentions {
			if handle != "" && strings.Contains(lower, strings.ToLower(handle)) {
				return decision(c, ReasonMention, SourceMention), true
			}
		}
	}
	return Decision{}, false
}

// ByKeywords scores each routable character by how many of its keywords
// occur in message. The highest non-zero score wins and ties go to the
// earlier character. With no match the default character is returned.
func (r *Router) ByKeywords(message string) Decision {
	lower := strings.ToLower(message)

	var (
		best      persona.Character
		bestScore int
	)
	for _, c := range r.registry.Routable() {
		score := Score(lower, c.Keywords)
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if bestScore > 0 {
		reason := best.KeywordReason
		if reason == "" {
			reason = "keyword match"
		}
		return decision(best, reason, SourceKeyword)
	}

	def := r.registry.Default()
	reason := def.DefaultReason
	if reason == "" {
		reason = "기본 선택"
	}
	return decision(def, reason, SourceDefault)
}

// Score counts the distinct keywords contained in message. message is
// expected to be lowercased already.
func Score(message string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(message, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func decision(c persona.Character, reason string, source Source) Decision {
	return Decision{
		CharacterID: c.ID,
		Name:        c.Name,
		Emoji:       c.Emoji,
		Reason:      reason,
		Source:      source,
	}
}
