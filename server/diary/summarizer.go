// Package diary condenses a day's chat messages into a diary draft.
package diary

import (
	"context"
	"strings"

	"github.com/teilomillet/wave/server/provider"
	"go.uber.org/zap"
)

// Emotion is the mood label attached to a draft.
type Emotion string

const (
	Happy   Emotion = "happy"
	Sad     Emotion = "sad"
	Anxious Emotion = "anxious"
	Calm    Emotion = "calm"
	Excited Emotion = "excited"
	Tired   Emotion = "tired"
	Neutral Emotion = "neutral"
)

// Valid reports whether e is one of the known labels.
func (e Emotion) Valid() bool {
	switch e {
	case Happy, Sad, Anxious, Calm, Excited, Tired, Neutral:
		return true
	}
	return false
}

// Draft is a generated diary entry.
type Draft struct {
	Title   string  `json:"title"`
	Emotion Emotion `json:"emotion"`
	Content string  `json:"content"`

	// Provider names who wrote the draft: a provider name, "fallback" for
	// the keyword heuristic, or empty for the placeholder.
	Provider string `json:"-"`
}

// Placeholder is returned for an empty message list.
var Placeholder = Draft{
	Title:   "오늘의 하루",
	Emotion: Neutral,
	Content: "오늘 하루를 되돌아보며 기록해보세요.",
}

const (
	systemPrompt = `당신은 사용자의 하루 대화를 읽고 짧은 일기 초안을 작성하는 도우미입니다.
다음 JSON 형식으로만 답변하세요:
{
  "title": "일기 제목 (20자 이내)",
  "emotion": "happy|sad|anxious|calm|excited|tired|neutral 중 하나",
  "content": "1인칭 시점의 일기 본문 (3~5문장)"
}`

	maxTokens      = 512
	previewLen     = 150
	previewSources = 3

	// FallbackProvider tags drafts built by the keyword heuristic.
	FallbackProvider = "fallback"
)

// Generator is the slice of the provider gateway the summarizer needs.
type Generator interface {
	Generate(ctx context.Context, req provider.Request, preference []string) (provider.Result, error)
}

// Summarizer turns chat messages into a Draft.
type Summarizer struct {
	gen    Generator
	logger *zap.Logger
}

// NewSummarizer returns a Summarizer. A nil generator always uses the
// keyword heuristic.
func NewSummarizer(gen Generator, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{gen: gen, logger: logger}
}

// Summarize never fails: provider and parse errors are logged and the
// keyword heuristic answers instead.
func (s *Summarizer) Summarize(ctx context.Context, messages []string, preference []string) Draft {
	if len(messages) == 0 {
		return Placeholder
	}
	if s.gen == nil {
		return Fallback(messages)
	}

	res, err := s.gen.Generate(ctx, provider.Request{
		System:  systemPrompt,
		Message: "오늘 나눈 대화 내용:\n" + strings.Join(messages, "\n") + "\n\n이를 바탕으로 일기 초안을 작성해주세요.",
		Options: provider.Options{MaxTokens: maxTokens, JSON: true},
	}, preference)
	if err != nil {
		s.logger.Warn("diary generation failed, using keyword fallback", zap.Error(err))
		return Fallback(messages)
	}

	draft, err := Parse(res.Content)
	if err != nil {
		s.logger.Warn("diary reply rejected, using keyword fallback",
			zap.String("provider", res.Provider),
			zap.Error(err),
		)
		return Fallback(messages)
	}
	draft.Provider = res.Provider
	return draft
}
