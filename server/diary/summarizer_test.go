package diary

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/wave/server/provider"
	"go.uber.org/zap"
)

type stubGenerator struct {
	reply    string
	provider string
	err      error
	requests []provider.Request
}

func (s *stubGenerator) Generate(_ context.Context, req provider.Request, _ []string) (provider.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return provider.Result{}, s.err
	}
	return provider.Result{Content: s.reply, Provider: s.provider}, nil
}

func TestSummarizeEmptyReturnsPlaceholder(t *testing.T) {
	gen := &stubGenerator{reply: `{"title":"x","emotion":"happy","content":"y"}`}
	s := NewSummarizer(gen, zap.NewNop())

	d := s.Summarize(context.Background(), nil, nil)
	assert.Equal(t, Placeholder, d)
	assert.Empty(t, gen.requests, "empty input must not reach a provider")
}

func TestSummarizeWithoutProviders(t *testing.T) {
	s := NewSummarizer(&stubGenerator{err: provider.ErrAllProvidersFailed}, zap.NewNop())

	d := s.Summarize(context.Background(), []string{"오늘 정말 행복했다", "좋은 일이 많았다"}, nil)
	assert.Equal(t, Happy, d.Emotion)
	assert.Equal(t, "기분 좋은 하루", d.Title)
	assert.Equal(t, "오늘 정말 행복했다 좋은 일이 많았다", d.Content)
	assert.Equal(t, FallbackProvider, d.Provider)
}

func TestSummarizeUsesModelReply(t *testing.T) {
	gen := &stubGenerator{
		provider: "openai",
		reply:    "```json\n{\"title\": \"산책한 날\", \"emotion\": \"Calm\", \"content\": \"공원을 걸었다.\"}\n```",
	}
	s := NewSummarizer(gen, zap.NewNop())

	d := s.Summarize(context.Background(), []string{"공원 산책", "날씨가 맑았다"}, []string{"openai"})
	assert.Equal(t, Draft{Title: "산책한 날", Emotion: Calm, Content: "공원을 걸었다.", Provider: "openai"}, d)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, systemPrompt, req.System)
	assert.Equal(t, "오늘 나눈 대화 내용:\n공원 산책\n날씨가 맑았다\n\n이를 바탕으로 일기 초안을 작성해주세요.", req.Message)
	assert.Equal(t, 512, req.Options.MaxTokens)
	assert.True(t, req.Options.JSON)
}

func TestSummarizeRejectsBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"not json", "오늘은 좋은 하루였습니다"},
		{"unknown emotion", `{"title":"t","emotion":"angry","content":"c"}`},
		{"empty title", `{"title":" ","emotion":"sad","content":"c"}`},
		{"empty content", `{"title":"t","emotion":"sad","content":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSummarizer(&stubGenerator{reply: tt.reply, provider: "p"}, zap.NewNop())
			d := s.Summarize(context.Background(), []string{"너무 피곤하다"}, nil)
			assert.Equal(t, FallbackProvider, d.Provider)
			assert.Equal(t, Tired, d.Emotion)
		})
	}
}

func TestSummarizeNilGenerator(t *testing.T) {
	s := NewSummarizer(nil, nil)
	d := s.Summarize(context.Background(), []string{"시험 때문에 걱정이다"}, nil)
	assert.Equal(t, Anxious, d.Emotion)
}

func TestFallbackEmotions(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		emotion  Emotion
		title    string
	}{
		{"happy", []string{"즐거운 저녁"}, Happy, "기분 좋은 하루"},
		{"sad", []string{"오늘 우울했어"}, Sad, "힘들었던 하루"},
		{"anxious", []string{"면접이라 긴장돼"}, Anxious, "불안했던 하루"},
		{"calm", []string{"차분하게 책을 읽었다"}, Calm, "평온한 하루"},
		{"excited", []string{"여행이 기대돼"}, Excited, "설레는 하루"},
		{"tired", []string{"졸려서 일찍 잤다"}, Tired, "피곤한 하루"},
		{"neutral", []string{"점심은 국수"}, Neutral, "오늘의 하루"},
		{"sad beats tired", []string{"일이 힘들었다"}, Sad, "힘들었던 하루"},
		{"happy beats sad", []string{"우울했지만 좋았다"}, Happy, "기분 좋은 하루"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Fallback(tt.messages)
			assert.Equal(t, tt.emotion, d.Emotion)
			assert.Equal(t, tt.title, d.Title)
		})
	}
}

func TestFallbackContent(t *testing.T) {
	t.Run("first three messages", func(t *testing.T) {
		d := Fallback([]string{"a", "b", "c", "d"})
		assert.Equal(t, "a b c", d.Content)
	})

	t.Run("truncated by runes", func(t *testing.T) {
		long := strings.Repeat("가", 200)
		d := Fallback([]string{long})
		assert.Equal(t, strings.Repeat("가", 150)+"...", d.Content)
	})

	t.Run("exactly at the limit", func(t *testing.T) {
		msg := strings.Repeat("나", 150)
		d := Fallback([]string{msg})
		assert.Equal(t, msg, d.Content)
	})
}

func TestParse(t *testing.T) {
	d, err := Parse(`설명: {"title":"t","emotion":"excited","content":"c"} 끝`)
	require.NoError(t, err)
	assert.Equal(t, Excited, d.Emotion)

	_, err = Parse(`{"title":"t","emotion":"joy","content":"c"}`)
	assert.True(t, errors.Is(err, ErrInvalidDraft))
}
