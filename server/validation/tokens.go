package validation

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer counts tokens in a piece of text.
type Tokenizer interface {
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement Tokenizer.
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// runeEstimate is used when no BPE can be loaded. Korean text averages
// close to one token per rune with the cl100k encodings.
type runeEstimate struct{}

func (runeEstimate) CountTokens(text string) int {
	return utf8.RuneCountInString(text)
}

// TokenCounter loads its encoding on first use.
type TokenCounter struct {
	model  string
	logger *zap.Logger

	once      sync.Once
	tokenizer Tokenizer
}

// NewTokenCounter returns a counter for model. Nothing is loaded until the
// first count.
func NewTokenCounter(model string, logger *zap.Logger) *TokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCounter{model: model, logger: logger}
}

// NewTokenCounterWith uses t directly.
func NewTokenCounterWith(t Tokenizer) *TokenCounter {
	tc := &TokenCounter{tokenizer: t, logger: zap.NewNop()}
	tc.once.Do(func() {})
	return tc
}

func (tc *TokenCounter) load() Tokenizer {
	tc.once.Do(func() {
		encoding, err := tiktoken.EncodingForModel(tc.model)
		if err != nil {
			tc.logger.Warn("tokenizer unavailable, estimating by rune count",
				zap.String("model", tc.model),
				zap.Error(err),
			)
			tc.tokenizer = runeEstimate{}
			return
		}
		tc.tokenizer = &tiktokenWrapper{encoding}
	})
	return tc.tokenizer
}

// Count returns the total tokens in texts.
func (tc *TokenCounter) Count(texts ...string) int {
	t := tc.load()
	total := 0
	for _, s := range texts {
		total += t.CountTokens(s)
	}
	return total
}

// Check fails when texts exceed limit tokens. A non-positive limit disables
// the check.
func (tc *TokenCounter) Check(limit int, texts ...string) error {
	if limit <= 0 {
		return nil
	}
	if n := tc.Count(texts...); n > limit {
		return fmt.Errorf("total tokens (%d) exceeds limit (%d)", n, limit)
	}
	return nil
}
