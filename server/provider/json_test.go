package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"fenced json", "설명\n```json\n{\"a\": 1}\n```\n끝", `{"a": 1}`},
		{"fenced without language", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"braces in prose", `답변: {"character": "char_2"} 입니다`, `{"character": "char_2"}`},
		{"outermost span", `{"a": {"b": 1}} trailing }`, `{"a": {"b": 1}} trailing }`},
		{"plain", "  not json  ", "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.content))
		})
	}
}
