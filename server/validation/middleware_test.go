package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/wave/errors"
)

type fixedTokenizer int

func (f fixedTokenizer) CountTokens(string) int { return int(f) }

func TestDecodeChatRequest(t *testing.T) {
	v := New(nil, 0)

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
		wantField   string
	}{
		{
			name:        "valid",
			contentType: "application/json",
			body:        `{"character_id":"char_1","messages":[{"role":"user","content":"안녕"}],"profile":{"nickname":"민지"}}`,
		},
		{
			name:        "charset parameter accepted",
			contentType: "application/json; charset=utf-8",
			body:        `{"character_id":"char_1","messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name:        "missing content type accepted",
			contentType: "",
			body:        `{"character_id":"char_1","messages":[{"role":"user","content":"hi"}]}`,
		},
		{
			name:        "wrong content type",
			contentType: "text/plain",
			body:        `{}`,
			wantErr:     true,
		},
		{
			name:        "invalid json",
			contentType: "application/json",
			body:        `{"character_id":`,
			wantErr:     true,
		},
		{
			name:        "missing character",
			contentType: "application/json",
			body:        `{"messages":[{"role":"user","content":"hi"}]}`,
			wantErr:     true,
			wantField:   "character_id",
		},
		{
			name:        "empty messages",
			contentType: "application/json",
			body:        `{"character_id":"char_1","messages":[]}`,
			wantErr:     true,
			wantField:   "messages",
		},
		{
			name:        "empty content",
			contentType: "application/json",
			body:        `{"character_id":"char_1","messages":[{"role":"user","content":""}]}`,
			wantErr:     true,
			wantField:   "messages[0].content",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/chat", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			var req ChatRequest
			werr := v.Decode(r, "req-1", &req)
			if !tt.wantErr {
				require.Nil(t, werr)
				assert.Equal(t, "char_1", req.CharacterID)
				return
			}

			require.NotNil(t, werr)
			assert.Equal(t, errors.ValidationError, werr.Type)
			assert.Equal(t, 400, werr.Code)
			assert.Equal(t, "req-1", werr.RequestID)
			if tt.wantField != "" {
				fields := werr.Details["fields"].([]map[string]string)
				require.NotEmpty(t, fields)
				assert.Equal(t, tt.wantField, fields[0]["field"])
			}
		})
	}
}

func TestDecodeGroupChatRequest(t *testing.T) {
	v := New(nil, 0)

	r := httptest.NewRequest("POST", "/ai/chat", strings.NewReader(
		`{"characterId":"char_group","message":"","chatHistory":[]}`))
	var req GroupChatRequest
	werr := v.Decode(r, "", &req)
	require.NotNil(t, werr)

	r = httptest.NewRequest("POST", "/ai/chat", strings.NewReader(
		`{"characterId":"char_group","message":"@kai 운동 추천해줘","chatHistory":[{"role":"ai","content":"안녕"}]}`))
	req = GroupChatRequest{}
	require.Nil(t, v.Decode(r, "", &req))
	assert.Equal(t, "assistant", string(Turns(req.ChatHistory)[0].Role))
}

func TestDiaryRequestAllowsEmpty(t *testing.T) {
	v := New(nil, 0)
	r := httptest.NewRequest("POST", "/diary/generate", strings.NewReader(`{"messages":[]}`))
	var req DiaryRequest
	assert.Nil(t, v.Decode(r, "", &req))
}

func TestMemoryEnabledDefault(t *testing.T) {
	off := false
	assert.True(t, ChatRequest{}.MemoryEnabled())
	assert.False(t, ChatRequest{UseMemory: &off}.MemoryEnabled())
}

func TestPreference(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"auto", nil},
		{"AUTO", nil},
		{"hyperclova", []string{"hyperclova"}},
		{" ollama ", []string{"ollama"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Preference(tt.in))
		})
	}
}

func TestTokens(t *testing.T) {
	v := New(NewTokenCounterWith(fixedTokenizer(10)), 25)
	assert.Nil(t, v.Tokens("r", "a", "b"))

	werr := v.Tokens("r", "a", "b", "c")
	require.NotNil(t, werr)
	assert.Equal(t, "Token limit exceeded", werr.Message)

	unlimited := New(NewTokenCounterWith(fixedTokenizer(10)), 0)
	assert.Nil(t, unlimited.Tokens("r", "a", "b", "c"))

	assert.Nil(t, New(nil, 1).Tokens("r", "long text"))
}

func TestRuneEstimate(t *testing.T) {
	assert.Equal(t, 5, runeEstimate{}.CountTokens("안녕하세요"))
}
