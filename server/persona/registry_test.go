package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtinRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Builtin()
	require.NoError(t, err)
	return reg
}

func TestBuiltinCharacters(t *testing.T) {
	reg := builtinRegistry(t)

	chars := reg.List()
	require.Len(t, chars, 4)

	want := []struct{ id, name, emoji string }{
		{"char_1", "루미", "💡"},
		{"char_2", "카이", "🌊"},
		{"char_3", "레오", "🌙"},
		{"char_4", "리브", "🎵"},
	}
	for i, w := range want {
		assert.Equal(t, w.id, chars[i].ID)
		assert.Equal(t, w.name, chars[i].Name)
		assert.Equal(t, w.emoji, chars[i].Emoji)
		assert.NotEmpty(t, chars[i].Prompt)
		assert.NotEmpty(t, chars[i].Fallback)
	}

	routable := reg.Routable()
	require.Len(t, routable, 3)
	assert.Equal(t, "char_1", routable[0].ID)
	assert.Equal(t, "char_3", routable[2].ID)

	assert.Equal(t, "char_1", reg.Default().ID)
	assert.Equal(t, "char_group", reg.GroupID())
}

func TestResolveUnknownFallsBackToDefault(t *testing.T) {
	reg := builtinRegistry(t)

	c, ok := reg.FindByID("char_99")
	assert.False(t, ok)
	assert.Empty(t, c.ID)

	assert.Equal(t, "char_1", reg.Resolve("char_99").ID)
	assert.Equal(t, "char_2", reg.Resolve("char_2").ID)
}

func TestSystemPrompt(t *testing.T) {
	reg := builtinRegistry(t)

	tests := []struct {
		name     string
		id       string
		profile  Profile
		contains []string
	}{
		{
			name:    "full profile",
			id:      "char_1",
			profile: Profile{Nickname: "민지", AIInfo: "야근이 잦음", Locale: "en-US"},
			contains: []string{
				"You are 루미",
				"- 닉네임: 민지",
				"- AI가 알면 좋은 정보: 야근이 잦음",
				"- 언어: en-US",
				"6. 이전 대화 내용을 참고하여 맥락있는 대화를 이어가세요",
			},
		},
		{
			name:    "empty profile uses placeholders",
			id:      "char_2",
			profile: Profile{},
			contains: []string{
				"You are 카이",
				"- 닉네임: 익명",
				"- AI가 알면 좋은 정보: 없음",
				"- 언어: ko-KR",
			},
		},
		{
			name:     "unknown character uses default persona",
			id:       "nobody",
			contains: []string{"You are 루미"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, err := reg.SystemPrompt(tt.id, tt.profile)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, prompt, s)
			}
		})
	}
}

func TestSystemPromptStartsWithPersona(t *testing.T) {
	reg := builtinRegistry(t)

	prompt, err := reg.SystemPrompt("char_4", Profile{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(prompt, "당신은 '리브'입니다."))
}

func TestFallbackReply(t *testing.T) {
	reg := builtinRegistry(t)

	for _, id := range []string{"char_1", "char_2", "char_3", "char_4", "char_group", "unknown"} {
		t.Run(id, func(t *testing.T) {
			reply := reg.FallbackReply(id)
			assert.Contains(t, reg.Fallbacks(id), reply)
		})
	}

	assert.Equal(t, []string{"편하게 이야기해보세요. 적절한 답변을 드릴게요."}, reg.Fallbacks("char_group"))
	assert.Equal(t, reg.Fallbacks("char_1"), reg.Fallbacks("unknown"))
}

func TestFallbackReplyUsesPicker(t *testing.T) {
	reg := builtinRegistry(t)
	reg.intn = func(n int) int { return n - 1 }

	assert.Equal(t, "그런 일이 있었구나. 네 감정을 솔직하게 표현해줘서 고마워.", reg.FallbackReply("char_1"))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "no characters",
			doc:     "default_character: a\n",
			wantErr: "no characters",
		},
		{
			name: "duplicate ids",
			doc: `
characters:
  - {id: a, prompt: p, fallback: [x]}
  - {id: a, prompt: p, fallback: [x]}
`,
			wantErr: "duplicate character id",
		},
		{
			name: "missing prompt",
			doc: `
characters:
  - {id: a, fallback: [x]}
`,
			wantErr: "has no prompt",
		},
		{
			name: "missing fallback",
			doc: `
characters:
  - {id: a, prompt: p}
`,
			wantErr: "no fallback replies",
		},
		{
			name: "unknown default",
			doc: `
default_character: b
characters:
  - {id: a, prompt: p, fallback: [x]}
`,
			wantErr: "default character b",
		},
		{
			name: "bad template",
			doc: `
system_template: "{{.Prompt"
characters:
  - {id: a, prompt: p, fallback: [x]}
`,
			wantErr: "parse system template",
		},
		{
			name: "group collision",
			doc: `
group: {id: a, fallback: [y]}
characters:
  - {id: a, prompt: p, fallback: [x]}
`,
			wantErr: "collides",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMinimal(t *testing.T) {
	reg, err := Load(strings.NewReader(`
characters:
  - {id: a, name: A, prompt: hello, fallback: [x]}
`))
	require.NoError(t, err)

	assert.Equal(t, "a", reg.Default().ID)
	prompt, err := reg.SystemPrompt("a", Profile{})
	require.NoError(t, err)
	assert.Equal(t, "hello", prompt)
}

func TestWithDefault(t *testing.T) {
	reg := builtinRegistry(t)

	kai, err := reg.WithDefault("char_2")
	require.NoError(t, err)
	assert.Equal(t, "char_2", kai.Default().ID)
	assert.Equal(t, "char_1", reg.Default().ID)

	_, err = reg.WithDefault("missing")
	assert.Error(t, err)
}
