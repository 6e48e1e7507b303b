package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastUser(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
		want  int
	}{
		{"empty", nil, -1},
		{"only assistant", []Turn{Assistant("hi")}, -1},
		{"last is user", []Turn{User("a"), Assistant("b"), User("c")}, 2},
		{"user before assistant", []Turn{User("a"), Assistant("b")}, 0},
		{"empty user skipped", []Turn{User("a"), User("")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastUser(tt.turns))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := []Turn{
		{Role: "USER", Content: "a"},
		{Role: "ai", Content: "b"},
		{Role: "system", Content: "c"},
		{Role: "assistant", Content: "d"},
	}
	out := Normalize(in)
	assert.Equal(t, []Role{RoleUser, RoleAssistant, RoleSystem, RoleAssistant},
		[]Role{out[0].Role, out[1].Role, out[2].Role, out[3].Role})
	assert.Equal(t, "b", out[1].Content)
}
