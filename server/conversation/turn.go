// Package conversation defines the turn model shared by session memory,
// providers and the chat pipeline.
package conversation

import (
	"strings"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// User builds a user turn.
func User(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// Assistant builds an assistant turn.
func Assistant(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// LastUser returns the index of the last non-empty user turn, or -1.
func LastUser(turns []Turn) int {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleUser && turns[i].Content != "" {
			return i
		}
	}
	return -1
}

// Normalize maps anything that is not a user or system turn to the
// assistant role, the way chat history from clients is interpreted.
func Normalize(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		role := Role(strings.ToLower(string(t.Role)))
		if role != RoleUser && role != RoleSystem {
			role = RoleAssistant
		}
		out = append(out, Turn{Role: role, Content: t.Content, Timestamp: t.Timestamp})
	}
	return out
}
