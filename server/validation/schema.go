package validation

import (
	"strings"

	"github.com/teilomillet/wave/server/conversation"
	"github.com/teilomillet/wave/server/persona"
)

// ProviderAuto selects the configured provider preference.
const ProviderAuto = "auto"

// Message is one chat turn as clients send it. Any role other than user or
// system is read as assistant.
type Message struct {
	Role      string `json:"role" validate:"required,max=32"`
	Content   string `json:"content" validate:"required"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ChatRequest is the memory-aware chat body.
type ChatRequest struct {
	CharacterID string          `json:"character_id" validate:"required,max=64"`
	Messages    []Message       `json:"messages" validate:"required,min=1,dive"`
	Profile     persona.Profile `json:"profile"`
	Provider    string          `json:"provider" validate:"omitempty,max=64"`
	UseMemory   *bool           `json:"use_memory"`
	UserID      string          `json:"user_id" validate:"omitempty,max=128"`
}

// MemoryEnabled reports use_memory, which defaults to true.
func (r ChatRequest) MemoryEnabled() bool {
	return r.UseMemory == nil || *r.UseMemory
}

// GroupChatRequest is the body of the group-aware chat endpoint.
type GroupChatRequest struct {
	CharacterID string          `json:"characterId" validate:"required,max=64"`
	Message     string          `json:"message" validate:"required"`
	Profile     persona.Profile `json:"profile"`
	ChatHistory []Message       `json:"chatHistory" validate:"omitempty,dive"`
}

// DiaryRequest is the diary drafting body. An empty message list is valid.
type DiaryRequest struct {
	Messages []string `json:"messages" validate:"omitempty,max=500"`
	Provider string   `json:"provider" validate:"omitempty,max=64"`
}

// Turns converts client messages to conversation turns.
func Turns(messages []Message) []conversation.Turn {
	turns := make([]conversation.Turn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, conversation.Turn{
			Role:    conversation.Role(m.Role),
			Content: m.Content,
		})
	}
	return conversation.Normalize(turns)
}

// Preference turns a provider field into a preference list: nil for auto or
// blank, otherwise the single named provider.
func Preference(provider string) []string {
	p := strings.TrimSpace(provider)
	if p == "" || strings.EqualFold(p, ProviderAuto) {
		return nil
	}
	return []string{p}
}
