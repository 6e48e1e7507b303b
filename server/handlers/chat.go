package handlers

import (
	"net/http"

	"github.com/teilomillet/wave/errors"
	"github.com/teilomillet/wave/server/conversation"
	"github.com/teilomillet/wave/server/dispatch"
	"github.com/teilomillet/wave/server/middleware"
	"github.com/teilomillet/wave/server/processing"
	"github.com/teilomillet/wave/server/provider"
	"github.com/teilomillet/wave/server/validation"
)

// ChatResponse is the body of POST /chat.
type ChatResponse struct {
	Content             string             `json:"content"`
	ModelUsed           string             `json:"model_used"`
	MemoryUsed          bool               `json:"memory_used"`
	RespondingCharacter *dispatch.Decision `json:"responding_character,omitempty"`
	Fallback            bool               `json:"fallback,omitempty"`
}

// GroupChatResponse is the body of POST /ai/chat.
type GroupChatResponse struct {
	Content             string             `json:"content"`
	RespondingCharacter *dispatch.Decision `json:"respondingCharacter,omitempty"`
	Fallback            bool               `json:"fallback"`
}

// Chat handles POST /chat.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.ChatRequest
	if werr := h.Validator.Decode(r, requestID, &req); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	texts := make([]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		texts = append(texts, m.Content)
	}
	if werr := h.Validator.Tokens(requestID, texts...); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	preference := validation.Preference(req.Provider)
	if werr := h.checkPreference(requestID, preference); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	res, err := h.Processor.Chat(r.Context(), processing.ChatRequest{
		CharacterID: req.CharacterID,
		Messages:    validation.Turns(req.Messages),
		Profile:     req.Profile,
		Preference:  preference,
		UseMemory:   req.MemoryEnabled(),
		UserID:      req.UserID,
	})
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Content:             res.Content,
		ModelUsed:           res.ModelUsed,
		MemoryUsed:          res.MemoryUsed,
		RespondingCharacter: res.Responding,
		Fallback:            res.Fallback,
	})
}

// GroupChat handles POST /ai/chat. History comes from the request; session
// memory is not used.
func (h *Handlers) GroupChat(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.GroupChatRequest
	if werr := h.Validator.Decode(r, requestID, &req); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	texts := []string{req.Message}
	for _, m := range req.ChatHistory {
		texts = append(texts, m.Content)
	}
	if werr := h.Validator.Tokens(requestID, texts...); werr != nil {
		errors.WriteError(w, werr)
		return
	}

	turns := append(validation.Turns(req.ChatHistory), conversation.User(req.Message))
	res, err := h.Processor.Chat(r.Context(), processing.ChatRequest{
		CharacterID: req.CharacterID,
		Messages:    turns,
		Profile:     req.Profile,
	})
	if err != nil {
		h.writeChatError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, GroupChatResponse{
		Content:             res.Content,
		RespondingCharacter: res.Responding,
		Fallback:            res.Fallback,
	})
}

func (h *Handlers) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	switch {
	case errors.Is(err, processing.ErrNoUserMessage):
		errors.WriteError(w, errors.NewValidationError(requestID, "No user message found", map[string]interface{}{
			"field": "messages",
		}))
	case errors.Is(err, provider.ErrUnknownProvider):
		errors.WriteError(w, errors.NewValidationError(requestID, "Unknown provider", map[string]interface{}{
			"field": "provider",
			"error": err.Error(),
		}))
	default:
		werr := errors.NewInternalError(requestID, err)
		errors.LogError(h.logger(r), werr, requestID)
		errors.WriteError(w, werr)
	}
}
