package conversationhandler

import (
	"context"

	"github.com/janhq/jan-chat/internal/domain/chat"
	"github.com/janhq/jan-chat/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-chat/internal/utils/functional"
)

type TextPartRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type CreateConversationRequest struct {
	ConversationID string            `json:"conversation_id"`
	UserMessageID  string            `json:"user_message_id"`
	AgentMessageID string            `json:"agent_message_id"`
	Parts          []TextPartRequest `json:"parts"`
}

type ContinueConversationRequest struct {
	ParentID       *string           `json:"parent_id"`
	UserMessageID  string            `json:"user_message_id"`
	AgentMessageID string            `json:"agent_message_id"`
	Parts          []TextPartRequest `json:"parts"`
}

type RegenerateRequest struct {
	AgentMessageID string `json:"agent_message_id"`
}

type UpdateTitleRequest struct {
	Title *string `json:"title"`
}

// ConversationHandler adapts HTTP payloads to the chat use cases.
type ConversationHandler struct {
	service *chat.ChatService
}

func NewConversationHandler(service *chat.ChatService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) Create(ctx context.Context, userID string, req CreateConversationRequest) (*chat.GenerationResult, error) {
	return h.service.StartConversation(ctx, userID, chat.StartConversationInput{
		ConversationID: req.ConversationID,
		UserMessageID:  req.UserMessageID,
		AgentMessageID: req.AgentMessageID,
		Parts:          functional.Map(req.Parts, toTextInput),
	})
}

func (h *ConversationHandler) Continue(ctx context.Context, userID, conversationID string, req ContinueConversationRequest) (*chat.GenerationResult, error) {
	return h.service.ContinueConversation(ctx, userID, chat.ContinueConversationInput{
		ConversationID: conversationID,
		ParentID:       req.ParentID,
		UserMessageID:  req.UserMessageID,
		AgentMessageID: req.AgentMessageID,
		Parts:          functional.Map(req.Parts, toTextInput),
	})
}

func (h *ConversationHandler) Regenerate(ctx context.Context, userID, conversationID, userMessageID string, req RegenerateRequest) (*chat.GenerationResult, error) {
	return h.service.RegenerateAnswer(ctx, userID, chat.RegenerateAnswerInput{
		ConversationID: conversationID,
		ParentID:       userMessageID,
		AgentMessageID: req.AgentMessageID,
	})
}

func (h *ConversationHandler) Interrupt(ctx context.Context, userID, conversationID, messageID string) (*chat.MutationResult, error) {
	return h.service.InterruptGeneration(ctx, userID, conversationID, messageID)
}

func (h *ConversationHandler) UpdateTitle(ctx context.Context, userID, conversationID string, req UpdateTitleRequest) (*chat.MutationResult, error) {
	return h.service.EditTitle(ctx, userID, conversationID, req.Title)
}

func (h *ConversationHandler) Delete(ctx context.Context, userID, conversationID string) (*chat.MutationResult, error) {
	return h.service.DeleteConversation(ctx, userID, conversationID)
}

func (h *ConversationHandler) Get(ctx context.Context, userID, conversationID string) (*responses.ConversationTreeResponse, error) {
	tree, err := h.service.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationTreeResponse(tree)
	return &resp, nil
}

func (h *ConversationHandler) List(ctx context.Context, userID string, limit int) (*responses.ListResponse[responses.ConversationResponse], error) {
	convs, err := h.service.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	resp := responses.NewConversationListResponse(convs)
	return &resp, nil
}

func toTextInput(p TextPartRequest) chat.TextInput {
	return chat.TextInput{ID: p.ID, Content: p.Content}
}
