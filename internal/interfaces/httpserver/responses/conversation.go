package responses

import (
	"time"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/utils/functional"
)

type ConversationResponse struct {
	ID         string    `json:"id"`
	Title      *string   `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

type PartResponse struct {
	ID      string              `json:"id"`
	Kind    string              `json:"kind"`
	Content *string             `json:"content,omitempty"`
	Usage   *conversation.Usage `json:"usage,omitempty"`
}

type MessageResponse struct {
	ID           string         `json:"id"`
	Role         string         `json:"role"`
	ParentID     *string        `json:"parent_id"`
	Status       string         `json:"status,omitempty"`
	StatusMarker *string        `json:"status_marker,omitempty"`
	Parts        []PartResponse `json:"parts"`
	CreatedAt    time.Time      `json:"created_at"`
}

type ConversationTreeResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

type ListResponse[T any] struct {
	Object string `json:"object"`
	Data   []T    `json:"data"`
}

func NewConversationResponse(conv *conversation.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:         conv.ID,
		Title:      conv.Title,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
		AccessedAt: conv.AccessedAt,
	}
}

func NewConversationListResponse(convs []*conversation.Conversation) ListResponse[ConversationResponse] {
	return ListResponse[ConversationResponse]{Object: "list", Data: functional.Map(convs, NewConversationResponse)}
}

func NewConversationTreeResponse(tree *conversation.Tree) ConversationTreeResponse {
	return ConversationTreeResponse{
		Conversation: NewConversationResponse(tree.Conversation),
		Messages:     functional.Map(tree.Messages(), NewMessageResponse),
	}
}

func NewMessageResponse(msg conversation.Message) MessageResponse {
	base := msg.Base()
	resp := MessageResponse{
		ID:        base.ID,
		Role:      string(msg.Role()),
		ParentID:  base.ParentID,
		Parts:     functional.Map(base.Parts, NewPartResponse),
		CreatedAt: base.CreatedAt,
	}
	if agent, ok := msg.(*conversation.AgentMessage); ok {
		resp.Status = string(agent.Status)
		if agent.StatusMarker != nil {
			marker := string(*agent.StatusMarker)
			resp.StatusMarker = &marker
		}
	}
	return resp
}

func NewPartResponse(part conversation.Part) PartResponse {
	resp := PartResponse{ID: part.Base().ID, Kind: string(part.Kind())}
	switch p := part.(type) {
	case *conversation.TextPart:
		resp.Content = p.Content
	case *conversation.StepCompletionPart:
		usage := p.Usage
		resp.Usage = &usage
	}
	return resp
}
