package chat

import (
	"context"
	"fmt"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// Generator delivers commands to the per-conversation generation entity.
type Generator interface {
	Send(ctx context.Context, addr generation.Address, cmd generation.Command) error
}

// TextInput is one text part of a user message. ID is minted when empty.
type TextInput struct {
	ID      string `json:"id" validate:"omitempty,max=64"`
	Content string `json:"content" validate:"required"`
}

type StartConversationInput struct {
	ConversationID string      `json:"conversation_id" validate:"omitempty,max=64"`
	UserMessageID  string      `json:"user_message_id" validate:"omitempty,max=64"`
	AgentMessageID string      `json:"agent_message_id" validate:"omitempty,max=64"`
	Parts          []TextInput `json:"parts" validate:"required,min=1,dive"`
}

type ContinueConversationInput struct {
	ConversationID string      `json:"conversation_id" validate:"required,max=64"`
	ParentID       *string     `json:"parent_id" validate:"omitempty,max=64"`
	UserMessageID  string      `json:"user_message_id" validate:"omitempty,max=64"`
	AgentMessageID string      `json:"agent_message_id" validate:"omitempty,max=64"`
	Parts          []TextInput `json:"parts" validate:"required,min=1,dive"`
}

type RegenerateAnswerInput struct {
	ConversationID string `json:"conversation_id" validate:"required,max=64"`
	ParentID       string `json:"parent_id" validate:"required,max=64"`
	AgentMessageID string `json:"agent_message_id" validate:"omitempty,max=64"`
}

// GenerationResult describes a committed exchange. UserMessageID is empty for regenerations.
type GenerationResult struct {
	ConversationID string                `json:"conversation_id"`
	UserMessageID  string                `json:"user_message_id,omitempty"`
	AgentMessageID string                `json:"agent_message_id"`
	Marker         conversation.TxMarker `json:"tx_marker"`
}

type MutationResult struct {
	ConversationID string                `json:"conversation_id"`
	Marker         conversation.TxMarker `json:"tx_marker"`
}

// GenerationTriggerError means the store change committed (or, for deletes,
// was not attempted) but the generation entity could not be reached.
type GenerationTriggerError struct {
	ConversationID string
	Command        string
	Err            error
}

func (e *GenerationTriggerError) Error() string {
	return fmt.Sprintf("trigger %s for conversation %s: %v", e.Command, e.ConversationID, e.Err)
}

func (e *GenerationTriggerError) Unwrap() error { return e.Err }

func (e *GenerationTriggerError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeUnavailable
}
