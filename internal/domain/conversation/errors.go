package conversation

import (
	"fmt"

	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// MissingConversationError means the conversation is absent or not owned by the caller.
type MissingConversationError struct {
	ConversationID string
}

func (e *MissingConversationError) Error() string {
	return fmt.Sprintf("conversation %s not found", e.ConversationID)
}

func (e *MissingConversationError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeNotFound
}

// MissingMessageError means the message is absent or belongs to another conversation.
type MissingMessageError struct {
	ConversationID string
	MessageID      string
}

func (e *MissingMessageError) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("message %s not found", e.MessageID)
	}
	return fmt.Sprintf("message %s not found in conversation %s", e.MessageID, e.ConversationID)
}

func (e *MissingMessageError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeNotFound
}

// MessageAlreadyTransitionedError means the agent message already left IN_PROGRESS.
type MessageAlreadyTransitionedError struct {
	MessageID string
	Status    AgentStatus
}

func (e *MessageAlreadyTransitionedError) Error() string {
	return fmt.Sprintf("message %s already transitioned to %s", e.MessageID, e.Status)
}

func (e *MessageAlreadyTransitionedError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeConflict
}

// CompactionDataError means the part is missing or was already compacted.
type CompactionDataError struct {
	PartID string
	Reason string
}

func (e *CompactionDataError) Error() string {
	return fmt.Sprintf("cannot compact part %s: %s", e.PartID, e.Reason)
}

func (e *CompactionDataError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeConflict
}
