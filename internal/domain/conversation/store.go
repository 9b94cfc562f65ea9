package conversation

import (
	"context"
	"time"
)

// ViewerStore holds the operations issued on behalf of a user. Every call is
// scoped by ownerUserID; absence and foreign ownership are indistinguishable.
type ViewerStore interface {
	CreateConversation(ctx context.Context, ownerUserID, conversationID string, root NewUserMessage, agentMessageID string) (TxMarker, error)
	ContinueConversation(ctx context.Context, ownerUserID, conversationID string, message NewUserMessage, agentMessageID string) (TxMarker, error)
	RegenerateAnswer(ctx context.Context, ownerUserID, conversationID string, message NewAgentMessage) (TxMarker, error)
	InterruptMessage(ctx context.Context, ownerUserID, conversationID, messageID string) (TxMarker, error)
	UpdateTitle(ctx context.Context, ownerUserID, conversationID string, title *string) (TxMarker, error)
	DeleteConversation(ctx context.Context, ownerUserID, conversationID string) (TxMarker, error)
	GetConversation(ctx context.Context, ownerUserID, conversationID string) (*Tree, error)
	ListConversations(ctx context.Context, ownerUserID string, limit int) ([]*Conversation, error)
}

// SystemStore holds the operations issued by the generation runtime, which
// already knows the owner it was addressed with.
type SystemStore interface {
	TransitionToFinished(ctx context.Context, messageID, ownerUserID string) (TxMarker, error)
	TransitionToError(ctx context.Context, messageID, ownerUserID string) (TxMarker, error)
	AppendTextPart(ctx context.Context, messageID, ownerUserID string) (*TextPart, error)
	AppendStepCompletionPart(ctx context.Context, messageID, ownerUserID string, usage Usage) (*StepCompletionPart, error)
	AppendInflightChunk(ctx context.Context, partID string, sequence int, content, ownerUserID string) error
	Compact(ctx context.Context, partID string) (string, error)
	DeleteChunks(ctx context.Context, partID string) error
	LoadForGeneration(ctx context.Context, conversationID string) (*Tree, error)
}

// MaintenanceStore finds state left behind by streams that never completed.
type MaintenanceStore interface {
	FindOrphanedParts(ctx context.Context, createdBefore time.Time, limit int) ([]OrphanedPart, error)
	FindStaleMessages(ctx context.Context, idleSince time.Time, limit int) ([]*AgentMessage, error)
}

type Store interface {
	ViewerStore
	SystemStore
	MaintenanceStore
}
