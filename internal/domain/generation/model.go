package generation

import (
	"context"

	"github.com/janhq/jan-chat/internal/domain/conversation"
)

// LanguageModel opens a completion stream for a thread ordered root first.
type LanguageModel interface {
	StreamCompletion(ctx context.Context, thread []conversation.Message) (Completion, error)
}

// Completion yields text fragments. Recv returns io.EOF once the model is done,
// after which Usage reports the token accounting.
type Completion interface {
	Recv() (string, error)
	Usage() conversation.Usage
	Close() error
}

// Store is what the runtime needs from the conversation store.
type Store interface {
	conversation.SystemStore
	InterruptMessage(ctx context.Context, ownerUserID, conversationID, messageID string) (conversation.TxMarker, error)
}
