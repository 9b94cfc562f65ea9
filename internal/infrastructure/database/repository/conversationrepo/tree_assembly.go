package conversationrepo

import (
	"context"
	"sort"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// assembleTree groups rows by role and attaches every part to its message.
// A part whose message cannot be found means the stored state is corrupt.
func assembleTree(ctx context.Context, conv *dbschema.Conversation, messages []*dbschema.Message, parts []*dbschema.MessagePart) (*conversation.Tree, error) {
	var (
		users  []*conversation.UserMessage
		agents []*conversation.AgentMessage
		byID   = make(map[string]*conversation.MessageBase, len(messages))
	)
	for _, row := range messages {
		msg, err := row.EtoD()
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to decode message")
		}
		switch m := msg.(type) {
		case *conversation.UserMessage:
			users = append(users, m)
		case *conversation.AgentMessage:
			agents = append(agents, m)
		}
		byID[row.ID] = msg.Base()
	}

	for _, row := range parts {
		owner, ok := byID[row.MessageID]
		if !ok {
			return nil, platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeInternal,
				"message part references an unknown message", nil, "",
				map[string]any{"part_id": row.ID, "message_id": row.MessageID})
		}
		part, err := row.EtoD()
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to decode message part")
		}
		owner.Parts = append(owner.Parts, part)
	}

	for _, base := range byID {
		sort.SliceStable(base.Parts, func(i, j int) bool {
			return base.Parts[i].Base().CreatedAt.Before(base.Parts[j].Base().CreatedAt)
		})
	}

	return conversation.NewTree(conv.EtoD(), users, agents), nil
}
