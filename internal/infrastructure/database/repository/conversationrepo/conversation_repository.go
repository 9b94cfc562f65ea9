package conversationrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
	"github.com/janhq/jan-chat/internal/utils/functional"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// ConversationGormRepository is the relational conversation store. Every
// read-then-write runs in one transaction holding FOR UPDATE locks on the rows
// it mutates.
type ConversationGormRepository struct {
	db *transaction.Database
}

var _ conversation.Store = (*ConversationGormRepository)(nil)

func NewConversationGormRepository(db *transaction.Database) *ConversationGormRepository {
	return &ConversationGormRepository{db}
}

// CreateConversation implements conversation.ViewerStore.
func (repo *ConversationGormRepository) CreateConversation(ctx context.Context, ownerUserID, conversationID string, root conversation.NewUserMessage, agentMessageID string) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		now := time.Now()
		conv := &dbschema.Conversation{
			ID:          conversationID,
			OwnerUserID: ownerUserID,
			CreatedAt:   now,
			UpdatedAt:   now,
			AccessedAt:  now,
		}
		if err := repo.db.GetTx(ctx).Create(conv).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create conversation")
		}

		root.ParentID = nil
		if err := repo.insertExchange(ctx, conversationID, ownerUserID, &root, agentMessageID, root.ID, now); err != nil {
			return err
		}

		var err error
		marker, err = repo.currentMarker(ctx)
		return err
	})
	return marker, err
}

// ContinueConversation implements conversation.ViewerStore.
func (repo *ConversationGormRepository) ContinueConversation(ctx context.Context, ownerUserID, conversationID string, message conversation.NewUserMessage, agentMessageID string) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.lockConversation(ctx, ownerUserID, conversationID); err != nil {
			return err
		}
		if message.ParentID != nil {
			if _, err := repo.findMessageInConversation(ctx, conversationID, *message.ParentID, conversation.RoleAgent); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := repo.touchConversation(ctx, conversationID, now); err != nil {
			return err
		}
		if err := repo.insertExchange(ctx, conversationID, ownerUserID, &message, agentMessageID, message.ID, now); err != nil {
			return err
		}

		var err error
		marker, err = repo.currentMarker(ctx)
		return err
	})
	return marker, err
}

// RegenerateAnswer implements conversation.ViewerStore.
func (repo *ConversationGormRepository) RegenerateAnswer(ctx context.Context, ownerUserID, conversationID string, message conversation.NewAgentMessage) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.lockConversation(ctx, ownerUserID, conversationID); err != nil {
			return err
		}
		if _, err := repo.findMessageInConversation(ctx, conversationID, message.ParentID, conversation.RoleUser); err != nil {
			return err
		}

		now := time.Now()
		if err := repo.touchConversation(ctx, conversationID, now); err != nil {
			return err
		}
		agent := dbschema.NewSchemaAgentMessage(conversationID, ownerUserID, message.ID, message.ParentID)
		agent.CreatedAt, agent.UpdatedAt = now, now
		if err := repo.db.GetTx(ctx).Create(agent).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create agent message")
		}

		var err error
		marker, err = repo.currentMarker(ctx)
		return err
	})
	return marker, err
}

// InterruptMessage implements conversation.ViewerStore.
func (repo *ConversationGormRepository) InterruptMessage(ctx context.Context, ownerUserID, conversationID, messageID string) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.lockConversation(ctx, ownerUserID, conversationID); err != nil {
			return err
		}
		msg, err := repo.lockMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil || msg.ConversationID != conversationID || msg.Role != string(conversation.RoleAgent) {
			return &conversation.MissingMessageError{ConversationID: conversationID, MessageID: messageID}
		}

		switch status := msg.AgentStatus(); status {
		case conversation.AgentStatusInterrupted:
			if msg.StatusMarker != nil {
				marker = conversation.TxMarker(*msg.StatusMarker)
			}
			return nil
		case conversation.AgentStatusInProgress:
			marker, err = repo.writeStatus(ctx, msg, conversation.AgentStatusInterrupted)
			return err
		default:
			return &conversation.MessageAlreadyTransitionedError{MessageID: messageID, Status: status}
		}
	})
	return marker, err
}

// UpdateTitle implements conversation.ViewerStore.
func (repo *ConversationGormRepository) UpdateTitle(ctx context.Context, ownerUserID, conversationID string, title *string) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		conv, err := repo.lockConversation(ctx, ownerUserID, conversationID)
		if err != nil {
			return err
		}
		err = repo.db.GetTx(ctx).Model(conv).Updates(map[string]any{
			"title":      title,
			"updated_at": time.Now(),
		}).Error
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update conversation title")
		}
		marker, err = repo.currentMarker(ctx)
		return err
	})
	return marker, err
}

// DeleteConversation implements conversation.ViewerStore.
func (repo *ConversationGormRepository) DeleteConversation(ctx context.Context, ownerUserID, conversationID string) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		if _, err := repo.lockConversation(ctx, ownerUserID, conversationID); err != nil {
			return err
		}

		messageIDs := repo.db.GetTx(ctx).Model(&dbschema.Message{}).Select("id").Where("conversation_id = ?", conversationID)
		partIDs := repo.db.GetTx(ctx).Model(&dbschema.MessagePart{}).Select("id").Where("message_id IN (?)", messageIDs)

		steps := []struct {
			model any
			query string
			arg   any
			what  string
		}{
			{&dbschema.InflightChunk{}, "message_part_id IN (?)", partIDs, "inflight chunks"},
			{&dbschema.MessagePart{}, "message_id IN (?)", messageIDs, "message parts"},
			{&dbschema.Message{}, "conversation_id = ?", conversationID, "messages"},
			{&dbschema.Conversation{}, "id = ?", conversationID, "conversation"},
		}
		for _, step := range steps {
			if err := repo.db.GetTx(ctx).Where(step.query, step.arg).Delete(step.model).Error; err != nil {
				return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete "+step.what)
			}
		}

		var err error
		marker, err = repo.currentMarker(ctx)
		return err
	})
	return marker, err
}

// GetConversation implements conversation.ViewerStore.
func (repo *ConversationGormRepository) GetConversation(ctx context.Context, ownerUserID, conversationID string) (*conversation.Tree, error) {
	var tree *conversation.Tree
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		var conv dbschema.Conversation
		err := repo.db.GetTx(ctx).
			Where("id = ? AND owner_user_id = ?", conversationID, ownerUserID).
			Take(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &conversation.MissingConversationError{ConversationID: conversationID}
		}
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find conversation")
		}

		conv.AccessedAt = time.Now()
		if err := repo.db.GetTx(ctx).Model(&conv).UpdateColumn("accessed_at", conv.AccessedAt).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to record conversation access")
		}

		messages, parts, err := repo.loadContents(ctx, conversationID)
		if err != nil {
			return err
		}
		tree, err = assembleTree(ctx, &conv, messages, parts)
		return err
	})
	return tree, err
}

// ListConversations implements conversation.ViewerStore.
func (repo *ConversationGormRepository) ListConversations(ctx context.Context, ownerUserID string, limit int) ([]*conversation.Conversation, error) {
	var rows []*dbschema.Conversation
	err := repo.db.GetTx(ctx).
		Clauses(dbresolver.Read).
		Where("owner_user_id = ?", ownerUserID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to list conversations")
	}
	return functional.Map(rows, func(row *dbschema.Conversation) *conversation.Conversation {
		return row.EtoD()
	}), nil
}

func (repo *ConversationGormRepository) insertExchange(ctx context.Context, conversationID, ownerUserID string, user *conversation.NewUserMessage, agentMessageID, agentParentID string, now time.Time) error {
	tx := repo.db.GetTx(ctx)

	userRow := dbschema.NewSchemaUserMessage(conversationID, ownerUserID, *user)
	userRow.CreatedAt, userRow.UpdatedAt = now, now
	if err := tx.Create(userRow).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create user message")
	}

	// Parts share the message timestamp; spacing them keeps creation order stable
	// at microsecond column precision.
	for i, part := range user.Parts {
		content := part.Content
		row := dbschema.NewSchemaTextPart(part.ID, user.ID, ownerUserID, &content)
		row.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		if err := repo.db.GetTx(ctx).Create(row).Error; err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create message part")
		}
	}

	agentRow := dbschema.NewSchemaAgentMessage(conversationID, ownerUserID, agentMessageID, agentParentID)
	agentRow.CreatedAt = now.Add(time.Duration(len(user.Parts)+1) * time.Microsecond)
	agentRow.UpdatedAt = agentRow.CreatedAt
	if err := repo.db.GetTx(ctx).Create(agentRow).Error; err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to create agent message")
	}
	return nil
}

func (repo *ConversationGormRepository) lockConversation(ctx context.Context, ownerUserID, conversationID string) (*dbschema.Conversation, error) {
	var conv dbschema.Conversation
	err := repo.db.ForUpdate(ctx).
		Where("id = ? AND owner_user_id = ?", conversationID, ownerUserID).
		Take(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &conversation.MissingConversationError{ConversationID: conversationID}
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to lock conversation")
	}
	return &conv, nil
}

// lockMessage returns nil without error when the message does not exist.
func (repo *ConversationGormRepository) lockMessage(ctx context.Context, messageID string) (*dbschema.Message, error) {
	var msg dbschema.Message
	err := repo.db.ForUpdate(ctx).
		Where("id = ?", messageID).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to lock message")
	}
	return &msg, nil
}

func (repo *ConversationGormRepository) findMessageInConversation(ctx context.Context, conversationID, messageID string, role conversation.Role) (*dbschema.Message, error) {
	var msg dbschema.Message
	err := repo.db.GetTx(ctx).
		Where("id = ? AND conversation_id = ? AND role = ?", messageID, conversationID, string(role)).
		Take(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &conversation.MissingMessageError{ConversationID: conversationID, MessageID: messageID}
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find parent message")
	}
	return &msg, nil
}

func (repo *ConversationGormRepository) touchConversation(ctx context.Context, conversationID string, now time.Time) error {
	err := repo.db.GetTx(ctx).Model(&dbschema.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn("updated_at", now).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to touch conversation")
	}
	return nil
}

func (repo *ConversationGormRepository) currentMarker(ctx context.Context) (conversation.TxMarker, error) {
	marker, err := repo.db.CurrentMarker(ctx)
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to read transaction marker")
	}
	return marker, nil
}

func (repo *ConversationGormRepository) writeStatus(ctx context.Context, msg *dbschema.Message, status conversation.AgentStatus) (conversation.TxMarker, error) {
	marker, err := repo.currentMarker(ctx)
	if err != nil {
		return "", err
	}
	err = repo.db.GetTx(ctx).Model(msg).Updates(map[string]any{
		"status":        string(status),
		"status_marker": string(marker),
		"updated_at":    time.Now(),
	}).Error
	if err != nil {
		return "", platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to update message status")
	}
	return marker, nil
}
