package conversationrepo

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
	"github.com/janhq/jan-chat/internal/utils/idgen"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// TransitionToFinished implements conversation.SystemStore.
func (repo *ConversationGormRepository) TransitionToFinished(ctx context.Context, messageID, ownerUserID string) (conversation.TxMarker, error) {
	return repo.transition(ctx, messageID, ownerUserID, conversation.AgentStatusFinished)
}

// TransitionToError implements conversation.SystemStore.
func (repo *ConversationGormRepository) TransitionToError(ctx context.Context, messageID, ownerUserID string) (conversation.TxMarker, error) {
	return repo.transition(ctx, messageID, ownerUserID, conversation.AgentStatusError)
}

func (repo *ConversationGormRepository) transition(ctx context.Context, messageID, ownerUserID string, next conversation.AgentStatus) (conversation.TxMarker, error) {
	var marker conversation.TxMarker
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		msg, err := repo.lockMessage(ctx, messageID)
		if err != nil {
			return err
		}
		if msg == nil || msg.Role != string(conversation.RoleAgent) {
			return &conversation.MissingMessageError{MessageID: messageID}
		}
		if msg.OwnerUserID != ownerUserID {
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeInternal,
				"message owner does not match the generation owner", nil, "",
				map[string]any{"message_id": messageID, "owner_user_id": ownerUserID})
		}
		if status := msg.AgentStatus(); !status.CanTransitionTo(next) {
			return &conversation.MessageAlreadyTransitionedError{MessageID: messageID, Status: status}
		}
		marker, err = repo.writeStatus(ctx, msg, next)
		return err
	})
	return marker, err
}

// AppendTextPart implements conversation.SystemStore.
func (repo *ConversationGormRepository) AppendTextPart(ctx context.Context, messageID, ownerUserID string) (*conversation.TextPart, error) {
	id, err := idgen.NewID(idgen.PrefixPart)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to generate part id")
	}
	row := dbschema.NewSchemaTextPart(id, messageID, ownerUserID, nil)
	if err := repo.db.GetTx(ctx).Create(row).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to append text part")
	}
	part, err := row.EtoD()
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to decode text part")
	}
	return part.(*conversation.TextPart), nil
}

// AppendStepCompletionPart implements conversation.SystemStore.
func (repo *ConversationGormRepository) AppendStepCompletionPart(ctx context.Context, messageID, ownerUserID string, usage conversation.Usage) (*conversation.StepCompletionPart, error) {
	id, err := idgen.NewID(idgen.PrefixPart)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to generate part id")
	}
	row, err := dbschema.NewSchemaStepCompletionPart(id, messageID, ownerUserID, usage)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to encode usage")
	}
	if err := repo.db.GetTx(ctx).Create(row).Error; err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to append step completion part")
	}
	return &conversation.StepCompletionPart{
		PartBase: conversation.PartBase{ID: row.ID, MessageID: messageID, OwnerUserID: ownerUserID, CreatedAt: row.CreatedAt},
		Usage:    usage,
	}, nil
}

// AppendInflightChunk implements conversation.SystemStore. A chunk whose
// (part, sequence) is already stored is ignored.
func (repo *ConversationGormRepository) AppendInflightChunk(ctx context.Context, partID string, sequence int, content, ownerUserID string) error {
	if sequence <= 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"chunk sequence must be positive", nil, "")
	}
	id, err := idgen.NewID(idgen.PrefixChunk)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to generate chunk id")
	}
	row := &dbschema.InflightChunk{
		ID:            id,
		MessagePartID: partID,
		Sequence:      sequence,
		Content:       content,
		OwnerUserID:   ownerUserID,
	}
	err = repo.db.GetTx(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_part_id"}, {Name: "sequence"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to append inflight chunk")
	}
	return nil
}

// Compact implements conversation.SystemStore. Chunks are concatenated in
// ascending sequence order regardless of the order they were written in.
func (repo *ConversationGormRepository) Compact(ctx context.Context, partID string) (string, error) {
	var content string
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		var part dbschema.MessagePart
		err := repo.db.ForUpdate(ctx).Where("id = ?", partID).Take(&part).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &conversation.CompactionDataError{PartID: partID, Reason: "part not found"}
		}
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to lock message part")
		}
		if part.Kind != string(conversation.PartKindText) {
			return &conversation.CompactionDataError{PartID: partID, Reason: "not a text part"}
		}
		if part.Content != nil {
			return &conversation.CompactionDataError{PartID: partID, Reason: "content already set"}
		}

		var chunks []dbschema.InflightChunk
		err = repo.db.ForUpdate(ctx).Where("message_part_id = ?", partID).Find(&chunks).Error
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to lock inflight chunks")
		}
		content = joinChunks(chunks)

		err = repo.db.GetTx(ctx).Model(&part).UpdateColumn("content", content).Error
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to write compacted content")
		}
		return nil
	})
	return content, err
}

func joinChunks(chunks []dbschema.InflightChunk) string {
	slices.SortFunc(chunks, func(a, b dbschema.InflightChunk) int {
		return a.Sequence - b.Sequence
	})
	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Content)
	}
	return sb.String()
}

// DeleteChunks implements conversation.SystemStore.
func (repo *ConversationGormRepository) DeleteChunks(ctx context.Context, partID string) error {
	err := repo.db.GetTx(ctx).Where("message_part_id = ?", partID).Delete(&dbschema.InflightChunk{}).Error
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to delete inflight chunks")
	}
	return nil
}

// LoadForGeneration implements conversation.SystemStore.
func (repo *ConversationGormRepository) LoadForGeneration(ctx context.Context, conversationID string) (*conversation.Tree, error) {
	var tree *conversation.Tree
	err := repo.db.Transaction(ctx, func(ctx context.Context) error {
		var conv dbschema.Conversation
		err := repo.db.GetTx(ctx).Where("id = ?", conversationID).Take(&conv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &conversation.MissingConversationError{ConversationID: conversationID}
		}
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find conversation")
		}

		messages, parts, err := repo.loadContents(ctx, conversationID)
		if err != nil {
			return err
		}
		if len(messages) == 0 || len(parts) == 0 {
			return &conversation.MissingConversationError{ConversationID: conversationID}
		}
		tree, err = assembleTree(ctx, &conv, messages, parts)
		return err
	})
	return tree, err
}

// FindOrphanedParts implements conversation.MaintenanceStore.
func (repo *ConversationGormRepository) FindOrphanedParts(ctx context.Context, createdBefore time.Time, limit int) ([]conversation.OrphanedPart, error) {
	var rows []struct {
		PartID         string
		MessageID      string
		ConversationID string
		OwnerUserID    string
		Status         string
	}
	err := repo.db.GetTx(ctx).Model(&dbschema.MessagePart{}).
		Select("message_parts.id AS part_id, message_parts.message_id, messages.conversation_id, messages.owner_user_id, messages.status").
		Joins("JOIN messages ON messages.id = message_parts.message_id").
		Where("message_parts.kind = ? AND message_parts.content IS NULL AND message_parts.created_at < ?", string(conversation.PartKindText), createdBefore).
		Where("messages.status IN ?", []string{
			string(conversation.AgentStatusFinished),
			string(conversation.AgentStatusError),
			string(conversation.AgentStatusInterrupted),
		}).
		Order("message_parts.created_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find orphaned parts")
	}

	result := make([]conversation.OrphanedPart, 0, len(rows))
	for _, row := range rows {
		result = append(result, conversation.OrphanedPart{
			PartID:         row.PartID,
			MessageID:      row.MessageID,
			ConversationID: row.ConversationID,
			OwnerUserID:    row.OwnerUserID,
			MessageStatus:  conversation.AgentStatus(row.Status),
		})
	}
	return result, nil
}

// FindStaleMessages implements conversation.MaintenanceStore. A message is stale
// when it is still IN_PROGRESS and neither it nor any of its parts or chunks
// changed since idleSince.
func (repo *ConversationGormRepository) FindStaleMessages(ctx context.Context, idleSince time.Time, limit int) ([]*conversation.AgentMessage, error) {
	recentParts := repo.db.GetTx(ctx).Model(&dbschema.MessagePart{}).
		Select("1").
		Where("message_parts.message_id = messages.id AND message_parts.created_at >= ?", idleSince)
	recentChunks := repo.db.GetTx(ctx).Model(&dbschema.InflightChunk{}).
		Select("1").
		Joins("JOIN message_parts ON message_parts.id = inflight_chunks.message_part_id").
		Where("message_parts.message_id = messages.id AND inflight_chunks.created_at >= ?", idleSince)

	var rows []*dbschema.Message
	err := repo.db.GetTx(ctx).
		Where("role = ? AND status = ? AND updated_at < ?", string(conversation.RoleAgent), string(conversation.AgentStatusInProgress), idleSince).
		Where("NOT EXISTS (?)", recentParts).
		Where("NOT EXISTS (?)", recentChunks).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to find stale messages")
	}

	result := make([]*conversation.AgentMessage, 0, len(rows))
	for _, row := range rows {
		msg, err := row.EtoD()
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to decode message")
		}
		result = append(result, msg.(*conversation.AgentMessage))
	}
	return result, nil
}

func (repo *ConversationGormRepository) loadContents(ctx context.Context, conversationID string) ([]*dbschema.Message, []*dbschema.MessagePart, error) {
	var messages []*dbschema.Message
	err := repo.db.GetTx(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load messages")
	}

	messageIDs := repo.db.GetTx(ctx).Model(&dbschema.Message{}).Select("id").Where("conversation_id = ?", conversationID)
	var parts []*dbschema.MessagePart
	err = repo.db.GetTx(ctx).
		Where("message_id IN (?)", messageIDs).
		Order("created_at ASC").
		Find(&parts).Error
	if err != nil {
		return nil, nil, platformerrors.AsError(ctx, platformerrors.LayerRepository, err, "failed to load message parts")
	}
	return messages, parts, nil
}
