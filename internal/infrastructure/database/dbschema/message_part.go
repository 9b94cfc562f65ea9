package dbschema

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(MessagePart{})
	database.RegisterSchemaForAutoMigrate(InflightChunk{})
}

type MessagePart struct {
	ID          string         `gorm:"type:varchar(64);primaryKey"`
	MessageID   string         `gorm:"type:varchar(64);not null;index:idx_message_parts_message,priority:1"`
	OwnerUserID string         `gorm:"type:varchar(128);not null"`
	Kind        string         `gorm:"type:varchar(32);not null"`
	Content     *string        `gorm:"type:text"`
	Usage       datatypes.JSON
	CreatedAt   time.Time      `gorm:"not null;index:idx_message_parts_message,priority:2"`
}

// InflightChunk rows are unique per (part, sequence) so a re-delivered fragment is a no-op.
type InflightChunk struct {
	ID            string    `gorm:"type:varchar(64);primaryKey"`
	MessagePartID string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_inflight_chunks_part_sequence,priority:1"`
	Sequence      int       `gorm:"not null;uniqueIndex:idx_inflight_chunks_part_sequence,priority:2"`
	Content       string    `gorm:"type:text;not null"`
	OwnerUserID   string    `gorm:"type:varchar(128);not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func NewSchemaTextPart(id, messageID, ownerUserID string, content *string) *MessagePart {
	return &MessagePart{
		ID:          id,
		MessageID:   messageID,
		OwnerUserID: ownerUserID,
		Kind:        string(conversation.PartKindText),
		Content:     content,
	}
}

func NewSchemaStepCompletionPart(id, messageID, ownerUserID string, usage conversation.Usage) (*MessagePart, error) {
	raw, err := json.Marshal(usage)
	if err != nil {
		return nil, err
	}
	return &MessagePart{
		ID:          id,
		MessageID:   messageID,
		OwnerUserID: ownerUserID,
		Kind:        string(conversation.PartKindStepCompletion),
		Usage:       datatypes.JSON(raw),
	}, nil
}

func (p *MessagePart) EtoD() (conversation.Part, error) {
	base := conversation.PartBase{
		ID:          p.ID,
		MessageID:   p.MessageID,
		OwnerUserID: p.OwnerUserID,
		CreatedAt:   p.CreatedAt,
	}
	switch conversation.PartKind(p.Kind) {
	case conversation.PartKindText:
		return &conversation.TextPart{PartBase: base, Content: p.Content}, nil
	case conversation.PartKindStepCompletion:
		var usage conversation.Usage
		if len(p.Usage) > 0 {
			if err := json.Unmarshal(p.Usage, &usage); err != nil {
				return nil, fmt.Errorf("decode usage of part %s: %w", p.ID, err)
			}
		}
		return &conversation.StepCompletionPart{PartBase: base, Usage: usage}, nil
	default:
		return nil, fmt.Errorf("part %s has unknown kind %q", p.ID, p.Kind)
	}
}

func (c *InflightChunk) EtoD() *conversation.InflightChunk {
	return &conversation.InflightChunk{
		ID:          c.ID,
		PartID:      c.MessagePartID,
		Sequence:    c.Sequence,
		Content:     c.Content,
		OwnerUserID: c.OwnerUserID,
		CreatedAt:   c.CreatedAt,
	}
}
