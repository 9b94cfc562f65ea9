package dbschema

import (
	"time"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Conversation{})
	database.RegisterSchemaForAutoMigrate(CommitMarker{})
}

// Conversation represents the database schema for conversations
type Conversation struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	OwnerUserID string    `gorm:"type:varchar(128);not null;index:idx_conversations_owner_updated,priority:1"`
	Title       *string   `gorm:"type:varchar(256)"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null;index:idx_conversations_owner_updated,priority:2"`
	AccessedAt  time.Time `gorm:"not null"`
}

// CommitMarker is a single-row counter that stands in for a transaction id on SQLite.
type CommitMarker struct {
	ID    uint  `gorm:"primaryKey"`
	Value int64 `gorm:"not null;default:0"`
}

// NewSchemaConversation creates a database schema from domain conversation
func NewSchemaConversation(c *conversation.Conversation) *Conversation {
	return &Conversation{
		ID:          c.ID,
		OwnerUserID: c.OwnerUserID,
		Title:       c.Title,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		AccessedAt:  c.AccessedAt,
	}
}

// EtoD converts database schema to domain conversation (Entity to Domain)
func (c *Conversation) EtoD() *conversation.Conversation {
	return &conversation.Conversation{
		ID:          c.ID,
		OwnerUserID: c.OwnerUserID,
		Title:       c.Title,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		AccessedAt:  c.AccessedAt,
	}
}
