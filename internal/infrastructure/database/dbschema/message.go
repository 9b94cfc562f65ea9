package dbschema

import (
	"fmt"
	"time"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Message stores both roles in one table; Status is set only for agent messages.
type Message struct {
	ID             string    `gorm:"type:varchar(64);primaryKey"`
	ConversationID string    `gorm:"type:varchar(64);not null;index:idx_messages_conversation,priority:1"`
	OwnerUserID    string    `gorm:"type:varchar(128);not null"`
	Role           string    `gorm:"type:varchar(16);not null"`
	ParentID       *string   `gorm:"type:varchar(64)"`
	Status         *string   `gorm:"type:varchar(16);index:idx_messages_status_updated,priority:1"`
	StatusMarker   *string   `gorm:"type:varchar(64)"`
	CreatedAt      time.Time `gorm:"not null;index:idx_messages_conversation,priority:2"`
	UpdatedAt      time.Time `gorm:"not null;index:idx_messages_status_updated,priority:2"`
}

func NewSchemaUserMessage(conversationID, ownerUserID string, m conversation.NewUserMessage) *Message {
	return &Message{
		ID:             m.ID,
		ConversationID: conversationID,
		OwnerUserID:    ownerUserID,
		Role:           string(conversation.RoleUser),
		ParentID:       m.ParentID,
	}
}

func NewSchemaAgentMessage(conversationID, ownerUserID, id, parentID string) *Message {
	status := string(conversation.AgentStatusInProgress)
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		OwnerUserID:    ownerUserID,
		Role:           string(conversation.RoleAgent),
		ParentID:       &parentID,
		Status:         &status,
	}
}

// AgentStatus returns the stored status, or an empty status for user messages.
func (m *Message) AgentStatus() conversation.AgentStatus {
	if m.Status == nil {
		return ""
	}
	return conversation.AgentStatus(*m.Status)
}

// EtoD converts the row into the domain variant matching its role.
func (m *Message) EtoD() (conversation.Message, error) {
	base := conversation.MessageBase{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		OwnerUserID:    m.OwnerUserID,
		ParentID:       m.ParentID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	switch conversation.Role(m.Role) {
	case conversation.RoleUser:
		return &conversation.UserMessage{MessageBase: base}, nil
	case conversation.RoleAgent:
		agent := &conversation.AgentMessage{MessageBase: base, Status: m.AgentStatus()}
		if m.StatusMarker != nil {
			marker := conversation.TxMarker(*m.StatusMarker)
			agent.StatusMarker = &marker
		}
		return agent, nil
	default:
		return nil, fmt.Errorf("message %s has unknown role %q", m.ID, m.Role)
	}
}
