package conversation

import (
	"time"
)

// Role discriminates the two kinds of message in a conversation tree.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAgent Role = "AGENT"
)

// AgentStatus is the state machine carried by agent messages.
type AgentStatus string

const (
	AgentStatusInProgress  AgentStatus = "IN_PROGRESS"
	AgentStatusFinished    AgentStatus = "FINISHED"
	AgentStatusError       AgentStatus = "ERROR"
	AgentStatusInterrupted AgentStatus = "INTERRUPTED"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s AgentStatus) IsTerminal() bool {
	switch s {
	case AgentStatusFinished, AgentStatusError, AgentStatusInterrupted:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to next. Only IN_PROGRESS moves,
// and only into a terminal state.
func (s AgentStatus) CanTransitionTo(next AgentStatus) bool {
	return s == AgentStatusInProgress && next.IsTerminal()
}

// TxMarker is the opaque identifier of the transaction that committed a mutation.
type TxMarker string

// Conversation is a tree of alternating user and agent messages owned by one user.
type Conversation struct {
	ID          string
	OwnerUserID string
	Title       *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	AccessedAt  time.Time
}

// NewTextPart is the caller-supplied content of a user message part.
type NewTextPart struct {
	ID      string `validate:"required,max=64"`
	Content string
}

// NewUserMessage is the input for inserting a user message.
// ParentID is nil for the root message and otherwise names an agent message.
type NewUserMessage struct {
	ID       string        `validate:"required,max=64"`
	ParentID *string       `validate:"omitempty,max=64"`
	Parts    []NewTextPart `validate:"required,min=1,dive"`
}

// NewAgentMessage is the input for branching a fresh agent answer off a user message.
type NewAgentMessage struct {
	ID       string `validate:"required,max=64"`
	ParentID string `validate:"required,max=64"`
}

// OrphanedPart is a text part whose content was never compacted.
type OrphanedPart struct {
	PartID         string
	MessageID      string
	ConversationID string
	OwnerUserID    string
	MessageStatus  AgentStatus
}
