package conversation

import (
	"strings"
	"time"
)

// Message is implemented by *UserMessage and *AgentMessage only.
type Message interface {
	Base() *MessageBase
	Role() Role
	isMessage()
}

// MessageBase holds the attributes shared by both message roles.
type MessageBase struct {
	ID             string
	ConversationID string
	OwnerUserID    string
	ParentID       *string
	Parts          []Part
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type UserMessage struct {
	MessageBase
}

func (m *UserMessage) Base() *MessageBase { return &m.MessageBase }
func (m *UserMessage) Role() Role         { return RoleUser }
func (m *UserMessage) isMessage()         {}

type AgentMessage struct {
	MessageBase
	Status       AgentStatus
	StatusMarker *TxMarker
}

func (m *AgentMessage) Base() *MessageBase { return &m.MessageBase }
func (m *AgentMessage) Role() Role         { return RoleAgent }
func (m *AgentMessage) isMessage()         {}

// Text concatenates the compacted content of the message's text parts.
func Text(m Message) string {
	var sb strings.Builder
	for _, part := range m.Base().Parts {
		if text, ok := part.(*TextPart); ok && text.Content != nil {
			sb.WriteString(*text.Content)
		}
	}
	return sb.String()
}

// PartKind discriminates message part payloads.
type PartKind string

const (
	PartKindText           PartKind = "TEXT"
	PartKindStepCompletion PartKind = "STEP_COMPLETION"
)

// Part is implemented by *TextPart and *StepCompletionPart only.
type Part interface {
	Base() *PartBase
	Kind() PartKind
	isPart()
}

type PartBase struct {
	ID          string
	MessageID   string
	OwnerUserID string
	CreatedAt   time.Time
}

// TextPart content stays nil while streaming and is written once by compaction.
type TextPart struct {
	PartBase
	Content *string
}

func (p *TextPart) Base() *PartBase { return &p.PartBase }
func (p *TextPart) Kind() PartKind  { return PartKindText }
func (p *TextPart) isPart()         {}

// Usage is the token accounting reported by the model at the end of a stream.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type StepCompletionPart struct {
	PartBase
	Usage Usage
}

func (p *StepCompletionPart) Base() *PartBase { return &p.PartBase }
func (p *StepCompletionPart) Kind() PartKind  { return PartKindStepCompletion }
func (p *StepCompletionPart) isPart()         {}

// InflightChunk is a sequenced fragment of streamed output not yet merged into its part.
type InflightChunk struct {
	ID          string
	PartID      string
	Sequence    int
	Content     string
	OwnerUserID string
	CreatedAt   time.Time
}
