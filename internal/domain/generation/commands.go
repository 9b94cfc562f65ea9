package generation

// Address names the entity a command is delivered to. The owner is carried so
// store writes made on behalf of the conversation are attributed to it.
type Address struct {
	ConversationID string
	OwnerUserID    string
}

// Command is implemented by StartGeneration, InterruptGeneration and Cleanup.
type Command interface {
	CommandName() string
}

// StartGeneration streams an answer into an already persisted IN_PROGRESS agent message.
type StartGeneration struct {
	MessageID string
}

func (StartGeneration) CommandName() string { return "start_generation" }

// InterruptGeneration marks the message INTERRUPTED and stops its stream at the next fragment.
type InterruptGeneration struct {
	MessageID string
}

func (InterruptGeneration) CommandName() string { return "interrupt_generation" }

// Cleanup abandons any stream and retires the entity.
type Cleanup struct{}

func (Cleanup) CommandName() string { return "cleanup" }
