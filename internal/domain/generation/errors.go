package generation

import (
	"fmt"

	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

// GenerationAlreadyInProgressError is returned by StartGeneration while the entity is streaming.
type GenerationAlreadyInProgressError struct {
	ConversationID  string
	ActiveMessageID string
}

func (e *GenerationAlreadyInProgressError) Error() string {
	return fmt.Sprintf("conversation %s is already generating message %s", e.ConversationID, e.ActiveMessageID)
}

func (e *GenerationAlreadyInProgressError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeConflict
}

// DeliveryReason says why a command never reached its handler.
type DeliveryReason string

const (
	ReasonMailboxFull          DeliveryReason = "mailbox_full"
	ReasonRetired              DeliveryReason = "retired"
	ReasonShutdown             DeliveryReason = "shutdown"
	ReasonOwnershipUnavailable DeliveryReason = "ownership_unavailable"
	ReasonTimeout              DeliveryReason = "timeout"
)

// DeliveryError reports a runtime failure that is distinct from the handler's own result.
// For ReasonTimeout the command may still have been handled.
type DeliveryError struct {
	ConversationID string
	Command        string
	Reason         DeliveryReason
	Err            error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver %s to conversation %s: %s: %v", e.Command, e.ConversationID, e.Reason, e.Err)
	}
	return fmt.Sprintf("deliver %s to conversation %s: %s", e.Command, e.ConversationID, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) ErrorType() platformerrors.ErrorType {
	return platformerrors.ErrorTypeUnavailable
}
