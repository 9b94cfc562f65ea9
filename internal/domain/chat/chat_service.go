package chat

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/infrastructure/metrics"
	"github.com/janhq/jan-chat/internal/utils/idgen"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

const defaultListLimit = 50

// ChatService composes the conversation store and the generation runtime.
// Every mutation commits before the runtime is signalled, except deletion.
type ChatService struct {
	store     conversation.Store
	generator Generator
	validate  *validator.Validate
	log       zerolog.Logger
}

func NewChatService(store conversation.Store, generator Generator) *ChatService {
	return &ChatService{
		store:     store,
		generator: generator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logger.Component("chat_service"),
	}
}

// StartConversation creates a conversation with its first exchange and starts generating the answer.
func (s *ChatService) StartConversation(ctx context.Context, ownerUserID string, input StartConversationInput) (*GenerationResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid start conversation input", err, "6f0c2a51-3d47-4e8b-9a15-c2d8e7b40f13")
	}

	conversationID, err := orNewID(input.ConversationID, idgen.PrefixConversation)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}
	user, err := newUserMessage(input.UserMessageID, nil, input.Parts)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ids")
	}
	agentID, err := orNewID(input.AgentMessageID, idgen.PrefixMessage)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	marker, err := s.store.CreateConversation(ctx, ownerUserID, conversationID, user, agentID)
	if err != nil {
		return nil, err
	}
	metrics.ConversationsCreatedTotal.Inc()

	result := &GenerationResult{ConversationID: conversationID, UserMessageID: user.ID, AgentMessageID: agentID, Marker: marker}
	return result, s.startGeneration(ctx, ownerUserID, conversationID, agentID)
}

// ContinueConversation appends a user message under ParentID (nil starts a new root) and answers it.
func (s *ChatService) ContinueConversation(ctx context.Context, ownerUserID string, input ContinueConversationInput) (*GenerationResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid continue conversation input", err, "0a9e4b72-58c1-4f36-b2d0-7e61c3a95d48")
	}

	user, err := newUserMessage(input.UserMessageID, input.ParentID, input.Parts)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message ids")
	}
	agentID, err := orNewID(input.AgentMessageID, idgen.PrefixMessage)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	marker, err := s.store.ContinueConversation(ctx, ownerUserID, input.ConversationID, user, agentID)
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{ConversationID: input.ConversationID, UserMessageID: user.ID, AgentMessageID: agentID, Marker: marker}
	return result, s.startGeneration(ctx, ownerUserID, input.ConversationID, agentID)
}

// RegenerateAnswer adds a sibling agent message under an existing user message.
func (s *ChatService) RegenerateAnswer(ctx context.Context, ownerUserID string, input RegenerateAnswerInput) (*GenerationResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "invalid regenerate input", err, "d3b18f06-92a4-4c5e-8f7b-1a06e4c2d9b5")
	}

	agentID, err := orNewID(input.AgentMessageID, idgen.PrefixMessage)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	marker, err := s.store.RegenerateAnswer(ctx, ownerUserID, input.ConversationID, conversation.NewAgentMessage{ID: agentID, ParentID: input.ParentID})
	if err != nil {
		return nil, err
	}

	result := &GenerationResult{ConversationID: input.ConversationID, AgentMessageID: agentID, Marker: marker}
	return result, s.startGeneration(ctx, ownerUserID, input.ConversationID, agentID)
}

// InterruptGeneration marks the message INTERRUPTED and asks the running stream to stop.
func (s *ChatService) InterruptGeneration(ctx context.Context, ownerUserID, conversationID, messageID string) (*MutationResult, error) {
	marker, err := s.store.InterruptMessage(ctx, ownerUserID, conversationID, messageID)
	if err != nil {
		return nil, err
	}

	result := &MutationResult{ConversationID: conversationID, Marker: marker}
	err = s.generator.Send(ctx, address(ownerUserID, conversationID), generation.InterruptGeneration{MessageID: messageID})
	if err != nil {
		return result, s.triggerError(conversationID, generation.InterruptGeneration{}.CommandName(), err)
	}
	return result, nil
}

// DeleteConversation retires the conversation's entity before removing its rows.
func (s *ChatService) DeleteConversation(ctx context.Context, ownerUserID, conversationID string) (*MutationResult, error) {
	if err := s.generator.Send(ctx, address(ownerUserID, conversationID), generation.Cleanup{}); err != nil {
		return nil, s.triggerError(conversationID, generation.Cleanup{}.CommandName(), err)
	}

	marker, err := s.store.DeleteConversation(ctx, ownerUserID, conversationID)
	if err != nil {
		return nil, err
	}
	return &MutationResult{ConversationID: conversationID, Marker: marker}, nil
}

// EditTitle sets or clears the conversation title.
func (s *ChatService) EditTitle(ctx context.Context, ownerUserID, conversationID string, title *string) (*MutationResult, error) {
	if title != nil {
		if err := s.validate.Var(*title, "max=255"); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title is too long", err, "8c47e2d9-1b05-4a63-97f8-e5a2b0c14d76")
		}
	}

	marker, err := s.store.UpdateTitle(ctx, ownerUserID, conversationID, title)
	if err != nil {
		return nil, err
	}
	return &MutationResult{ConversationID: conversationID, Marker: marker}, nil
}

func (s *ChatService) GetConversation(ctx context.Context, ownerUserID, conversationID string) (*conversation.Tree, error) {
	return s.store.GetConversation(ctx, ownerUserID, conversationID)
}

func (s *ChatService) ListConversations(ctx context.Context, ownerUserID string, limit int) ([]*conversation.Conversation, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultListLimit
	}
	return s.store.ListConversations(ctx, ownerUserID, limit)
}

// startGeneration triggers the stream for a freshly committed agent message.
// A handler rejection leaves nothing to produce the answer, so the message is
// moved to ERROR.
func (s *ChatService) startGeneration(ctx context.Context, ownerUserID, conversationID, agentMessageID string) error {
	cmd := generation.StartGeneration{MessageID: agentMessageID}
	err := s.generator.Send(ctx, address(ownerUserID, conversationID), cmd)
	if err == nil {
		return nil
	}

	var delivery *generation.DeliveryError
	if errors.As(err, &delivery) {
		return s.triggerError(conversationID, cmd.CommandName(), err)
	}

	if _, terr := s.store.TransitionToError(context.WithoutCancel(ctx), agentMessageID, ownerUserID); terr != nil {
		var transitioned *conversation.MessageAlreadyTransitionedError
		if !errors.As(terr, &transitioned) {
			s.log.Error().Err(terr).
				Str("conversation_id", conversationID).
				Str("message_id", agentMessageID).
				Msg("failed to mark rejected generation as errored")
		}
	}
	return err
}

func (s *ChatService) triggerError(conversationID, command string, err error) error {
	s.log.Warn().Err(err).Str("conversation_id", conversationID).Str("command", command).Msg("generation trigger failed")
	return &GenerationTriggerError{ConversationID: conversationID, Command: command, Err: err}
}

func address(ownerUserID, conversationID string) generation.Address {
	return generation.Address{ConversationID: conversationID, OwnerUserID: ownerUserID}
}

func orNewID(id, prefix string) (string, error) {
	if id != "" {
		return id, nil
	}
	return idgen.NewID(prefix)
}

func newUserMessage(id string, parentID *string, parts []TextInput) (conversation.NewUserMessage, error) {
	id, err := orNewID(id, idgen.PrefixMessage)
	if err != nil {
		return conversation.NewUserMessage{}, err
	}
	msg := conversation.NewUserMessage{ID: id, ParentID: parentID, Parts: make([]conversation.NewTextPart, len(parts))}
	for i, part := range parts {
		partID, err := orNewID(part.ID, idgen.PrefixPart)
		if err != nil {
			return conversation.NewUserMessage{}, err
		}
		msg.Parts[i] = conversation.NewTextPart{ID: partID, Content: part.Content}
	}
	return msg, nil
}
