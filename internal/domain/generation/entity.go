package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/metrics"
	"github.com/janhq/jan-chat/internal/utils/platformerrors"
)

type entity struct {
	runtime        *Runtime
	conversationID string
	mailbox        chan envelope
	log            zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	active *activeStream
}

func newEntity(r *Runtime, conversationID string) *entity {
	ctx, cancel := context.WithCancel(r.ctx)
	return &entity{
		runtime:        r,
		conversationID: conversationID,
		mailbox:        make(chan envelope, r.cfg.MailboxSize),
		log:            r.log.With().Str("conversation_id", conversationID).Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (e *entity) run() {
	r := e.runtime
	defer r.wg.Done()
	defer e.cancel()

	lease, err := r.leaser.Acquire(e.ctx, leaseKey(e.conversationID))
	if err != nil {
		e.log.Warn().Err(err).Msg("ownership lease unavailable")
		r.retire(e, false, ReasonOwnershipUnavailable, err)
		return
	}
	defer func() {
		if err := lease.Release(context.Background()); err != nil {
			e.log.Warn().Err(err).Msg("failed to release ownership lease")
		}
	}()

	idle := time.NewTimer(r.cfg.IdleTimeout)
	defer idle.Stop()

	var renew <-chan time.Time
	if r.cfg.LeaseRenewInterval > 0 {
		ticker := time.NewTicker(r.cfg.LeaseRenewInterval)
		defer ticker.Stop()
		renew = ticker.C
	}

	for {
		var streamDone <-chan struct{}
		if e.active != nil {
			streamDone = e.active.done
		}

		select {
		case env := <-e.mailbox:
			if retired := e.handle(env); retired {
				return
			}
			resetTimer(idle, r.cfg.IdleTimeout)

		case <-streamDone:
			e.active = nil
			metrics.ActiveStreams.Dec()
			resetTimer(idle, r.cfg.IdleTimeout)

		case <-renew:
			if err := lease.Extend(e.ctx); err != nil {
				e.log.Error().Err(err).Msg("lost ownership lease, retiring")
				e.abandonStream()
				r.retire(e, false, ReasonOwnershipUnavailable, err)
				return
			}

		case <-idle.C:
			if e.active != nil {
				resetTimer(idle, r.cfg.IdleTimeout)
				continue
			}
			if r.retire(e, true, ReasonRetired, nil) {
				e.log.Debug().Msg("idle entity retired")
				return
			}
			resetTimer(idle, r.cfg.IdleTimeout)

		case <-e.ctx.Done():
			e.abandonStream()
			r.retire(e, false, ReasonShutdown, nil)
			return
		}
	}
}

// handle runs one command and reports whether the entity retired.
func (e *entity) handle(env envelope) bool {
	name := env.command.CommandName()
	retired := false
	err := e.runtime.instrumenter.InstrumentCommand(env.ctx, name, e.conversationID, func(ctx context.Context) error {
		switch cmd := env.command.(type) {
		case StartGeneration:
			return e.startGeneration(ctx, env.addr, cmd)
		case InterruptGeneration:
			return e.interruptGeneration(ctx, env.addr, cmd)
		case Cleanup:
			if e.active != nil {
				if err := e.checkOwner(ctx, env.addr); err != nil {
					return err
				}
			}
			e.abandonStream()
			e.runtime.retire(e, false, ReasonRetired, nil)
			retired = true
			return nil
		default:
			return platformerrors.NewError(ctx, platformerrors.LayerActor, platformerrors.ErrorTypeInternal,
				fmt.Sprintf("unknown command %s", name), nil, "")
		}
	})
	metrics.RecordGenerationCommand(name, err)
	if err != nil {
		e.log.Debug().Err(err).Str("command", name).Msg("command failed")
	}
	env.reply <- err
	return retired
}

func (e *entity) startGeneration(ctx context.Context, addr Address, cmd StartGeneration) error {
	if e.active != nil {
		return &GenerationAlreadyInProgressError{ConversationID: e.conversationID, ActiveMessageID: e.active.messageID}
	}

	tree, err := e.runtime.store.LoadForGeneration(ctx, e.conversationID)
	if err != nil {
		return err
	}
	if tree.Conversation == nil || tree.Conversation.OwnerUserID != addr.OwnerUserID {
		return &conversation.MissingConversationError{ConversationID: e.conversationID}
	}
	target, ok := tree.AgentMessage(cmd.MessageID)
	if !ok || target.ConversationID != e.conversationID {
		return &conversation.MissingMessageError{ConversationID: e.conversationID, MessageID: cmd.MessageID}
	}
	if target.Status != conversation.AgentStatusInProgress {
		return &conversation.MessageAlreadyTransitionedError{MessageID: cmd.MessageID, Status: target.Status}
	}
	thread, err := tree.Thread(cmd.MessageID)
	if err != nil {
		return err
	}

	e.active = e.launchStream(addr, cmd.MessageID, thread[:len(thread)-1])
	metrics.ActiveStreams.Inc()
	return nil
}

func (e *entity) interruptGeneration(ctx context.Context, addr Address, cmd InterruptGeneration) error {
	if _, err := e.runtime.store.InterruptMessage(ctx, addr.OwnerUserID, e.conversationID, cmd.MessageID); err != nil {
		return err
	}
	if e.active != nil && e.active.messageID == cmd.MessageID {
		e.active.stop.Store(true)
	}
	return nil
}

func (e *entity) checkOwner(ctx context.Context, addr Address) error {
	tree, err := e.runtime.store.LoadForGeneration(ctx, e.conversationID)
	if err != nil {
		return err
	}
	if tree.Conversation == nil || tree.Conversation.OwnerUserID != addr.OwnerUserID {
		return &conversation.MissingConversationError{ConversationID: e.conversationID}
	}
	return nil
}

// abandonStream cancels the running stream and waits for it to exit.
func (e *entity) abandonStream() {
	if e.active == nil {
		return
	}
	e.active.cancel()
	<-e.active.done
	e.active = nil
	metrics.ActiveStreams.Dec()
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
