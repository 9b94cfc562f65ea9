package generation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/infrastructure/metrics"
)

type Config struct {
	MailboxSize        int
	IdleTimeout        time.Duration
	SendTimeout        time.Duration
	LeaseRenewInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MailboxSize <= 0 {
		c.MailboxSize = 16
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Runtime hosts one entity per conversation id. Commands for the same id are
// handled one at a time in arrival order; distinct ids run in parallel.
type Runtime struct {
	store        Store
	model        LanguageModel
	leaser       Leaser
	instrumenter Instrumenter
	cfg          Config
	log          zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	entities map[string]*entity
	closed   bool
}

func NewRuntime(store Store, model LanguageModel, leaser Leaser, instrumenter Instrumenter, cfg Config) *Runtime {
	if leaser == nil {
		leaser = LocalLeaser{}
	}
	if instrumenter == nil {
		instrumenter = noopInstrumenter{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		store:        store,
		model:        model,
		leaser:       leaser,
		instrumenter: instrumenter,
		cfg:          cfg.withDefaults(),
		log:          logger.Component("generation_runtime"),
		ctx:          ctx,
		cancel:       cancel,
		entities:     make(map[string]*entity),
	}
}

type envelope struct {
	ctx     context.Context
	addr    Address
	command Command
	reply   chan error
}

// Send delivers cmd to the entity addressed by addr and waits for the handler's
// result. Failures to reach the handler are returned as *DeliveryError.
func (r *Runtime) Send(ctx context.Context, addr Address, cmd Command) error {
	env := envelope{
		ctx:     context.WithoutCancel(ctx),
		addr:    addr,
		command: cmd,
		reply:   make(chan error, 1),
	}
	if err := r.enqueue(env); err != nil {
		metrics.RecordDeliveryFailure(string(err.Reason))
		return err
	}

	timer := time.NewTimer(r.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case err := <-env.reply:
		return err
	case <-ctx.Done():
		metrics.RecordDeliveryFailure(string(ReasonTimeout))
		return r.deliveryError(env, ReasonTimeout, ctx.Err())
	case <-timer.C:
		metrics.RecordDeliveryFailure(string(ReasonTimeout))
		return r.deliveryError(env, ReasonTimeout, nil)
	}
}

func (r *Runtime) enqueue(env envelope) *DeliveryError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.deliveryError(env, ReasonShutdown, nil)
	}

	e, ok := r.entities[env.addr.ConversationID]
	if !ok {
		if _, isCleanup := env.command.(Cleanup); isCleanup {
			// Nothing is alive for this key, so there is nothing to abandon.
			env.reply <- nil
			return nil
		}
		e = newEntity(r, env.addr.ConversationID)
		r.entities[env.addr.ConversationID] = e
		metrics.GenerationEntitiesActive.Inc()
		r.wg.Add(1)
		go e.run()
	}

	select {
	case e.mailbox <- env:
		return nil
	default:
		return r.deliveryError(env, ReasonMailboxFull, nil)
	}
}

// retire removes e from the registry. With onlyIfIdle it refuses when commands
// are queued so an idle eviction never drops a command. Commands still queued
// are failed with reason.
func (r *Runtime) retire(e *entity, onlyIfIdle bool, reason DeliveryReason, cause error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if onlyIfIdle && len(e.mailbox) > 0 {
		return false
	}
	if r.entities[e.conversationID] == e {
		delete(r.entities, e.conversationID)
		metrics.GenerationEntitiesActive.Dec()
	}
	for {
		select {
		case env := <-e.mailbox:
			metrics.RecordDeliveryFailure(string(reason))
			env.reply <- r.deliveryError(env, reason, cause)
		default:
			return true
		}
	}
}

// HasEntity reports whether an entity for the conversation is alive on this node.
func (r *Runtime) HasEntity(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entities[conversationID]
	return ok
}

// Shutdown stops accepting commands, abandons running streams and waits for
// every entity to exit or ctx to end.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info().Msg("generation runtime stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) deliveryError(env envelope, reason DeliveryReason, err error) *DeliveryError {
	return &DeliveryError{
		ConversationID: env.addr.ConversationID,
		Command:        env.command.CommandName(),
		Reason:         reason,
		Err:            err,
	}
}
