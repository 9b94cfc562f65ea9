package generation

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbtest"
	"github.com/janhq/jan-chat/internal/infrastructure/database/repository/conversationrepo"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
)

const (
	owner   = "user-1"
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

var addr = Address{ConversationID: "C1", OwnerUserID: owner}

type step struct {
	text string
	err  error
}

// scriptedModel streams whatever the test pushes into steps. Closing steps ends
// the stream with io.EOF.
type scriptedModel struct {
	steps chan step
	usage conversation.Usage

	mu      sync.Mutex
	threads [][]conversation.Message
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{
		steps: make(chan step, 16),
		usage: conversation.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
}

func (m *scriptedModel) StreamCompletion(ctx context.Context, thread []conversation.Message) (Completion, error) {
	m.mu.Lock()
	m.threads = append(m.threads, thread)
	m.mu.Unlock()
	return &scriptedCompletion{ctx: ctx, model: m}, nil
}

func (m *scriptedModel) lastThread() []conversation.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.threads) == 0 {
		return nil
	}
	return m.threads[len(m.threads)-1]
}

type scriptedCompletion struct {
	ctx   context.Context
	model *scriptedModel
}

func (c *scriptedCompletion) Recv() (string, error) {
	select {
	case <-c.ctx.Done():
		return "", c.ctx.Err()
	case s, ok := <-c.model.steps:
		if !ok {
			return "", io.EOF
		}
		return s.text, s.err
	}
}

func (c *scriptedCompletion) Usage() conversation.Usage { return c.model.usage }
func (c *scriptedCompletion) Close() error              { return nil }

type fixture struct {
	runtime *Runtime
	repo    *conversationrepo.ConversationGormRepository
	db      *transaction.Database
	model   *scriptedModel
}

func newFixture(t *testing.T, cfg Config, wrap func(Store) Store, leaser Leaser) *fixture {
	t.Helper()
	db := dbtest.NewDatabase(t)
	repo := conversationrepo.NewConversationGormRepository(db)

	_, err := repo.CreateConversation(context.Background(), owner, "C1",
		conversation.NewUserMessage{ID: "U1", Parts: []conversation.NewTextPart{{ID: "U1-part", Content: "Hello"}}}, "A1")
	require.NoError(t, err)

	var store Store = repo
	if wrap != nil {
		store = wrap(repo)
	}
	model := newScriptedModel()
	runtime := NewRuntime(store, model, leaser, nil, cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = runtime.Shutdown(ctx)
	})
	return &fixture{runtime: runtime, repo: repo, db: db, model: model}
}

func (f *fixture) agent(t *testing.T, id string) *conversation.AgentMessage {
	t.Helper()
	tree, err := f.repo.LoadForGeneration(context.Background(), "C1")
	require.NoError(t, err)
	msg, ok := tree.AgentMessage(id)
	require.True(t, ok)
	return msg
}

func (f *fixture) chunkCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.GetTx(context.Background()).Model(&dbschema.InflightChunk{}).Count(&n).Error)
	return n
}

func (f *fixture) waitForStatus(t *testing.T, id string, status conversation.AgentStatus) *conversation.AgentMessage {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.agent(t, id).Status == status
	}, waitFor, tick)
	return f.agent(t, id)
}

func TestStartGenerationFinishes(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)

	require.NoError(t, f.runtime.Send(context.Background(), addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hel"}
	f.model.steps <- step{text: ""}
	f.model.steps <- step{text: "lo"}
	close(f.model.steps)

	a1 := f.waitForStatus(t, "A1", conversation.AgentStatusFinished)
	assert.Equal(t, "Hello", conversation.Text(a1))
	require.Len(t, a1.Parts, 2)
	completion, ok := a1.Parts[1].(*conversation.StepCompletionPart)
	require.True(t, ok)
	assert.Equal(t, 5, completion.Usage.TotalTokens)
	assert.Zero(t, f.chunkCount(t))

	thread := f.model.lastThread()
	require.Len(t, thread, 1)
	assert.Equal(t, "U1", thread[0].Base().ID)
}

func TestStartGenerationWhileStreaming(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))

	err := f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"})
	var inProgress *GenerationAlreadyInProgressError
	require.ErrorAs(t, err, &inProgress)
	assert.Equal(t, "A1", inProgress.ActiveMessageID)

	close(f.model.steps)
	f.waitForStatus(t, "A1", conversation.AgentStatusFinished)
}

func TestStartGenerationRejects(t *testing.T) {
	tests := []struct {
		name    string
		addr    Address
		message string
		setup   func(t *testing.T, f *fixture)
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unknown message",
			addr:    addr,
			message: "missing",
			check: func(t *testing.T, err error) {
				var missing *conversation.MissingMessageError
				assert.ErrorAs(t, err, &missing)
			},
		},
		{
			name:    "user message",
			addr:    addr,
			message: "U1",
			check: func(t *testing.T, err error) {
				var missing *conversation.MissingMessageError
				assert.ErrorAs(t, err, &missing)
			},
		},
		{
			name:    "unknown conversation",
			addr:    Address{ConversationID: "C2", OwnerUserID: owner},
			message: "A1",
			check: func(t *testing.T, err error) {
				var missing *conversation.MissingConversationError
				assert.ErrorAs(t, err, &missing)
			},
		},
		{
			name:    "foreign owner",
			addr:    Address{ConversationID: "C1", OwnerUserID: "user-2"},
			message: "A1",
			check: func(t *testing.T, err error) {
				var missing *conversation.MissingConversationError
				assert.ErrorAs(t, err, &missing)
			},
		},
		{
			name:    "settled message",
			addr:    addr,
			message: "A1",
			setup: func(t *testing.T, f *fixture) {
				_, err := f.repo.TransitionToError(context.Background(), "A1", owner)
				require.NoError(t, err)
			},
			check: func(t *testing.T, err error) {
				var transitioned *conversation.MessageAlreadyTransitionedError
				require.ErrorAs(t, err, &transitioned)
				assert.Equal(t, conversation.AgentStatusError, transitioned.Status)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{}, nil, nil)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			err := f.runtime.Send(context.Background(), tt.addr, StartGeneration{MessageID: tt.message})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestInterruptMidStream(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hel"}
	require.Eventually(t, func() bool { return f.chunkCount(t) == 1 }, waitFor, tick)

	require.NoError(t, f.runtime.Send(ctx, addr, InterruptGeneration{MessageID: "A1"}))
	assert.Equal(t, conversation.AgentStatusInterrupted, f.agent(t, "A1").Status)

	// The stream notices the interrupt on its next fragment and drops it.
	f.model.steps <- step{text: "lo"}
	require.Eventually(t, func() bool {
		return conversation.Text(f.agent(t, "A1")) == "Hel" && f.chunkCount(t) == 0
	}, waitFor, tick)

	a1 := f.agent(t, "A1")
	assert.Equal(t, conversation.AgentStatusInterrupted, a1.Status)
	assert.Equal(t, "Hel", conversation.Text(a1))
	assert.Len(t, a1.Parts, 1)
	assert.Zero(t, f.chunkCount(t))
}

func TestInterruptWithoutStream(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)

	require.NoError(t, f.runtime.Send(context.Background(), addr, InterruptGeneration{MessageID: "A1"}))
	assert.Equal(t, conversation.AgentStatusInterrupted, f.agent(t, "A1").Status)

	err := f.runtime.Send(context.Background(), Address{ConversationID: "C1", OwnerUserID: "user-2"}, InterruptGeneration{MessageID: "A1"})
	var missing *conversation.MissingConversationError
	assert.ErrorAs(t, err, &missing)
}

func TestStreamFailureKeepsPartialOutput(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)

	require.NoError(t, f.runtime.Send(context.Background(), addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hi"}
	f.model.steps <- step{err: errors.New("upstream reset")}

	a1 := f.waitForStatus(t, "A1", conversation.AgentStatusError)
	assert.Equal(t, "Hi", conversation.Text(a1))
	assert.Len(t, a1.Parts, 1)
	assert.Zero(t, f.chunkCount(t))
}

func TestCleanupRequiresOwnerWhileStreaming(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))

	err := f.runtime.Send(ctx, Address{ConversationID: "C1", OwnerUserID: "user-2"}, Cleanup{})
	var missing *conversation.MissingConversationError
	require.ErrorAs(t, err, &missing)
	assert.True(t, f.runtime.HasEntity("C1"))

	close(f.model.steps)
	f.waitForStatus(t, "A1", conversation.AgentStatusFinished)
}

func TestCleanupAbandonsStream(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hel"}
	require.Eventually(t, func() bool { return f.chunkCount(t) == 1 }, waitFor, tick)

	require.NoError(t, f.runtime.Send(ctx, addr, Cleanup{}))
	assert.False(t, f.runtime.HasEntity("C1"))

	a1 := f.agent(t, "A1")
	assert.Equal(t, conversation.AgentStatusInProgress, a1.Status)
	assert.Equal(t, int64(1), f.chunkCount(t))

	// No entity is alive, so a second cleanup is a no-op.
	require.NoError(t, f.runtime.Send(ctx, addr, Cleanup{}))
}

// blockingStore parks LoadForGeneration until release is closed.
type blockingStore struct {
	Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) LoadForGeneration(ctx context.Context, conversationID string) (*conversation.Tree, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Store.LoadForGeneration(ctx, conversationID)
}

func TestMailboxFull(t *testing.T) {
	blocking := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, Config{MailboxSize: 1}, func(s Store) Store {
		blocking.Store = s
		return blocking
	}, nil)
	ctx := context.Background()

	startErr := make(chan error, 1)
	go func() { startErr <- f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}) }()
	<-blocking.entered

	queuedErr := make(chan error, 1)
	go func() { queuedErr <- f.runtime.Send(ctx, addr, InterruptGeneration{MessageID: "A1"}) }()
	require.Eventually(t, func() bool {
		f.runtime.mu.Lock()
		defer f.runtime.mu.Unlock()
		return len(f.runtime.entities["C1"].mailbox) == 1
	}, waitFor, tick)

	err := f.runtime.Send(ctx, addr, InterruptGeneration{MessageID: "A1"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, ReasonMailboxFull, delivery.Reason)

	close(blocking.release)
	require.NoError(t, <-startErr)
	require.NoError(t, <-queuedErr)
	close(f.model.steps)
	assert.Equal(t, conversation.AgentStatusInterrupted, f.agent(t, "A1").Status)
}

func TestIdleEntityRetires(t *testing.T) {
	f := newFixture(t, Config{IdleTimeout: 50 * time.Millisecond}, nil, nil)

	require.NoError(t, f.runtime.Send(context.Background(), addr, InterruptGeneration{MessageID: "A1"}))
	require.Eventually(t, func() bool { return !f.runtime.HasEntity("C1") }, waitFor, tick)

	// A retired key is recreated on demand.
	err := f.runtime.Send(context.Background(), addr, InterruptGeneration{MessageID: "A1"})
	require.NoError(t, err)
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))

	shutdownCtx, cancel := context.WithTimeout(ctx, waitFor)
	defer cancel()
	require.NoError(t, f.runtime.Shutdown(shutdownCtx))
	assert.False(t, f.runtime.HasEntity("C1"))
	assert.Equal(t, conversation.AgentStatusInProgress, f.agent(t, "A1").Status)

	err := f.runtime.Send(ctx, addr, InterruptGeneration{MessageID: "A1"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, ReasonShutdown, delivery.Reason)
}

type unavailableLeaser struct{}

func (unavailableLeaser) Acquire(context.Context, string) (Lease, error) {
	return nil, errors.New("held elsewhere")
}

func TestOwnershipUnavailable(t *testing.T) {
	f := newFixture(t, Config{}, nil, unavailableLeaser{})

	err := f.runtime.Send(context.Background(), addr, StartGeneration{MessageID: "A1"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, ReasonOwnershipUnavailable, delivery.Reason)
	assert.False(t, f.runtime.HasEntity("C1"))
	assert.Equal(t, conversation.AgentStatusInProgress, f.agent(t, "A1").Status)
}

func TestSendHonoursCallerContext(t *testing.T) {
	blocking := &blockingStore{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, Config{}, func(s Store) Store {
		blocking.Store = s
		return blocking
	}, nil)
	defer close(blocking.release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"})
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, ReasonTimeout, delivery.Reason)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
