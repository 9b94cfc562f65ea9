package generation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat/internal/domain/conversation"
)

func newSweeper(f *fixture) *Sweeper {
	s := NewSweeper(f.repo, f.runtime, 10*time.Minute)
	s.now = func() time.Time { return time.Now().Add(time.Hour) }
	return s
}

func TestSweepRepairsAbandonedStream(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hel"}
	require.Eventually(t, func() bool { return f.chunkCount(t) == 1 }, waitFor, tick)
	require.NoError(t, f.runtime.Send(ctx, addr, Cleanup{}))

	report, err := newSweeper(f).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{StaleMessages: 1, CompactedParts: 1}, report)

	a1 := f.agent(t, "A1")
	assert.Equal(t, conversation.AgentStatusError, a1.Status)
	assert.Equal(t, "Hel", conversation.Text(a1))
	assert.Zero(t, f.chunkCount(t))

	report, err = newSweeper(f).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
}

func TestSweepSkipsLiveEntities(t *testing.T) {
	f := newFixture(t, Config{}, nil, nil)
	ctx := context.Background()

	require.NoError(t, f.runtime.Send(ctx, addr, StartGeneration{MessageID: "A1"}))
	f.model.steps <- step{text: "Hel"}
	require.Eventually(t, func() bool { return f.chunkCount(t) == 1 }, waitFor, tick)

	report, err := newSweeper(f).Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{}, report)
	assert.Equal(t, conversation.AgentStatusInProgress, f.agent(t, "A1").Status)

	close(f.model.steps)
	f.waitForStatus(t, "A1", conversation.AgentStatusFinished)
}
