package conversationrepo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat/internal/domain/conversation"
)

func TestFindOrphanedParts(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedConversation(t, repo)

	part, err := repo.AppendTextPart(ctx, "A1", owner)
	require.NoError(t, err)
	require.NoError(t, repo.AppendInflightChunk(ctx, part.ID, 1, "partial", owner))

	later := time.Now().Add(time.Hour)

	orphans, err := repo.FindOrphanedParts(ctx, later, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans, "parts of in-progress messages belong to a live stream")

	_, err = repo.InterruptMessage(ctx, owner, "C1", "A1")
	require.NoError(t, err)

	orphans, err = repo.FindOrphanedParts(ctx, later, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, conversation.OrphanedPart{
		PartID:         part.ID,
		MessageID:      "A1",
		ConversationID: "C1",
		OwnerUserID:    owner,
		MessageStatus:  conversation.AgentStatusInterrupted,
	}, orphans[0])

	orphans, err = repo.FindOrphanedParts(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)

	_, err = repo.Compact(ctx, part.ID)
	require.NoError(t, err)
	orphans, err = repo.FindOrphanedParts(ctx, later, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestFindStaleMessages(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()
	seedConversation(t, repo)
	_, err := repo.CreateConversation(ctx, owner, "C2", userMessage("U2", nil, "Hi"), "A2")
	require.NoError(t, err)
	_, err = repo.TransitionToFinished(ctx, "A2", owner)
	require.NoError(t, err)

	stale, err := repo.FindStaleMessages(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "A1", stale[0].ID)
	assert.Equal(t, "C1", stale[0].ConversationID)
	assert.Equal(t, owner, stale[0].OwnerUserID)

	stale, err = repo.FindStaleMessages(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
