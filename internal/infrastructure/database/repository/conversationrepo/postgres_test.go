package conversationrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
)

// newPostgresRepo runs the store against a real PostgreSQL so row locks and
// pg_current_xact_id markers are exercised. Skipped without a Docker provider.
func newPostgresRepo(t *testing.T) *ConversationGormRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("chat"),
		postgres.WithUsername("jan"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Connect(database.Config{DatabaseURL: dsn, MaxOpen: 8, LogLevel: gormlogger.Silent})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	return NewConversationGormRepository(transaction.NewDatabase(db))
}

func TestPostgresInterruptLifecycle(t *testing.T) {
	repo := newPostgresRepo(t)
	ctx := context.Background()
	seedConversation(t, repo)

	part, err := repo.AppendTextPart(ctx, "A1", owner)
	require.NoError(t, err)
	require.NoError(t, repo.AppendInflightChunk(ctx, part.ID, 2, "world", owner))
	require.NoError(t, repo.AppendInflightChunk(ctx, part.ID, 1, "Hello ", owner))

	first, err := repo.InterruptMessage(ctx, owner, "C1", "A1")
	require.NoError(t, err)
	second, err := repo.InterruptMessage(ctx, owner, "C1", "A1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	content, err := repo.Compact(ctx, part.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", content)
	require.NoError(t, repo.DeleteChunks(ctx, part.ID))

	_, err = repo.TransitionToFinished(ctx, "A1", owner)
	var transitioned *conversation.MessageAlreadyTransitionedError
	assert.True(t, errors.As(err, &transitioned))

	_, err = repo.DeleteConversation(ctx, owner, "C1")
	require.NoError(t, err)
}
