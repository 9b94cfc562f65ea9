// Package dbtest opens throwaway SQLite databases with the full chat schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/jan-chat/internal/infrastructure/database"
	_ "github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
)

// NewSQLite migrates a fresh database file under t.TempDir and closes it on cleanup.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := database.Connect(database.Config{
		DatabaseURL: "sqlite:" + path,
		LogLevel:    gormlogger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// NewDatabase wraps NewSQLite in the transaction helper used by repositories.
func NewDatabase(t testing.TB) *transaction.Database {
	t.Helper()
	return transaction.NewDatabase(NewSQLite(t))
}
