package transaction

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/infrastructure/database/dbschema"
)

type TransactionContextKey struct{}

func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, TransactionContextKey{}, tx)
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db}
}

// GetTx returns the transaction carried by ctx, or the root handle.
func (t *Database) GetTx(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TransactionContextKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return t.db.WithContext(ctx)
}

// Transaction runs fn inside a transaction carried by the context passed to fn.
// A transaction already present in ctx is joined instead of nesting a new one.
func (t *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(TransactionContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

// CurrentMarker reads back an identifier of the transaction carried by ctx.
// PostgreSQL reports its own transaction id; SQLite bumps a counter row that
// commits or rolls back together with the caller's writes.
func (t *Database) CurrentMarker(ctx context.Context) (conversation.TxMarker, error) {
	tx := t.GetTx(ctx)
	if tx.Dialector.Name() == "postgres" {
		var id string
		if err := tx.Raw("SELECT pg_current_xact_id()::text").Scan(&id).Error; err != nil {
			return "", fmt.Errorf("read transaction id: %w", err)
		}
		return conversation.TxMarker(id), nil
	}

	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&dbschema.CommitMarker{ID: 1}).Error
	if err != nil {
		return "", fmt.Errorf("seed commit marker: %w", err)
	}
	if err := tx.Model(&dbschema.CommitMarker{}).Where("id = ?", 1).
		UpdateColumn("value", gorm.Expr("value + 1")).Error; err != nil {
		return "", fmt.Errorf("advance commit marker: %w", err)
	}
	var marker dbschema.CommitMarker
	if err := tx.Where("id = ?", 1).Take(&marker).Error; err != nil {
		return "", fmt.Errorf("read commit marker: %w", err)
	}
	return conversation.TxMarker(strconv.FormatInt(marker.Value, 10)), nil
}

// ForUpdate returns a handle whose reads take row locks. SQLite has no row
// locks; its transactions already hold the database write lock from BEGIN.
func (t *Database) ForUpdate(ctx context.Context) *gorm.DB {
	tx := t.GetTx(ctx)
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
