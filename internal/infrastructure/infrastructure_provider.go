package infrastructure

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/janhq/jan-chat/internal/config"
	"github.com/janhq/jan-chat/internal/domain/conversation"
	"github.com/janhq/jan-chat/internal/domain/generation"
	"github.com/janhq/jan-chat/internal/infrastructure/crontab"
	"github.com/janhq/jan-chat/internal/infrastructure/database"
	"github.com/janhq/jan-chat/internal/infrastructure/database/repository/conversationrepo"
	"github.com/janhq/jan-chat/internal/infrastructure/database/transaction"
	"github.com/janhq/jan-chat/internal/infrastructure/inference"
	"github.com/janhq/jan-chat/internal/infrastructure/logger"
	"github.com/janhq/jan-chat/internal/infrastructure/observability"
	"github.com/janhq/jan-chat/internal/infrastructure/ownership"
)

// ProvideConfig loads and provides the application configuration
func ProvideConfig() (*config.Config, error) {
	return config.Load()
}

// ProvideDatabase provides a database connection
func ProvideDatabase(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(database.Config{
		DatabaseURL:    cfg.DatabaseURL,
		ReadReplicaURL: cfg.DBPostgresqlRead1DSN,
		MaxIdle:        cfg.DBMaxIdleConns,
		MaxOpen:        cfg.DBMaxOpenConns,
		MaxLifetime:    cfg.DBConnMaxLifetime,
		LogLevel:       gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}

	// Run migrations if AUTO_MIGRATE is enabled
	if cfg.AutoMigrate {
		log.Info().Msg("Running database migrations...")
		if err := database.AutoMigrate(db); err != nil {
			log.Error().Err(err).Msg("Failed to run database migrations")
			return nil, err
		}
		log.Info().Msg("Database migrations completed successfully")
	}
	return db, nil
}

// ProvideTransactionDatabase provides a transaction database wrapper
func ProvideTransactionDatabase(db *gorm.DB) *transaction.Database {
	return transaction.NewDatabase(db)
}

// ProvideLeaser uses Redis when REDIS_URL is set and a single-instance leaser otherwise.
func ProvideLeaser(cfg *config.Config, log zerolog.Logger) (generation.Leaser, error) {
	if cfg.RedisURL == "" {
		log.Info().Msg("REDIS_URL not set, generation ownership is local to this instance")
		return generation.LocalLeaser{}, nil
	}
	return ownership.NewRedisLeaser(cfg.RedisURL, cfg.OwnershipLeaseTTL)
}

// InfrastructureProvider provides all infrastructure dependencies
var InfrastructureProvider = wire.NewSet(
	// Config
	ProvideConfig,

	// Logger
	logger.GetLogger,

	// Database
	ProvideDatabase,
	ProvideTransactionDatabase,

	// Repositories
	conversationrepo.NewConversationGormRepository,
	wire.Bind(new(conversation.Store), new(*conversationrepo.ConversationGormRepository)),
	wire.Bind(new(generation.Store), new(*conversationrepo.ConversationGormRepository)),

	// Language model
	inference.ProvideOpenAIModel,
	wire.Bind(new(generation.LanguageModel), new(*inference.OpenAIModel)),

	// Generation ownership and instrumentation
	ProvideLeaser,
	observability.ProvideCommandInstrumenter,
	wire.Bind(new(generation.Instrumenter), new(*observability.CommandInstrumenter)),

	// Crontab for the generation sweeper
	crontab.NewCrontab,
)
