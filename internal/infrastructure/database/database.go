package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/janhq/jan-chat/internal/infrastructure/logger"
)

var SchemaRegistry []interface{}

func RegisterSchemaForAutoMigrate(models ...interface{}) {
	SchemaRegistry = append(SchemaRegistry, models...)
}

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	DatabaseURL    string
	ReadReplicaURL string
	MaxIdle        int
	MaxOpen        int
	MaxLifetime    time.Duration
	LogLevel       gormlogger.LogLevel
}

// Connect opens PostgreSQL for postgres:// URLs and SQLite for sqlite: or file: URLs.
func Connect(cfg Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url is empty")
	}
	log := logger.GetLogger()

	dialector, dialect := openDialector(cfg.DatabaseURL)
	if dialect == DialectPostgres {
		if err := ensureDatabaseExists(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("ensure database: %w", err)
		}
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormlogger.Warn
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(cfg.LogLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		log.Error().
			Str("error_code", "4b1f0d3e-2f55-4d8e-9a57-6a1c0e7d2b10").
			Err(err).
			Msg("unable to connect to database")
		return nil, err
	}

	if cfg.ReadReplicaURL != "" && dialect == DialectPostgres {
		err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{postgres.Open(cfg.ReadReplicaURL)},
			Policy:   dbresolver.RandomPolicy{},
		}))
		if err != nil {
			return nil, fmt.Errorf("register read replica: %w", err)
		}
		log.Info().Msg("read replica registered")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	if dialect == DialectSQLite {
		// SQLite allows a single writer; one connection keeps BEGIN IMMEDIATE from deadlocking.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxIdle > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		}
		if cfg.MaxOpen > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		}
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	log.Info().Str("dialect", dialect).Msg("Successfully connected to database")
	return db, nil
}

// NewDB creates a new database connection using DSN
func NewDB(dsn string) (*gorm.DB, error) {
	return Connect(Config{
		DatabaseURL: dsn,
		MaxIdle:     10,
		MaxOpen:     25,
		MaxLifetime: time.Hour,
		LogLevel:    gormlogger.Silent,
	})
}

func openDialector(databaseURL string) (gorm.Dialector, string) {
	switch {
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return sqlite.Open(sqliteDSN(strings.TrimPrefix(databaseURL, "sqlite:"))), DialectSQLite
	case strings.HasPrefix(databaseURL, "file:"):
		return sqlite.Open(sqliteDSN(databaseURL)), DialectSQLite
	default:
		return postgres.Open(databaseURL), DialectPostgres
	}
}

// sqliteDSN enables the options the store depends on: writers wait instead of
// failing, transactions take the write lock up front, foreign keys are enforced.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
}

func ensureDatabaseExists(dsn string) error {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return nil
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" || dbName == "postgres" {
		return nil
	}

	adminURL := *u
	adminURL.Path = "/postgres"

	sqlDB, err := sql.Open("postgres", adminURL.String())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var exists bool
	err = sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
