package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/lib/pq"
	"plantcare/internal/config"
	"plantcare/pkg/logger"
)

var (
	pool *sql.DB
	once sync.Once
)

// DB returns the global database connection pool (initialized on first use).
func DB(ctx context.Context) *sql.DB {
	once.Do(func() {
		cfg := config.Get()
		if cfg.DatabaseURL == "" {
			logger.Error(ctx, "DATABASE_URL is not set")
			return
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error(ctx, "Failed to open database", "error", err)
			return
		}
		db.SetMaxOpenConns(cfg.DBPoolSize)
		db.SetMaxIdleConns(cfg.DBPoolSize / 2)
		pool = db
		logger.Info(ctx, "Database pool initialized", "max_open", cfg.DBPoolSize)
	})
	return pool
}

// InitDB initializes the DB pool and returns it.
func InitDB(ctx context.Context) *sql.DB {
	return DB(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listing (
		id           TEXT PRIMARY KEY,
		species      TEXT NOT NULL DEFAULT '',
		care_details TEXT,
		care_tips    TEXT[] NOT NULL DEFAULT '{}',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS care_task (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL,
		listing_id       TEXT NOT NULL REFERENCES listing(id),
		title            TEXT NOT NULL,
		task_description TEXT NOT NULL,
		due_date         TIMESTAMPTZ NOT NULL,
		completed        BOOLEAN NOT NULL DEFAULT FALSE,
		completed_at     TIMESTAMPTZ,
		is_optional      BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS care_task_user_due_idx ON care_task (user_id, due_date)`,
	`CREATE INDEX IF NOT EXISTS care_task_user_listing_idx ON care_task (user_id, listing_id)`,
	`CREATE TABLE IF NOT EXISTS care_generation (
		event_id   TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		task_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (event_id, listing_id)
	)`,
}

// MigrateOrCreateSchema creates the tables this service owns if they are missing.
func MigrateOrCreateSchema(ctx context.Context) error {
	db := DB(ctx)
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	logger.Info(ctx, "Schema ready", "statements", len(schema))
	return nil
}
