package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/logging"
	"go.uber.org/zap"
)

type migration struct {
	version  int
	name     string
	sqlite   []string
	postgres []string
}

// Nullable unique columns (email, provider_id) rely on both engines treating
// NULLs as distinct inside a UNIQUE index.
var migrations = []migration{
	{
		version: 1,
		name:    "create_users",
		sqlite: []string{`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL CHECK (provider IN ('password', 'telegram')),
			provider_id TEXT,
			role TEXT NOT NULL CHECK (role IN ('Admin', 'Editor', 'Viewer')),
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			photo_url TEXT,
			phone_number TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			UNIQUE (provider, provider_id)
		)`},
		postgres: []string{`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL CHECK (provider IN ('password', 'telegram')),
			provider_id TEXT,
			role TEXT NOT NULL CHECK (role IN ('Admin', 'Editor', 'Viewer')),
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			photo_url TEXT,
			phone_number TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (provider, provider_id)
		)`},
	},
	{
		version: 2,
		name:    "create_product_categories",
		sqlite: []string{`CREATE TABLE IF NOT EXISTS product_categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`},
		postgres: []string{`CREATE TABLE IF NOT EXISTS product_categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`},
	},
	{
		version: 3,
		name:    "create_products",
		sqlite: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id TEXT PRIMARY KEY,
				product_name TEXT NOT NULL,
				price TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				image TEXT NOT NULL,
				category_id TEXT NOT NULL REFERENCES product_categories(id) ON DELETE RESTRICT,
				created_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_products_category_id ON products(category_id)`,
		},
		postgres: []string{
			`CREATE TABLE IF NOT EXISTS products (
				id TEXT PRIMARY KEY,
				product_name TEXT NOT NULL,
				price NUMERIC(12, 2) NOT NULL CHECK (price >= 0),
				description TEXT NOT NULL DEFAULT '',
				image TEXT NOT NULL,
				category_id TEXT NOT NULL REFERENCES product_categories(id) ON DELETE RESTRICT,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_products_category_id ON products(category_id)`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func Migrate(ctx context.Context, db Database, logger *logging.StandardLogger) error {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("migrations")

	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		statements := m.sqlite
		if db.Dialect() == DialectPostgres {
			statements = m.postgres
		}
		if err := applyMigration(ctx, db, m, statements); err != nil {
			return err
		}
		logger.Info("Applied migration", zap.Int("version", m.version), zap.String("name", m.name))
	}
	return nil
}

func applyMigration(ctx context.Context, db Database, m migration, statements []string) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, stmt := range statements {
		if _, err = tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	if _, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version, name, applied_at) VALUES ($1, $2, $3)`,
		m.version, m.name, time.Now().UTC()); err != nil {
		return fmt.Errorf("migration %d: record version: %w", m.version, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.version, err)
	}
	return nil
}
