package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/adminboard/backend-api/internal/config"
	"github.com/adminboard/backend-api/internal/logging"
	"go.uber.org/zap"
)

// Database abstracts both PostgreSQL and SQLite connections.
// Repositories only depend on DBPool; Dialect is used by the migrator.
type Database interface {
	DBPool
	Close() error
	IsReady() bool
	HealthCheck(ctx context.Context) error
	BeginTx(ctx context.Context) (*sql.Tx, error)
	Dialect() Dialect
}

// Dialect enumerates supported SQL dialects.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// NewDatabaseConnection creates a database connection based on the driver configuration.
func NewDatabaseConnection(cfg *config.DatabaseConfig, logger *logging.StandardLogger) (Database, error) {
	return NewDatabaseConnectionWithContext(context.Background(), cfg, logger)
}

// NewDatabaseConnectionWithContext is NewDatabaseConnection with a caller
// supplied context bounding the connection attempts.
func NewDatabaseConnectionWithContext(ctx context.Context, cfg *config.DatabaseConfig, logger *logging.StandardLogger) (Database, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("database")

	switch DetectDialect(cfg.Driver) {
	case DialectSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "adminboard.db"
		}
		logger.Info("Connecting to SQLite database", zap.String("path", path))
		return NewSQLiteConnection(path)
	case DialectPostgres:
		logger.Info("Connecting to PostgreSQL database",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName),
		)
		return NewPostgresConnectionWithContext(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", cfg.Driver)
	}
}

// DetectDialect maps a driver name to a Dialect. Unknown names yield "".
func DetectDialect(driver string) Dialect {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite
	case "postgres", "postgresql", "pgx":
		return DialectPostgres
	default:
		return ""
	}
}
