// ABOUTME: Embedded goose migrations for the demo schema on SQLite and Postgres
// ABOUTME: Migrate brings a database to the latest version; MigrationStatus reports what is applied

package demo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/2389/modeladmin/internal/adapter/sqladapter"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func provider(db *sql.DB, dialect sqladapter.Dialect) (*goose.Provider, error) {
	gooseDialect := goose.DialectSQLite3
	if dialect == sqladapter.Postgres {
		gooseDialect = goose.DialectPostgres
	}
	dir, err := fs.Sub(migrationsFS, "migrations/"+dialect.String())
	if err != nil {
		return nil, fmt.Errorf("opening %s migrations: %w", dialect, err)
	}
	p, err := goose.NewProvider(gooseDialect, db, dir)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	return p, nil
}

// Migrate applies pending migrations and returns the resulting schema version.
// The caller keeps ownership of db.
func Migrate(ctx context.Context, db *sql.DB, dialect sqladapter.Dialect, logger *slog.Logger) (int64, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := provider(db, dialect)
	if err != nil {
		return 0, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("applying migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("migration applied", "component", "migrate", "path", r.Source.Path, "duration", r.Duration)
	}
	version, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// MigrationStatus lists every known migration and whether it is applied.
func MigrationStatus(ctx context.Context, db *sql.DB, dialect sqladapter.Dialect) ([]*goose.MigrationStatus, error) {
	p, err := provider(db, dialect)
	if err != nil {
		return nil, err
	}
	return p.Status(ctx)
}
