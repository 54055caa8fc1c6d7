package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded PostgreSQL migrations. goose needs a
// database/sql handle, so one is opened from the pool's connection config.
func (db *DB) Migrate(ctx context.Context) error {
	sqlDB := stdlib.OpenDB(*db.Pool.Config().ConnConfig)
	defer sqlDB.Close()

	return runMigrations(ctx, sqlDB, goose.DialectPostgres, "migrations/postgres", db.logger)
}

// Migrate applies the embedded SQLite migrations. goose may hold a dedicated
// connection while it works, so the single-connection cap is lifted meanwhile.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	s.DB.SetMaxOpenConns(2)
	defer s.DB.SetMaxOpenConns(1)

	return runMigrations(ctx, s.DB, goose.DialectSQLite3, "migrations/sqlite", s.logger)
}

func runMigrations(ctx context.Context, sqlDB *sql.DB, dialect goose.Dialect, dir string, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, sqlDB, sub)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if logger != nil {
		for _, r := range results {
			logger.Info("applied migration", slog.String("source", r.Source.Path))
		}
	}
	return nil
}
