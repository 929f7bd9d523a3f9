package db

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// MigrationsTable records the applied schema version and dirty flag.
const MigrationsTable = "schema_migrations"

// ErrDirtySchema indicates a previous migration failed part way and needs manual repair.
var ErrDirtySchema = errors.New("platform/db: dirty schema version")

// MigrationSource opens fsys as a golang-migrate source of NNNN_name.{up,down}.sql files.
func MigrationSource(fsys fs.FS) (source.Driver, error) {
	src, err := iofs.New(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("platform/db: open migrations: %w", err)
	}
	return src, nil
}

// Migrate applies pending up migrations from fsys and returns the schema version reached.
// The driver holds a Postgres advisory lock, so concurrent runs apply each file once.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS, logger *slog.Logger) (uint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src, err := MigrationSource(fsys)
	if err != nil {
		return 0, err
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()
	driver, err := migratepgx.WithInstance(sqlDB, &migratepgx.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return 0, fmt.Errorf("platform/db: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return 0, fmt.Errorf("platform/db: migration instance: %w", err)
	}
	defer m.Close()

	stop := context.AfterFunc(ctx, func() { m.GracefulStop <- true })
	defer stop()

	if err := m.Up(); err != nil {
		var dirty migrate.ErrDirty
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			logger.Info("no new migrations")
		case errors.As(err, &dirty):
			return uint(dirty.Version), fmt.Errorf("%w %d", ErrDirtySchema, dirty.Version)
		default:
			return 0, fmt.Errorf("platform/db: migrate up: %w", err)
		}
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("platform/db: read schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("%w %d", ErrDirtySchema, version)
	}
	logger.Info("schema migrated", slog.Uint64("version", uint64(version)))
	return version, nil
}
