package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations through a database/sql
// view of the pool.
type Migrator struct {
	m      *migrate.Migrate
	logger zerolog.Logger
}

func NewMigrator(pool *pgxpool.Pool, logger zerolog.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}

	return &Migrator{m: m, logger: logger}, nil
}

// Up applies every pending migration. No pending migration is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	mg.logVersion()
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	mg.logVersion()
	return nil
}

// Version returns the applied version. ok is false on an empty database.
func (mg *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	version, dirty, err = mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migrate version: %w", err)
	}
	return version, dirty, true, nil
}

// Close releases the migrate source and its database/sql handle.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func (mg *Migrator) logVersion() {
	version, dirty, ok, err := mg.Version()
	switch {
	case err != nil:
		mg.logger.Warn().Err(err).Msg("could not read migration version")
	case !ok:
		mg.logger.Info().Msg("database has no migrations applied")
	case dirty:
		mg.logger.Warn().Uint("version", version).Msg("database migration is dirty")
	default:
		mg.logger.Info().Uint("version", version).Msg("database migrations applied")
	}
}
