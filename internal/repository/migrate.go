package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrationsFS embed.FS

var gooseDialects = map[string]goose.Dialect{
	DriverPostgres: goose.DialectPostgres,
	DriverSQLite:   goose.DialectSQLite3,
	DriverMySQL:    goose.DialectMySQL,
}

// Migrate applies every pending migration of the connected driver.
func (r *Repository) Migrate(ctx context.Context) error {
	dialect, ok := gooseDialects[r.driver]
	if !ok {
		return fmt.Errorf("no migrations for driver %q", r.driver)
	}
	dir, err := fs.Sub(migrationsFS, "migrations/"+r.driver)
	if err != nil {
		return fmt.Errorf("migrations for %s: %w", r.driver, err)
	}

	provider, err := goose.NewProvider(dialect, r.db.DB, dir)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	for _, res := range results {
		r.log.Info().
			Int64("version", res.Source.Version).
			Str("file", res.Source.Path).
			Dur("took", res.Duration).
			Msg("migration applied")
	}
	return nil
}
