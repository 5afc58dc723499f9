package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"wallet-ledger/config"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	// File system migration source for migrate.NewWithDatabaseInstance.
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// RunMigrations applies every pending up migration found in cfg.MigrationsPath.
func RunMigrations(cfg config.DatabaseConfig, log zerolog.Logger) error {
	absPath, err := filepath.Abs(filepath.Clean(cfg.MigrationsPath))
	if err != nil {
		return fmt.Errorf("resolving migrations path: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		DatabaseName: cfg.DBName,
		SchemaName:   "public",
	})
	if err != nil {
		return fmt.Errorf("creating postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(absPath), cfg.DBName, driver)
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("No new migrations found")
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", absPath).Msg("No migration files found, skipping")
			return nil
		}
		var dirtyErr migrate.ErrDirty
		if errors.As(err, &dirtyErr) {
			return fmt.Errorf("migration failed: dirty database version %d", dirtyErr.Version)
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, _ := m.Version()
	log.Info().Uint("version", version).Msg("Database migrated")
	return nil
}
