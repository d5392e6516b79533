package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/fuomag9/checkpulse/internal/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// RunMigrations applies the embedded schema migrations that the record
// database has not seen yet. It opens and closes its own connection.
func RunMigrations(cfg config.StoreConfig) error {
	d, err := lookup(cfg.Driver)
	if err != nil {
		return err
	}

	gormDB, err := Connect(cfg)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get %s connection pool: %w", cfg.Driver, err)
	}
	defer sqlDB.Close()

	target, err := d.migrate(sqlDB)
	if err != nil {
		return fmt.Errorf("failed to prepare %s schema migrations: %w", cfg.Driver, err)
	}
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, cfg.Driver, target)
	if err != nil {
		return fmt.Errorf("failed to set up schema migrations: %w", err)
	}

	switch err := m.Up(); {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
		return nil
	default:
		version, dirty, _ := m.Version()
		return fmt.Errorf("schema migration failed at version %d (dirty=%t): %w", version, dirty, err)
	}
}
