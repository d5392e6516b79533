// Package database opens the relational record store and keeps its schema
// current.
package database

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fuomag9/checkpulse/internal/config"
)

// sqliteDefaults are applied to sqlite DSNs without query parameters.
// Probes update checks concurrently, so writers wait instead of failing
// with "database is locked".
const sqliteDefaults = "_busy_timeout=5000&_journal_mode=WAL"

// dialect ties a store driver name to its gorm dialector and its
// migration driver
type dialect struct {
	open    func(dsn string) gorm.Dialector
	migrate func(db *sql.DB) (database.Driver, error)
}

var dialects = map[string]dialect{
	"postgres": {
		open: postgres.Open,
		migrate: func(db *sql.DB) (database.Driver, error) {
			return migratepg.WithInstance(db, &migratepg.Config{})
		},
	},
	"sqlite": {
		open: func(dsn string) gorm.Dialector {
			if !strings.Contains(dsn, "?") {
				dsn += "?" + sqliteDefaults
			}
			return sqlite.Open(dsn)
		},
		migrate: func(db *sql.DB) (database.Driver, error) {
			return sqlite3.WithInstance(db, &sqlite3.Config{})
		},
	},
}

func lookup(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		names := make([]string, 0, len(dialects))
		for name := range dialects {
			names = append(names, name)
		}
		sort.Strings(names)
		return dialect{}, fmt.Errorf("store driver %q has no database backend (want one of %s)",
			driver, strings.Join(names, ", "))
	}
	return d, nil
}

// Connect opens the record database named by cfg.Driver, applies the pool
// limits and verifies the connection
func Connect(cfg config.StoreConfig) (*gorm.DB, error) {
	d, err := lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d.open(cfg.DSN), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s connection pool: %w", cfg.Driver, err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%s store is unreachable: %w", cfg.Driver, err)
	}

	return db, nil
}
