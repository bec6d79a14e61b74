package repository

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"               // registers the "postgres" driver
	_ "modernc.org/sqlite"              // registers the "sqlite" driver

	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/rs/zerolog/log"
)

// Open opens and pings the configured database. SQLite is limited to a single
// connection so transactions serialize instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, cfg dbconfig.Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == dbconfig.DriverMemory {
		return nil, fmt.Errorf("the memory driver has no database to open")
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if cfg.Driver == dbconfig.DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	event := log.Info().Str("driver", cfg.Driver)
	if cfg.Driver == dbconfig.DriverSQLite {
		event = event.Str("path", cfg.SQLitePath)
	} else {
		event = event.Str("host", cfg.Host).Int("port", cfg.Port).Str("database", cfg.Database)
	}
	event.Msg("connected to database")

	return db, nil
}
