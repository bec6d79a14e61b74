package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Supported values for DB_DRIVER.
const (
	DriverPostgres = "postgres" // lib/pq
	DriverPgx      = "pgx"      // pgx stdlib
	DriverSQLite   = "sqlite"   // modernc.org/sqlite
	DriverMemory   = "memory"   // in-process store, nothing persisted
)

// Config holds database connection settings.
type Config struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	SSLMode    string `yaml:"sslmode"`
	SQLitePath string `yaml:"sqlite_path"`
}

// NewConfigFromEnv reads DB_* environment variables (with defaults).
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	return Config{
		Driver:     getEnv("DB_DRIVER", DriverPostgres),
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       port,
		User:       getEnv("DB_USER", "postgres"),
		Password:   getEnv("DB_PASSWORD", "postgres"),
		Database:   getEnv("DB_NAME", "pooldraft"),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "pooldraft.db"),
	}
}

// IsPostgres reports whether the driver talks to a Postgres server.
func (c Config) IsPostgres() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverPgx
}

// PostgresURL returns the Postgres connection URL regardless of driver. The
// outbox listener needs it even when pgx serves queries.
func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// DSN returns the data source name for the configured driver.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverSQLite:
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", c.SQLitePath)
	case DriverMemory:
		return ""
	default:
		return c.PostgresURL()
	}
}

// Validate checks that the driver is one we know how to open.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres, DriverPgx, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Driver)
	}
	if c.Driver == DriverSQLite && c.SQLitePath == "" {
		return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
