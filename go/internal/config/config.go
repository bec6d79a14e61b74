// Package config loads process configuration: an optional YAML file named by
// CONFIG_FILE, overlaid by environment variables (.env is loaded first).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/pooldraft/go/internal/dbconfig"
	"github.com/mcdev12/pooldraft/go/internal/draft/bus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Event bus kinds.
const (
	BusNATS   = "nats"
	BusMemory = "memory"
)

type Config struct {
	LogLevel     string             `yaml:"log_level"`
	Server       ServerConfig       `yaml:"server"`
	Database     dbconfig.Config    `yaml:"database"`
	Bus          BusConfig          `yaml:"bus"`
	Outbox       OutboxConfig       `yaml:"outbox"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Auth         AuthConfig         `yaml:"auth"`
	Client       ClientConfig       `yaml:"client"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// Embedded runs the relay, orchestrator and gateway inside the API
	// process. Required with the memory driver.
	Embedded bool `yaml:"embedded"`
}

type BusConfig struct {
	Kind            string        `yaml:"kind"`
	URL             string        `yaml:"url"`
	Stream          string        `yaml:"stream"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`
}

type OutboxConfig struct {
	NotifyChannel    string        `yaml:"notify_channel"`
	FallbackInterval time.Duration `yaml:"fallback_interval"`
	BatchSize        int           `yaml:"batch_size"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	HealthPort       string        `yaml:"health_port"`
}

type OrchestratorConfig struct {
	Workers      int    `yaml:"workers"`
	ConsumerName string `yaml:"consumer_name"`
}

type GatewayConfig struct {
	Port         string        `yaml:"port"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Disabled  bool   `yaml:"disabled"`
}

type ClientConfig struct {
	ServerURL  string `yaml:"server_url"`
	GatewayURL string `yaml:"gateway_url"`
	Token      string `yaml:"token"`
}

// JetStream returns the stream settings for a NATS bus.
func (b BusConfig) JetStream() bus.JetStreamConfig {
	cfg := bus.DefaultJetStreamConfig()
	cfg.URL = b.URL
	cfg.StreamName = b.Stream
	cfg.SubjectPrefix = b.SubjectPrefix
	cfg.DuplicateWindow = b.DuplicateWindow
	return cfg
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"*"},
		},
		Database: dbconfig.Config{
			Driver:     dbconfig.DriverPostgres,
			Host:       "localhost",
			Port:       5432,
			User:       "postgres",
			Password:   "postgres",
			Database:   "pooldraft",
			SSLMode:    "disable",
			SQLitePath: "pooldraft.db",
		},
		Bus: BusConfig{
			Kind:            BusNATS,
			URL:             "nats://127.0.0.1:4222",
			Stream:          "DRAFT_EVENTS",
			SubjectPrefix:   "draft.events",
			DuplicateWindow: 2 * time.Hour,
		},
		Outbox: OutboxConfig{
			NotifyChannel:    "draft_outbox_events",
			FallbackInterval: 30 * time.Second,
			BatchSize:        100,
			MaxRetries:       5,
			RetryDelay:       200 * time.Millisecond,
			HealthPort:       "8082",
		},
		Orchestrator: OrchestratorConfig{
			Workers:      10,
			ConsumerName: "draft-orchestrator",
		},
		Gateway: GatewayConfig{
			Port:         "8081",
			WriteTimeout: 10 * time.Second,
			ReadTimeout:  60 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Client: ClientConfig{
			ServerURL:  "http://localhost:8080",
			GatewayURL: "ws://localhost:8081",
		},
	}
}

// Load builds the configuration: defaults, then CONFIG_FILE, then the
// environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.CORSOrigins = getEnvAsList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Server.Embedded = getEnvAsBool("EMBEDDED", c.Server.Embedded)

	db := &c.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.Host = getEnv("DB_HOST", db.Host)
	db.Port = getEnvAsInt("DB_PORT", db.Port)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Database = getEnv("DB_NAME", db.Database)
	db.SSLMode = getEnv("DB_SSLMODE", db.SSLMode)
	db.SQLitePath = getEnv("SQLITE_PATH", db.SQLitePath)

	c.Bus.Kind = getEnv("EVENT_BUS", c.Bus.Kind)
	c.Bus.URL = getEnv("NATS_URL", c.Bus.URL)
	c.Bus.Stream = getEnv("NATS_STREAM", c.Bus.Stream)
	c.Bus.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Bus.SubjectPrefix)
	c.Bus.DuplicateWindow = getEnvAsDuration("NATS_DUPLICATE_WINDOW", c.Bus.DuplicateWindow)

	c.Outbox.NotifyChannel = getEnv("OUTBOX_NOTIFY_CHANNEL", c.Outbox.NotifyChannel)
	c.Outbox.FallbackInterval = getEnvAsDuration("FALLBACK_INTERVAL", c.Outbox.FallbackInterval)
	c.Outbox.BatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", c.Outbox.BatchSize)
	c.Outbox.MaxRetries = getEnvAsInt("OUTBOX_MAX_RETRIES", c.Outbox.MaxRetries)
	c.Outbox.RetryDelay = getEnvAsDuration("OUTBOX_RETRY_DELAY", c.Outbox.RetryDelay)
	c.Outbox.HealthPort = getEnv("OUTBOX_HEALTH_PORT", c.Outbox.HealthPort)

	c.Orchestrator.Workers = getEnvAsInt("ORCHESTRATOR_WORKERS", c.Orchestrator.Workers)
	c.Orchestrator.ConsumerName = getEnv("ORCHESTRATOR_CONSUMER", c.Orchestrator.ConsumerName)

	c.Gateway.Port = getEnv("GATEWAY_PORT", c.Gateway.Port)
	c.Gateway.WriteTimeout = getEnvAsDuration("WS_WRITE_TIMEOUT", c.Gateway.WriteTimeout)
	c.Gateway.ReadTimeout = getEnvAsDuration("WS_READ_TIMEOUT", c.Gateway.ReadTimeout)
	c.Gateway.PingInterval = getEnvAsDuration("WS_PING_INTERVAL", c.Gateway.PingInterval)

	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.Disabled = getEnvAsBool("AUTH_DISABLED", c.Auth.Disabled)

	c.Client.ServerURL = getEnv("DRAFT_SERVER_URL", c.Client.ServerURL)
	c.Client.GatewayURL = getEnv("DRAFT_GATEWAY_URL", c.Client.GatewayURL)
	c.Client.Token = getEnv("DRAFT_TOKEN", c.Client.Token)
}

// Validate rejects combinations that cannot run.
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	switch c.Bus.Kind {
	case BusNATS, BusMemory:
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.Bus.Kind)
	}
	if c.Database.Driver == dbconfig.DriverMemory && !c.Server.Embedded {
		return fmt.Errorf("the memory driver requires EMBEDDED=true")
	}
	if c.Bus.Kind == BusMemory && !c.Server.Embedded {
		return fmt.Errorf("the memory event bus requires EMBEDDED=true")
	}
	if !c.Auth.Disabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if c.Outbox.BatchSize <= 0 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	if c.Orchestrator.Workers <= 0 {
		return fmt.Errorf("orchestrator workers must be positive")
	}
	return nil
}

// SetupLogging configures the global zerolog logger for a main package.
func SetupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-integer environment value")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring non-boolean environment value")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration")
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
