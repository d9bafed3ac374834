// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server and historian read at startup.
// Values come from the environment; godotenv/autoload in main fills it from .env first.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// TokenExpire is a Go duration or "never".
	TokenExpire string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`

	// QuestionFile, when set, loads the question bank from a JSON catalog instead of Postgres.
	QuestionFile string `env:"QUESTION_FILE"`

	// SeedQuestionFile, when set, upserts that JSON catalog into the panels and questions tables at startup.
	SeedQuestionFile string `env:"SEED_QUESTION_FILE"`

	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// AllowedOrigins restricts CORS; empty allows any http(s) origin.
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	Postgres  PostgresConfig
	Redis     RedisConfig
	Historian HistorianConfig
}

type PostgresConfig struct {
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"crowdpick"`
}

// ConnString builds a postgres:// URL for pgxpool.ParseConfig.
func (p PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   p.Host + ":" + p.Port,
		Path:   "/" + p.Database,
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	return u.String()
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	QueueName string `env:"HISTORIAN_QUEUE_NAME" envDefault:"crowdpick_actions"`
	// Disabled skips the action log entirely, for local play without Redis.
	Disabled bool `env:"REDIS_DISABLED" envDefault:"false"`
}

type HistorianConfig struct {
	BatchSize  int           `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushDelay time.Duration `env:"HISTORIAN_FLUSH_INTERVAL" envDefault:"500ms"`
	Inactivity time.Duration `env:"SESSION_INACTIVITY_TIMEOUT" envDefault:"10m"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Historian.BatchSize <= 0 {
		return Config{}, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.Historian.BatchSize)
	}
	return cfg, nil
}

// Logger builds a logrus logger at the configured level, falling back to info.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
