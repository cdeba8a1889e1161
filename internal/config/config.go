package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const envPrefix = "SWIFTBOOK"

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	TokenTTL       time.Duration
	LogLevel       logrus.Level
	RunMigrations  bool
}

// Env holds the raw settings read from SWIFTBOOK_* environment variables.
// Command-line flags default to these values.
type Env struct {
	Addr           string        `envconfig:"ADDR" default:"localhost:8000"`
	DSN            string        `envconfig:"DSN" default:"host=localhost user=postgres password=postgres dbname=swiftbook sslmode=disable"`
	SigningKey     string        `envconfig:"SIGNING_KEY"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"24h"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	RunMigrations  bool          `envconfig:"RUN_MIGRATIONS" default:"true"`
}

func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Env{}, fmt.Errorf("process env: %w", err)
	}
	return env, nil
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return nil, err
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("empty signing secret")
	}
	return key, nil
}

func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		TokenTTL:       24 * time.Hour,
		LogLevel:       logrus.InfoLevel,
		RunMigrations:  true,
	}, nil
}

func (c *Config) WithTokenTTL(ttl time.Duration) (*Config, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	c.TokenTTL = ttl
	return c, nil
}

func (c *Config) WithLogLevel(level string) (*Config, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	c.LogLevel = lvl
	return c, nil
}
