// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the line chat service.
package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	defaultTCPAddr         = "0.0.0.0:3000"
	defaultAllowedOrigin   = "http://localhost:8080"
	defaultLogLevel        = "INFO"
	defaultShutdownTimeout = 10
	defaultMaxMessageSize  = 4096
)

// Config holds the server configuration settings.
type Config struct {
	// TCPAddr is where the line chat listener binds.
	TCPAddr string `env:"CHAT_TCP_ADDR,default=0.0.0.0:3000" validate:"required,hostname_port"`
	// HTTPAddr enables the health endpoint and WebSocket gateway when set.
	HTTPAddr       string `env:"CHAT_HTTP_ADDR" validate:"omitempty,hostname_port"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	// ShutdownTimeoutSeconds bounds how long shutdown waits for connections.
	ShutdownTimeoutSeconds int `env:"SHUTDOWN_TIMEOUT_SECONDS,default=10" validate:"min=1"`
	// MaxMessageSize caps one inbound WebSocket frame in bytes.
	MaxMessageSize int64 `env:"MAX_MESSAGE_SIZE,default=4096" validate:"min=1"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	return &Config{
		TCPAddr:                defaultTCPAddr,
		AllowedOrigins:         defaultAllowedOrigin,
		LogLevel:               defaultLogLevel,
		ShutdownTimeoutSeconds: defaultShutdownTimeout,
		MaxMessageSize:         defaultMaxMessageSize,
	}
}

// LoadConfig reads an optional dotenv file, then the process environment,
// and validates the result. A missing dotenv file is not an error; an empty
// path skips it.
func LoadConfig(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	cfg := NewConfig()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ShutdownTimeout returns ShutdownTimeoutSeconds as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// Origins splits AllowedOrigins on commas.
func (c *Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
