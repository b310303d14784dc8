package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// WebSocket connection limits
	MaxWebSocketConnections int64   `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionRatePerSecond float64 `env:"CONNECTION_RATE_PER_SECOND" default:"10"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"10"`
	MaxClientsPerSession    int     `env:"MAX_CLIENTS_PER_SESSION" default:"5000"`

	// Reaction rate limiting (per connection, fixed window)
	ReactionsPerWindow int           `env:"REACTIONS_PER_WINDOW" default:"30"`
	ReactionWindow     time.Duration `env:"REACTION_WINDOW" default:"10s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxClientsPerSession <= 0 {
		return fmt.Errorf("MAX_CLIENTS_PER_SESSION must be positive, got %d", cfg.MaxClientsPerSession)
	}
	if cfg.ReactionsPerWindow <= 0 {
		return fmt.Errorf("REACTIONS_PER_WINDOW must be positive, got %d", cfg.ReactionsPerWindow)
	}

	return nil
}
