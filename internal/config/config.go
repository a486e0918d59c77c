package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port        string        `env:"PORT"         envDefault:"8080"`
	Environment string        `env:"ENVIRONMENT"  envDefault:"development"`
	LogLevel    string        `env:"LOG_LEVEL"    envDefault:"info"`
	RedisURL    string        `env:"REDIS_URL"    envDefault:"localhost:6379"`
	ContentPath string        `env:"CONTENT_PATH" envDefault:"data/scenes/tux_adventure.yaml"`
	SavesPath   string        `env:"SAVES_PATH"   envDefault:"data/saves/saves.db"`
	SessionTTL  time.Duration `env:"SESSION_TTL"  envDefault:"24h"`
}

// Load reads the API configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	return &cfg, nil
}

// Level is the parsed LOG_LEVEL. Unknown values fall back to info.
func (c *Config) Level() slog.Level {
	return ParseLogLevel(c.LogLevel)
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConsoleConfig configures the terminal player.
type ConsoleConfig struct {
	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	BattleTick  time.Duration `env:"BATTLE_TICK"  envDefault:"1500ms"`
	Environment string        `env:"ENVIRONMENT"  envDefault:"development"`
	LogLevel    string        `env:"LOG_LEVEL"    envDefault:"error"`
}

func LoadConsole() (*ConsoleConfig, error) {
	var cfg ConsoleConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BattleTick <= 0 {
		cfg.BattleTick = 1500 * time.Millisecond
	}
	return &cfg, nil
}
