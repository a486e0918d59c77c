package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "LOG_LEVEL", "REDIS_URL", "CONTENT_PATH", "SAVES_PATH", "SESSION_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("expected 24h TTL, got %s", cfg.SessionTTL)
	}
	if cfg.ContentPath != "data/scenes/tux_adventure.yaml" {
		t.Errorf("unexpected content path %s", cfg.ContentPath)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("expected info level, got %s", cfg.Level())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.RedisURL != "redis://cache:6379/1" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 90*time.Minute {
		t.Errorf("expected 90m, got %s", cfg.SessionTTL)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("expected debug, got %s", cfg.Level())
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SESSION_TTL", "forever")
	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable SESSION_TTL")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLoadConsole(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://novel:8080")
	t.Setenv("BATTLE_TICK", "250ms")

	cfg, err := LoadConsole()
	if err != nil {
		t.Fatalf("LoadConsole: %v", err)
	}
	if cfg.APIBaseURL != "http://novel:8080" || cfg.BattleTick != 250*time.Millisecond {
		t.Errorf("unexpected console config: %+v", cfg)
	}
}
