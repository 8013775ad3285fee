package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Pool.MaxPoolSize != 100 {
		t.Errorf("Pool.MaxPoolSize = %d, want 100", cfg.Pool.MaxPoolSize)
	}
	if cfg.Recovery.Interval != 5*time.Minute {
		t.Errorf("Recovery.Interval = %v, want 5m", cfg.Recovery.Interval)
	}
	if cfg.Orchestrator.Backend != "docker" {
		t.Errorf("Orchestrator.Backend = %q, want docker", cfg.Orchestrator.Backend)
	}
}

func TestLoadRespectsEnvOverride(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("POOL_MAX_SIZE", "7")
	t.Setenv("LOCAL_DEVELOPMENT", "true")

	cfg := Load()

	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q, want :9999", cfg.Server.Addr)
	}
	if cfg.Pool.MaxPoolSize != 7 {
		t.Errorf("Pool.MaxPoolSize = %d, want 7", cfg.Pool.MaxPoolSize)
	}
	if !cfg.Worker.LocalDevelopment {
		t.Error("Worker.LocalDevelopment = false, want true")
	}
}

func TestLoadAgentDefaults(t *testing.T) {
	cfg := LoadAgent()

	if cfg.HeartbeatInterval != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 10s", cfg.HeartbeatInterval)
	}
	if cfg.MaxDuration != 60*time.Minute {
		t.Errorf("MaxDuration = %v, want 60m", cfg.MaxDuration)
	}
	if cfg.ChatEnabled {
		t.Error("ChatEnabled = true, want false by default")
	}
}

func TestLoadAgentRespectsEnvOverride(t *testing.T) {
	t.Setenv("BOT_ID", "42")
	t.Setenv("BOT_AGENT_TOKEN", "secret-token")
	t.Setenv("BOT_CHAT_ENABLED", "true")

	cfg := LoadAgent()

	if cfg.BotID != 42 {
		t.Errorf("BotID = %d, want 42", cfg.BotID)
	}
	if cfg.Token != "secret-token" {
		t.Errorf("Token = %q, want secret-token", cfg.Token)
	}
	if !cfg.ChatEnabled {
		t.Error("ChatEnabled = false, want true")
	}
}
