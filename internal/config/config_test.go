package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.ServerPort != "9530" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Provider != "dify" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.ServerWriteTimeout != 0 {
		t.Errorf("ServerWriteTimeout = %v, want 0 for streaming responses", cfg.ServerWriteTimeout)
	}
	if cfg.HistoryCapacity != 50 || cfg.ReplayLimit != 10 {
		t.Errorf("broadcast defaults: capacity=%d replay=%d", cfg.HistoryCapacity, cfg.ReplayLimit)
	}
	if cfg.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v", cfg.KeepaliveInterval)
	}
	if cfg.NATSURL != "" {
		t.Errorf("NATSURL = %q, journal must default to disabled", cfg.NATSURL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("AI_PROVIDER", "openai")
	t.Setenv("HISTORY_CAPACITY", "100")
	t.Setenv("KEEPALIVE_INTERVAL", "5s")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.HistoryCapacity != 100 {
		t.Errorf("HistoryCapacity = %d", cfg.HistoryCapacity)
	}
	if cfg.KeepaliveInterval != 5*time.Second {
		t.Errorf("KeepaliveInterval = %v", cfg.KeepaliveInterval)
	}
	if !cfg.TracingEnabled {
		t.Error("TracingEnabled = false")
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("HISTORY_CAPACITY", "lots")
	t.Setenv("KEEPALIVE_INTERVAL", "soon")
	t.Setenv("TRACING_ENABLED", "maybe")

	cfg := Load()

	if cfg.HistoryCapacity != 50 {
		t.Errorf("HistoryCapacity = %d", cfg.HistoryCapacity)
	}
	if cfg.KeepaliveInterval != 30*time.Second {
		t.Errorf("KeepaliveInterval = %v", cfg.KeepaliveInterval)
	}
	if cfg.TracingEnabled {
		t.Error("TracingEnabled = true")
	}
}
