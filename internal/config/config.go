// Package config provides environment configuration for the chatroom server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	WebURL             string

	// Upstream AI provider settings
	Provider           string
	DifyAPIKey         string
	DifyAPIURL         string
	DifyConnectTimeout time.Duration
	OpenAIAPIKey       string
	AnthropicAPIKey    string

	// Broadcast settings
	HistoryCapacity   int
	ListenerBuffer    int
	ReplayLimit       int
	KeepaliveInterval time.Duration

	// NATS journal settings (journal disabled when URL is empty)
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "9530"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 0),
		WebURL:             getEnv("WEB_URL", "http://localhost:9530"),

		// Upstream provider
		Provider:           getEnv("AI_PROVIDER", "dify"),
		DifyAPIKey:         getEnv("DIFY_API_KEY", ""),
		DifyAPIURL:         getEnv("DIFY_API_URL", "https://api.dify.ai/v1"),
		DifyConnectTimeout: getDurationEnv("DIFY_CONNECT_TIMEOUT", 10*time.Second),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),

		// Broadcast
		HistoryCapacity:   getIntEnv("HISTORY_CAPACITY", 50),
		ListenerBuffer:    getIntEnv("LISTENER_BUFFER", 200),
		ReplayLimit:       getIntEnv("REPLAY_LIMIT", 10),
		KeepaliveInterval: getDurationEnv("KEEPALIVE_INTERVAL", 30*time.Second),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
