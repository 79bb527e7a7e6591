package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zonewars/liveclient/go/internal/transport"
)

type Config struct {
	Server struct {
		BaseURL string `yaml:"base_url"`
		Push    string `yaml:"push"` // "sse" or "websocket"
	} `yaml:"server"`
	Listen      string `yaml:"listen"`
	LogLevel    string `yaml:"log_level"`
	SessionPath string `yaml:"session_path"`
	Transport   struct {
		PollIntervalMs int `yaml:"poll_interval_ms"`
	} `yaml:"transport"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.BaseURL = "http://localhost:8000"
	cfg.Server.Push = "sse"
	cfg.Listen = ":8090"
	cfg.LogLevel = "info"
	cfg.SessionPath = "data/session.db"
	return cfg
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
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// loadConfig reads the yaml config, falling back to defaults when the file
// is absent, then applies environment overrides.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Server.BaseURL = getEnv("SERVER_BASE_URL", cfg.Server.BaseURL)
	cfg.Server.Push = getEnv("PUSH_TRANSPORT", cfg.Server.Push)
	cfg.Listen = getEnv("LISTEN_ADDR", cfg.Listen)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.SessionPath = getEnv("SESSION_PATH", cfg.SessionPath)
	cfg.Transport.PollIntervalMs = getEnvAsInt("POLL_INTERVAL_MS", cfg.Transport.PollIntervalMs)
	return cfg, nil
}

func (c *Config) transportConfig() transport.Config {
	tc := transport.DefaultConfig()
	if c.Transport.PollIntervalMs > 0 {
		tc.PollInterval = time.Duration(c.Transport.PollIntervalMs) * time.Millisecond
	}
	return tc
}
