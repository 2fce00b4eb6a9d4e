package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sidelinehq/sideline/go/internal/engine"
	"github.com/sidelinehq/sideline/go/internal/gateway"
	"github.com/sidelinehq/sideline/go/internal/storage/natsfeed"
	"github.com/sidelinehq/sideline/go/internal/syncengine"
)

type Config struct {
	Session struct {
		DeviceID       string `yaml:"device_id"`
		HistoryLimit   int    `yaml:"history_limit"`
		TickIntervalMs int    `yaml:"tick_interval_ms"`
	} `yaml:"session"`

	Sync struct {
		DebounceMs     int    `yaml:"debounce_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
		MaxRetries     int    `yaml:"max_retries"`
		RetryBaseMs    int    `yaml:"retry_base_ms"`
		RetryMaxMs     int    `yaml:"retry_max_ms"`
		QueueDir       string `yaml:"queue_dir"`
	} `yaml:"sync"`

	WebSocket struct {
		WriteTimeoutMs int   `yaml:"write_timeout_ms"`
		ReadTimeoutMs  int   `yaml:"read_timeout_ms"`
		PingIntervalMs int   `yaml:"ping_interval_ms"`
		MaxMessageSize int64 `yaml:"max_message_size"`
	} `yaml:"websocket"`

	NATS struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file means defaults throughout.
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func (c *Config) syncConfig() syncengine.Config {
	cfg := syncengine.DefaultConfig()
	if c.Sync.DebounceMs > 0 {
		cfg.Debounce = time.Duration(c.Sync.DebounceMs) * time.Millisecond
	}
	if c.Sync.WriteTimeoutMs > 0 {
		cfg.WriteTimeout = time.Duration(c.Sync.WriteTimeoutMs) * time.Millisecond
	}
	if c.Sync.MaxRetries > 0 {
		cfg.MaxRetries = c.Sync.MaxRetries
	}
	if c.Sync.RetryBaseMs > 0 {
		cfg.RetryBase = time.Duration(c.Sync.RetryBaseMs) * time.Millisecond
	}
	if c.Sync.RetryMaxMs > 0 {
		cfg.RetryMax = time.Duration(c.Sync.RetryMaxMs) * time.Millisecond
	}
	cfg.QueueDir = c.Sync.QueueDir
	return cfg
}

func (c *Config) managerConfig() engine.ManagerConfig {
	cfg := engine.ManagerConfig{
		DeviceID:     c.Session.DeviceID,
		HistoryLimit: c.Session.HistoryLimit,
		Sync:         c.syncConfig(),
	}
	if c.Session.TickIntervalMs > 0 {
		cfg.TickInterval = time.Duration(c.Session.TickIntervalMs) * time.Millisecond
	}
	return cfg
}

func (c *Config) websocketConfig() gateway.ConnectionConfig {
	cfg := gateway.DefaultConnectionConfig()
	if c.WebSocket.WriteTimeoutMs > 0 {
		cfg.WriteTimeout = time.Duration(c.WebSocket.WriteTimeoutMs) * time.Millisecond
	}
	if c.WebSocket.ReadTimeoutMs > 0 {
		cfg.ReadTimeout = time.Duration(c.WebSocket.ReadTimeoutMs) * time.Millisecond
	}
	if c.WebSocket.PingIntervalMs > 0 {
		cfg.PingInterval = time.Duration(c.WebSocket.PingIntervalMs) * time.Millisecond
	}
	if c.WebSocket.MaxMessageSize > 0 {
		cfg.MaxMessageSize = c.WebSocket.MaxMessageSize
	}
	return cfg
}

func (c *Config) natsConfig() natsfeed.Config {
	cfg := natsfeed.DefaultConfig()
	if c.NATS.URL != "" {
		cfg.URL = c.NATS.URL
	}
	if c.NATS.SubjectPrefix != "" {
		cfg.SubjectPrefix = c.NATS.SubjectPrefix
	}
	return cfg
}
