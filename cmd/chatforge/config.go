package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all chatforge server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	BaseURL    string `json:"base_url"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level"`
	// RedisAddr enables the redis-backed suspension registry when set.
	// Empty keeps waits in process memory, which is fine for a single
	// instance.
	RedisAddr string `json:"redis_addr"`
	// FlowCacheTTL is a duration string, e.g. "30s".
	FlowCacheTTL string `json:"flow_cache_ttl"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:   ":4200",
		DBPath:       filepath.Join(chatforgeDir(), "chatforge.db"),
		LogLevel:     "info",
		FlowCacheTTL: "30s",
	}
}

func chatforgeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatforge"
	}
	return filepath.Join(home, ".chatforge")
}

func settingsPath() string {
	return filepath.Join(chatforgeDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("CHATFORGE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("CHATFORGE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("CHATFORGE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CHATFORGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CHATFORGE_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("CHATFORGE_FLOW_CACHE_TTL"); v != "" {
		cfg.FlowCacheTTL = v
	}

	// Derive base_url from listen_addr if empty.
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	return cfg
}
