package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults target Gemini through its OpenAI-compatible endpoint, matching
// the service the client was written for. Any OpenAI-compatible server
// works by overriding the base URL and model.
const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	defaultModel   = "gemini-2.5-flash"
	defaultDBPath  = "jammin.db"
)

// Config aggregates everything the process needs, loaded once by main and
// passed down. Nothing in this package reads the environment at import time.
type Config struct {
	Database DatabaseConfig
	AI       AIConfig
	Server   ServerConfig
}

type DatabaseConfig struct {
	// Path of the SQLite file. An unusable path degrades the store to
	// memory-only mode rather than failing startup.
	Path string
}

type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Enabled reports whether a completion credential was provided.
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

type ServerConfig struct {
	Addr string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			Path: getEnvOrDefault("JAMMIN_DB", defaultDBPath),
		},
		AI: AIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			BaseURL: getEnvOrDefault("JAMMIN_API_BASE", defaultBaseURL),
			Model:   getEnvOrDefault("JAMMIN_MODEL", defaultModel),
			Timeout: 60 * time.Second,
		},
		Server: server,
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8100"
	}

	if strings.Contains(port, ":") {
		// Accept ":8100" or "127.0.0.1:8100" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}
