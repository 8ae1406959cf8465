package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the system-wide configuration. Precedence: JSON file > env >
// defaults.
type Config struct {
	Database  *DatabaseConfig  `json:"database"`
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Auth      *AuthConfig      `json:"auth"`
	Admission *AdmissionConfig `json:"admission"`
}

type DatabaseConfig struct {
	Path    string        `json:"path" env:"BLINDRELAY_DB_PATH"`
	Timeout time.Duration `json:"timeout" env:"BLINDRELAY_DB_TIMEOUT"`
}

type HTTPConfig struct {
	Host         string        `json:"host" env:"BLINDRELAY_HTTP_HOST"`
	Port         int           `json:"port" env:"BLINDRELAY_HTTP_PORT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"BLINDRELAY_HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"BLINDRELAY_HTTP_WRITE_TIMEOUT"`
}

type WebSocketConfig struct {
	// PublicURL is the externally reachable WebSocket root handed to the AI
	// service as its callback address.
	PublicURL    string        `json:"public_url" env:"BLINDRELAY_WS_PUBLIC_URL"`
	PingInterval time.Duration `json:"ping_interval" env:"BLINDRELAY_WS_PING_INTERVAL"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"BLINDRELAY_WS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"BLINDRELAY_WS_WRITE_TIMEOUT"`
}

type AuthConfig struct {
	// TokenSecret signs and verifies bearer tokens. Required unless DevMode.
	TokenSecret string `json:"token_secret" env:"BLINDRELAY_TOKEN_SECRET"`
	// DevMode substitutes a fixed development identity for verification.
	// Never enable in production.
	DevMode bool `json:"dev_mode" env:"BLINDRELAY_DEV_MODE"`
}

type AdmissionConfig struct {
	// AIServiceURL is the join endpoint of the AI respondent service.
	AIServiceURL string `json:"ai_service_url" env:"BLINDRELAY_AI_SERVICE_URL"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: &DatabaseConfig{
			Path:    "./blindrelay.db",
			Timeout: 30 * time.Second,
		},
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PublicURL:    "ws://localhost:8000/ws",
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Auth: &AuthConfig{
			TokenSecret: "",
			DevMode:     false,
		},
		Admission: &AdmissionConfig{
			AIServiceURL: "http://localhost:3001/api/ai/join",
		},
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Database == nil || c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PublicURL == "" {
		return fmt.Errorf("WebSocket public URL cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.Auth == nil {
		return fmt.Errorf("auth configuration is required")
	}
	if !c.Auth.DevMode && c.Auth.TokenSecret == "" {
		return fmt.Errorf("token secret is required outside dev mode")
	}
	if c.Admission == nil || c.Admission.AIServiceURL == "" {
		return fmt.Errorf("AI service URL cannot be empty")
	}
	return nil
}

// Load resolves configuration with precedence file > env > defaults.
// configPath may be empty; a missing file falls through to env and defaults.
func Load(configPath string) *Config {
	cfg := DefaultConfig()

	if err := env.Parse(cfg); err != nil {
		log.Printf("Failed to parse environment config, using defaults: %v", err)
	}

	if configPath != "" {
		if err := cfg.mergeFile(configPath); err != nil {
			log.Printf("Failed to load config file %s: %v", configPath, err)
		}
	}

	return cfg
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}
	return nil
}
