// config.go - Configuration management for the pool daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration.
type Config struct {
	// Service
	ListenAddr string `json:"listen_addr"`
	StatePath  string `json:"state_path"`
	KeyDir     string `json:"key_dir"`

	// Verifier backend: true wires the always-accept mock instead of the
	// Groth16 verifier. Never enable outside local testing.
	MockVerifier bool `json:"mock_verifier"`

	// Pool authority identity, hex encoded. Empty derives a default.
	Authority string `json:"authority"`

	// Logging
	LogLevel     string `json:"log_level"`
	LogFile      string `json:"log_file"`
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path"`

	// Rate limiting (token bucket per caller)
	RateLimitTokens  int `json:"rate_limit_tokens"`
	RateLimitRefill  int `json:"rate_limit_refill"`
	RateLimitSeconds int `json:"rate_limit_seconds"`

	// Event feed. Empty FeedAddr disables publication.
	FeedAddr  string            `json:"feed_addr"`
	FeedPeers map[string]string `json:"feed_peers"`

	// Faucet mints test funds through POST /faucet. Local testing only.
	EnableFaucet bool `json:"enable_faucet"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8680",
		StatePath:        "pool_state.json",
		KeyDir:           "keys",
		MockVerifier:     false,
		LogLevel:         "info",
		LogFile:          "poold.log",
		EnableAudit:      true,
		AuditLogPath:     "audit.log",
		RateLimitTokens:  20,
		RateLimitRefill:  5,
		RateLimitSeconds: 1,
		EnableFaucet:     false,
	}
}

// LoadConfig loads configuration from file or creates the default.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path must be set")
	}
	if !c.MockVerifier && c.KeyDir == "" {
		return fmt.Errorf("key_dir must be set when the Groth16 verifier is enabled")
	}
	if c.RateLimitTokens <= 0 {
		return fmt.Errorf("rate_limit_tokens must be positive")
	}
	if c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate_limit_refill must be positive")
	}
	if c.RateLimitSeconds <= 0 {
		return fmt.Errorf("rate_limit_seconds must be positive")
	}
	return nil
}
