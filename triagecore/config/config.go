// Package config provides triage pipeline configuration with defaults,
// optional YAML overlay, and validation.
//
// Config is infrastructure-light: it carries model parameters, escalation
// settings, and the ledger location. Credentials are never stored here; the
// API key is read from the environment variable named by APIKeyEnv.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sonukumar047/email-assistant/triagecore/state"
)

// Config holds triage pipeline configuration.
type Config struct {
	// Model Configuration
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	// Provider endpoint (OpenAI-compatible). APIKeyEnv names the environment
	// variable holding the key.
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`

	// Reply Configuration
	DefaultTone state.Tone `yaml:"default_tone"`

	// Escalation Settings
	EscalationKeywords []string `yaml:"escalation_keywords"`
	RepeatThreshold    int      `yaml:"repeat_threshold"` // prior interactions before auto-escalation

	// Memory Settings
	LedgerPath string `yaml:"ledger_path"`
	MaxHistory int    `yaml:"max_history"` // records kept per correspondent

	// Timeouts (seconds). Applied per external call; 0 disables.
	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Model:       "llama-3.3-70b-versatile",
		Temperature: 0.3,
		MaxTokens:   1000,

		BaseURL:   "https://api.groq.com/openai/v1",
		APIKeyEnv: "GROQ_API_KEY",

		DefaultTone: state.ToneProfessional,

		EscalationKeywords: []string{
			"urgent", "immediately", "asap", "critical",
			"billing issue", "payment failed", "refund",
			"terrible", "worst", "angry", "frustrated",
		},
		RepeatThreshold: 2,

		LedgerPath: "data/memory.json",
		MaxHistory: 5,

		LLMTimeoutSeconds: 60,

		LogLevel: "info",
	}
}

// Load reads a YAML file and overlays it on the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("Config.Model is required")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("Config.Temperature must be in [0, 2], got %v", c.Temperature)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("Config.MaxTokens must be positive, got %d", c.MaxTokens)
	}
	if _, err := state.ToneFromString(string(c.DefaultTone)); err != nil {
		return fmt.Errorf("Config.DefaultTone: %w", err)
	}
	if c.RepeatThreshold < 1 {
		return fmt.Errorf("Config.RepeatThreshold must be at least 1, got %d", c.RepeatThreshold)
	}
	if c.LedgerPath == "" {
		return fmt.Errorf("Config.LedgerPath is required")
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("Config.MaxHistory must be at least 1, got %d", c.MaxHistory)
	}
	if c.LLMTimeoutSeconds < 0 {
		return fmt.Errorf("Config.LLMTimeoutSeconds must not be negative, got %d", c.LLMTimeoutSeconds)
	}
	return nil
}

// APIKey resolves the provider API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.APIKeyEnv)
}
