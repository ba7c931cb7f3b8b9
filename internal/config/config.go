// Package config provides configuration management using the Singleton pattern.
// It loads configuration from environment variables and config.yaml using Viper.
package config

import (
	"fmt"
	"sort"
	"sync"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// Server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Anthropic API configuration
	Anthropic AnthropicConfig `json:"anthropic" mapstructure:"anthropic"`

	// ChatModes maps a mode key to its system-prompt preset.
	ChatModes map[string]ChatMode `json:"chat_modes" mapstructure:"chat_modes"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeoutSeconds is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeoutSeconds is the maximum duration before timing out writes of the
	// response. Streamed completions can run for minutes, so this defaults well
	// above the per-request Anthropic timeout.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeoutSeconds is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`
}

// AnthropicConfig holds the remote completion service configuration.
type AnthropicConfig struct {
	// Model is the Claude model identifier used for all completions.
	Model string `json:"model" mapstructure:"model"`

	// BaseURL is the Anthropic API endpoint. Override for testing or proxies.
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKeys is the list of API keys rotated round-robin across requests.
	APIKeys []string `json:"api_keys" mapstructure:"api_keys"`

	// RequestTimeoutSeconds is the per-request timeout for completion calls.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`

	// KeyCooldownSeconds is how long a failing key stays out of rotation.
	KeyCooldownSeconds int `json:"key_cooldown_seconds" mapstructure:"key_cooldown_seconds"`
}

// ChatMode is a named system-prompt preset for the conversation.
type ChatMode struct {
	// Name is the human-readable label shown to users.
	Name string `json:"name" mapstructure:"name"`

	// Prompt is the system instruction sent with every completion in this mode.
	Prompt string `json:"prompt" mapstructure:"prompt"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance.
// It initializes the configuration on first call using the default config path.
// Returns an error if configuration loading fails.
func GetConfig() (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig("")
	})
	return configInstance, configErr
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
// This should be used when you need to specify a non-default configuration file path.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configErr = nil
}

// Validate validates the configuration and returns an error if required fields are missing.
func (c *Configuration) Validate() error {
	var validationErrors []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		validationErrors = append(validationErrors, "server.port must be between 1 and 65535")
	}

	if c.Anthropic.Model == "" {
		validationErrors = append(validationErrors, "anthropic.model is required")
	}
	if c.Anthropic.BaseURL == "" {
		validationErrors = append(validationErrors, "anthropic.base_url is required")
	}
	if c.Anthropic.RequestTimeoutSeconds <= 0 {
		validationErrors = append(validationErrors, "anthropic.request_timeout_seconds must be positive")
	}

	if len(c.ChatModes) == 0 {
		validationErrors = append(validationErrors, "chat_modes cannot be empty, at least one mode is required")
	}
	for key, mode := range c.ChatModes {
		if mode.Prompt == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("chat_modes.%s.prompt is required", key))
		}
	}

	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.level '%s' is invalid, must be one of: debug, info, warn, error",
			c.Logging.Level,
		))
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}

	return nil
}

// isValidLogLevel checks if the log level is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ModePrompt returns the system prompt for a mode key.
// The second return value reports whether the mode is configured.
func (c *Configuration) ModePrompt(key string) (string, bool) {
	mode, ok := c.ChatModes[key]
	if !ok {
		return "", false
	}
	return mode.Prompt, true
}

// ModeKeys returns the configured mode keys in sorted order.
func (c *Configuration) ModeKeys() []string {
	keys := make([]string, 0, len(c.ChatModes))
	for k := range c.ChatModes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
