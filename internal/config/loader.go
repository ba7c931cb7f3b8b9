// Package config provides configuration management using the Singleton pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "CLAUDE_RELAY"

	// EnvAPIKeys is the primary environment variable for Anthropic API keys
	// (comma-separated). It takes priority over file configuration so that
	// keys never need to live on disk.
	EnvAPIKeys = "ANTHROPIC_API_KEY"
)

// defaultAssistantPrompt is the built-in "assistant" mode prompt, always
// available even with no config file at all.
const defaultAssistantPrompt = "You are Claude, a helpful assistant. " +
	"Answer the user's questions clearly and concisely. " +
	"If you are unsure about something, say so instead of guessing."

// loadConfig loads the configuration from environment variables and files.
// Priority order (highest to lowest):
// 1. ANTHROPIC_API_KEY env var (comma-separated keys)
// 2. Environment variables (prefixed with CLAUDE_RELAY_)
// 3. config.yaml
// 4. Default values
func loadConfig(configPath string) (*Configuration, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/claude-relay")
		v.AddConfigPath("$HOME/.claude-relay")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is fine; defaults plus env vars are enough.
		} else {
			return nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	// The built-in assistant mode is always present unless the file overrides it.
	if cfg.ChatModes == nil {
		cfg.ChatModes = make(map[string]ChatMode)
	}
	if _, ok := cfg.ChatModes["assistant"]; !ok {
		cfg.ChatModes["assistant"] = ChatMode{
			Name:   "Assistant",
			Prompt: defaultAssistantPrompt,
		}
	}

	// ANTHROPIC_API_KEY wins over any keys from the file.
	if keys := loadAPIKeysFromEnv(); len(keys) > 0 {
		cfg.Anthropic.APIKeys = keys
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 300)
	v.SetDefault("server.shutdown_timeout_seconds", 15)

	// Anthropic defaults
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20240620")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic.request_timeout_seconds", 60)
	v.SetDefault("anthropic.key_cooldown_seconds", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// loadAPIKeysFromEnv reads Anthropic API keys from the primary environment
// variable. Multiple keys may be supplied comma-separated.
func loadAPIKeysFromEnv() []string {
	envValue := os.Getenv(EnvAPIKeys)
	if envValue == "" {
		return nil
	}

	parts := strings.Split(envValue, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			keys = append(keys, p)
		}
	}
	return keys
}
