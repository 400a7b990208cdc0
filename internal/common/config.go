package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/minuta/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Claude      ClaudeConfig    `toml:"claude"`
	Summarize   SummarizeConfig `toml:"summarize"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=debug info warn error"` // Log level
	Output []string `toml:"output"`                                      // "stdout", "file"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey    string `toml:"api_key"`                         // Anthropic API key
	Model     string `toml:"model"`                           // Model for batch requests (default: "claude-sonnet-4-20250514")
	MaxTokens int    `toml:"max_tokens" validate:"gte=0"`     // Maximum tokens per response (default: 8192)
	Timeout   string `toml:"timeout" validate:"required"`     // Network operation timeout as duration string (default: "2m")
	RateLimit string `toml:"rate_limit" validate:"required"`  // Minimum spacing between submissions (default: "1s")
}

// SummarizeConfig contains pipeline behavior configuration
type SummarizeConfig struct {
	TemplatesDir string `toml:"templates_dir"` // Directory for prompt template overrides (empty = embedded defaults only)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings belong in minuta.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/minuta",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
			Timeout:   "2m",
			RateLimit: "1s",
		},
		Summarize: SummarizeConfig{},
	}
}

// LoadFromFiles loads configuration by merging multiple TOML files in
// order (later files override earlier ones), then environment variables
// (highest priority).
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	// Environment configuration (highest priority: MINUTA_ENV, fallback: GO_ENV)
	if env := os.Getenv("MINUTA_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage configuration
	if badgerPath := os.Getenv("MINUTA_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("MINUTA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MINUTA_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("MINUTA_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("MINUTA_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("MINUTA_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("MINUTA_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("MINUTA_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}

	// Summarize configuration
	if templatesDir := os.Getenv("MINUTA_TEMPLATES_DIR"); templatesDir != "" {
		config.Summarize.TemplatesDir = templatesDir
	}
}

// ResolveAPIKey resolves an API key with priority: environment variable,
// KV store, config fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	// For Claude, also check the standard ANTHROPIC_API_KEY env var
	if name == "anthropic_api_key" || name == "claude_api_key" {
		if envValue := os.Getenv("ANTHROPIC_API_KEY"); envValue != "" {
			return envValue, nil
		}
		if envValue := os.Getenv("MINUTA_CLAUDE_API_KEY"); envValue != "" {
			return envValue, nil
		}
	}

	// Try to resolve from KV store (medium priority)
	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	// Fallback to config value (lowest priority)
	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}
