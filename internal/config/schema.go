// Package config loads and validates the repository-local SVCS
// configuration from .svcs/config.yaml and SVCS_* environment
// variables.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Dir is the repository-local directory holding the store and config.
const Dir = ".svcs"

// FileName is the config file name inside Dir.
const FileName = "config.yaml"

// DBFileName is the store file name inside Dir.
const DBFileName = "semantic.db"

// Config is the effective SVCS configuration.
type Config struct {
	// AutoSyncNotes enables note transport from the hooks. When false
	// only local analysis runs and sync is manual.
	AutoSyncNotes bool `mapstructure:"auto_sync_notes" yaml:"auto_sync_notes"`

	// IgnorePatterns are glob patterns of paths excluded from analysis.
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`

	// AnalysisDepth is "full" or "shallow" (layers 1-2 only).
	AnalysisDepth string `mapstructure:"analysis_depth" yaml:"analysis_depth"`

	// Remote is the git remote used for note transport.
	Remote string `mapstructure:"remote" yaml:"remote"`

	// DBPath overrides the store location (default .svcs/semantic.db,
	// relative to the repository root).
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// Debug raises logging verbosity.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// AIEnabled turns on the model-driven analysis layer.
	AIEnabled bool `mapstructure:"ai_enabled" yaml:"ai_enabled"`

	// AIProvider is "anthropic", "openai", or "gemini".
	AIProvider string `mapstructure:"ai_provider" yaml:"ai_provider"`

	// AIModel overrides the provider's default model.
	AIModel string `mapstructure:"ai_model" yaml:"ai_model"`

	// AIAPIKey authenticates against the provider. Usually supplied
	// via SVCS_AI_API_KEY rather than the config file.
	AIAPIKey string `mapstructure:"ai_api_key" yaml:"-"`

	// AIComplexityThreshold is the minimum number of deterministic
	// events a file change must produce before the model layer is
	// consulted.
	AIComplexityThreshold int `mapstructure:"ai_complexity_threshold" yaml:"ai_complexity_threshold"`

	// AITimeoutSeconds bounds one model call.
	AITimeoutSeconds int `mapstructure:"ai_timeout_seconds" yaml:"ai_timeout_seconds"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		AutoSyncNotes:         true,
		AnalysisDepth:         "full",
		Remote:                "origin",
		AIEnabled:             false,
		AIComplexityThreshold: 2,
		AITimeoutSeconds:      30,
	}
}

// AITimeout returns the model-call timeout as a duration.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// YAML renders the config for `svcs init`.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
