package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/svcs-dev/svcs/internal/errors"
)

// Load reads the configuration for the repository rooted at repoRoot.
// Precedence: environment (SVCS_*) over the config file over defaults.
// A missing config file is not an error.
func Load(repoRoot string) (*Config, error) {
	const op = "config.Load"

	v := viper.New()
	v.SetEnvPrefix("SVCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("auto_sync_notes", defaults.AutoSyncNotes)
	v.SetDefault("ignore_patterns", defaults.IgnorePatterns)
	v.SetDefault("analysis_depth", defaults.AnalysisDepth)
	v.SetDefault("remote", defaults.Remote)
	v.SetDefault("db_path", filepath.Join(Dir, DBFileName))
	v.SetDefault("debug", defaults.Debug)
	v.SetDefault("ai_enabled", defaults.AIEnabled)
	v.SetDefault("ai_provider", defaults.AIProvider)
	v.SetDefault("ai_model", defaults.AIModel)
	v.SetDefault("ai_api_key", "")
	v.SetDefault("ai_complexity_threshold", defaults.AIComplexityThreshold)
	v.SetDefault("ai_timeout_seconds", defaults.AITimeoutSeconds)

	path := filepath.Join(repoRoot, Dir, FileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.ConfigWrap(err, op, "failed to read "+path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigWrap(err, op, "failed to decode configuration")
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StorePath resolves the database path against the repository root.
func (c *Config) StorePath(repoRoot string) string {
	path := c.DBPath
	if path == "" {
		path = filepath.Join(Dir, DBFileName)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(repoRoot, path)
}

// Ignored reports whether a repository-relative path matches any
// ignore pattern. Patterns match both the full path and the base name.
func (c *Config) Ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range c.IgnorePatterns {
		if ok, err := filepath.Match(pattern, path); err == nil && ok {
			return true
		}
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}
