package config

import (
	"fmt"
	"path/filepath"

	"github.com/svcs-dev/svcs/internal/errors"
)

var knownProviders = map[string]bool{
	"":          true,
	"anthropic": true,
	"openai":    true,
	"gemini":    true,
}

// Validate checks the configuration for contradictions.
func Validate(c *Config) error {
	const op = "config.Validate"

	switch c.AnalysisDepth {
	case "full", "shallow":
	default:
		return errors.Validation(op, fmt.Sprintf(
			"analysis_depth must be \"full\" or \"shallow\", got %q", c.AnalysisDepth))
	}

	if !knownProviders[c.AIProvider] {
		return errors.Validation(op, fmt.Sprintf("unknown ai_provider %q", c.AIProvider))
	}
	if c.AIEnabled && c.AIProvider == "" {
		return errors.Validation(op, "ai_enabled requires ai_provider")
	}
	if c.AIComplexityThreshold < 0 {
		return errors.Validation(op, "ai_complexity_threshold must be non-negative")
	}
	if c.AITimeoutSeconds < 0 {
		return errors.Validation(op, "ai_timeout_seconds must be non-negative")
	}
	if c.Remote == "" {
		return errors.Validation(op, "remote must not be empty")
	}

	for _, pattern := range c.IgnorePatterns {
		if _, err := filepath.Match(pattern, "probe"); err != nil {
			return errors.Validation(op, fmt.Sprintf("invalid ignore pattern %q", pattern))
		}
	}
	return nil
}
