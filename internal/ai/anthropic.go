package ai

import (
	"context"
	"regexp"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/svcs-dev/svcs/internal/errors"
)

// DefaultAnthropicModel is the default model for Anthropic.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// Anthropic keys start with "sk-ant-" followed by alphanumerics.
var anthropicKeyPattern = regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]{20,}$`)

// anthropicAnalyzer implements Analyzer using Anthropic Claude.
type anthropicAnalyzer struct {
	client     *anthropic.Client
	config     ServiceConfig
	resilience *Resilience
}

func newAnthropicAnalyzer(cfg ServiceConfig) (Analyzer, error) {
	// Validate the key format to fail fast without leaking the value.
	if !anthropicKeyPattern.MatchString(cfg.APIKey) {
		return nil, errors.AI("ai.newAnthropicAnalyzer", "invalid Anthropic API key format (expected sk-ant-...)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	resilienceCfg := DefaultResilienceConfig()
	resilienceCfg.RateLimitRPM = cfg.RateLimitRPM
	resilienceCfg.RetryAttempts = cfg.RetryAttempts
	if cfg.Timeout > 0 {
		resilienceCfg.RetryMaxWait = cfg.Timeout
	}

	return &anthropicAnalyzer{
		client:     anthropic.NewClient(cfg.APIKey),
		config:     cfg,
		resilience: NewResilience(resilienceCfg),
	}, nil
}

func (s *anthropicAnalyzer) IsAvailable() bool {
	return s.client != nil && s.config.APIKey != ""
}

func (s *anthropicAnalyzer) AnalyzeChange(ctx context.Context, req ChangeRequest) ([]Finding, error) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := s.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:     anthropic.Model(s.config.Model),
			MaxTokens: s.config.MaxTokens,
			System:    systemPrompt,
			Messages: []anthropic.Message{
				anthropic.NewUserTextMessage(buildUserPrompt(req)),
			},
			Temperature: toFloat32Ptr(s.config.Temperature),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Content) == 0 {
			return "", errors.AI("ai.AnalyzeChange", "no response from Anthropic model")
		}
		return strings.TrimSpace(resp.GetFirstContentText()), nil
	})
	if err != nil {
		return nil, errors.AIWrap(err, "ai.AnalyzeChange", "anthropic call failed")
	}

	return parseFindings(raw)
}

func toFloat32Ptr(f float64) *float32 {
	f32 := float32(f)
	return &f32
}
