package ai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/svcs-dev/svcs/internal/errors"
)

// DefaultOpenAIModel is the default model for OpenAI.
const DefaultOpenAIModel = "gpt-4o-mini"

// openaiAnalyzer implements Analyzer using the OpenAI chat API.
type openaiAnalyzer struct {
	client     *openai.Client
	config     ServiceConfig
	resilience *Resilience
}

func newOpenAIAnalyzer(cfg ServiceConfig) (Analyzer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	resilienceCfg := DefaultResilienceConfig()
	resilienceCfg.RateLimitRPM = cfg.RateLimitRPM
	resilienceCfg.RetryAttempts = cfg.RetryAttempts
	if cfg.Timeout > 0 {
		resilienceCfg.RetryMaxWait = cfg.Timeout
	}

	return &openaiAnalyzer{
		client:     openai.NewClient(cfg.APIKey),
		config:     cfg,
		resilience: NewResilience(resilienceCfg),
	}, nil
}

func (s *openaiAnalyzer) IsAvailable() bool {
	return s.client != nil && s.config.APIKey != ""
}

func (s *openaiAnalyzer) AnalyzeChange(ctx context.Context, req ChangeRequest) ([]Finding, error) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       s.config.Model,
			MaxTokens:   s.config.MaxTokens,
			Temperature: float32(s.config.Temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.AI("ai.AnalyzeChange", "no response from OpenAI model")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
	if err != nil {
		return nil, errors.AIWrap(err, "ai.AnalyzeChange", "openai call failed")
	}

	return parseFindings(raw)
}
