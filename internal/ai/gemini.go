package ai

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/svcs-dev/svcs/internal/errors"
)

// DefaultGeminiModel is the default model for Gemini.
const DefaultGeminiModel = "gemini-2.0-flash"

// geminiAnalyzer implements Analyzer using the Gemini API.
type geminiAnalyzer struct {
	client     *genai.Client
	config     ServiceConfig
	resilience *Resilience
}

func newGeminiAnalyzer(cfg ServiceConfig) (Analyzer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, errors.AIWrap(err, "ai.newGeminiAnalyzer", "failed to create Gemini client")
	}

	resilienceCfg := DefaultResilienceConfig()
	resilienceCfg.RateLimitRPM = cfg.RateLimitRPM
	resilienceCfg.RetryAttempts = cfg.RetryAttempts
	if cfg.Timeout > 0 {
		resilienceCfg.RetryMaxWait = cfg.Timeout
	}

	return &geminiAnalyzer{
		client:     client,
		config:     cfg,
		resilience: NewResilience(resilienceCfg),
	}, nil
}

func (s *geminiAnalyzer) IsAvailable() bool {
	return s.client != nil && s.config.APIKey != ""
}

func (s *geminiAnalyzer) AnalyzeChange(ctx context.Context, req ChangeRequest) ([]Finding, error) {
	timeout := s.config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := s.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		// Gemini takes a single combined prompt.
		temperature := float32(s.config.Temperature)
		resp, err := s.client.Models.GenerateContent(
			ctx,
			s.config.Model,
			[]*genai.Content{{Parts: []*genai.Part{
				{Text: systemPrompt + "\n\n" + buildUserPrompt(req)},
			}}},
			&genai.GenerateContentConfig{
				Temperature:     &temperature,
				MaxOutputTokens: int32(s.config.MaxTokens), // #nosec G115 -- bounded config value
			},
		)
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", errors.AI("ai.AnalyzeChange", "no response from Gemini model")
		}

		var out strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			out.WriteString(part.Text)
		}
		return strings.TrimSpace(out.String()), nil
	})
	if err != nil {
		return nil, errors.AIWrap(err, "ai.AnalyzeChange", "gemini call failed")
	}

	return parseFindings(raw)
}
