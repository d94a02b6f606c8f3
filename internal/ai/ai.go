// Package ai implements the optional model-driven analysis layer. It
// receives a bounded slice of the before/after source of a change and
// asks a configured provider for structured findings. When no provider
// is configured the layer contributes nothing; a provider failure never
// fails the pipeline.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// Default bounds for the source slice handed to a provider.
const (
	// DefaultMaxSourceLines is the per-side line budget for prompts.
	DefaultMaxSourceLines = 200
	// DefaultTimeout bounds one provider call.
	DefaultTimeout = 30 * time.Second
)

// Finding is one structured observation returned by a provider.
type Finding struct {
	// EventType must come from the model-layer alphabet.
	EventType semantic.EventType `json:"event_type"`
	// Details describes the change in one sentence.
	Details string `json:"details"`
	// Confidence is the model's own estimate in [0,1].
	Confidence float64 `json:"confidence"`
	// Reasoning explains how the model arrived at the finding.
	Reasoning string `json:"reasoning"`
	// Impact summarizes the expected effect.
	Impact string `json:"impact"`
}

// ChangeRequest is one analysis unit for a provider.
type ChangeRequest struct {
	// Path is the repository-relative file path.
	Path string
	// NodeID optionally scopes the finding to one node.
	NodeID string
	// BeforeSource and AfterSource are already truncated slices.
	BeforeSource string
	AfterSource  string
}

// Analyzer is the provider contract for the model layer.
type Analyzer interface {
	// AnalyzeChange returns structured findings for one change.
	AnalyzeChange(ctx context.Context, req ChangeRequest) ([]Finding, error)
	// IsAvailable reports whether the provider can be called.
	IsAvailable() bool
}

// ServiceConfig configures the model layer.
type ServiceConfig struct {
	// Provider is one of "anthropic", "openai", "gemini", or empty.
	Provider string
	// APIKey authenticates against the provider.
	APIKey string
	// Model overrides the provider default model.
	Model string
	// MaxTokens bounds the response size.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float64
	// Timeout bounds one call.
	Timeout time.Duration
	// RetryAttempts is the retry budget per call.
	RetryAttempts int
	// RateLimitRPM caps requests per minute (0 = unlimited).
	RateLimitRPM int
	// MaxSourceLines bounds the per-side source slice.
	MaxSourceLines int
}

// DefaultServiceConfig returns the default model-layer configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxTokens:      1024,
		Temperature:    0.2,
		Timeout:        DefaultTimeout,
		RetryAttempts:  2,
		RateLimitRPM:   30,
		MaxSourceLines: DefaultMaxSourceLines,
	}
}

// NewAnalyzer builds the provider named by the configuration. An empty
// provider or API key yields the noop analyzer.
func NewAnalyzer(cfg ServiceConfig) (Analyzer, error) {
	if cfg.Provider == "" || cfg.APIKey == "" {
		return &noopAnalyzer{}, nil
	}
	switch cfg.Provider {
	case "anthropic":
		return newAnthropicAnalyzer(cfg)
	case "openai":
		return newOpenAIAnalyzer(cfg)
	case "gemini":
		return newGeminiAnalyzer(cfg)
	default:
		return nil, errors.Config("ai.NewAnalyzer", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// TruncateSource bounds a source blob to maxLines, cutting at a line
// boundary so the model never sees a torn statement.
func TruncateSource(src string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = DefaultMaxSourceLines
	}
	lines := strings.Split(src, "\n")
	if len(lines) <= maxLines {
		return src
	}
	return strings.Join(lines[:maxLines], "\n") + "\n# ... truncated ..."
}

// Events converts provider findings into semantic events, dropping
// findings whose type is outside the model-layer alphabet. The model
// identifier is recorded in the reasoning so downstream consumers can
// filter replicated model findings.
func Events(findings []Finding, model, nodeID, location string) []semantic.Event {
	var events []semantic.Event
	for _, f := range findings {
		if semantic.LayerOf(f.EventType) != semantic.LayerTrueAI {
			continue
		}
		if f.Confidence < 0 || f.Confidence > 1 {
			continue
		}
		e := semantic.NewScoredEvent(f.EventType, nodeID, location, f.Details, f.Confidence)
		e.Reasoning = fmt.Sprintf("[%s] %s", model, f.Reasoning)
		e.Impact = f.Impact
		events = append(events, e)
	}
	return events
}

// systemPrompt instructs providers to answer with machine-readable
// findings only.
const systemPrompt = `You are a semantic code-change analyst. Compare the
before and after versions of a source file and report findings as a JSON
array. Each element must be an object with the keys "event_type",
"details", "confidence" (0.0-1.0), "reasoning", and "impact".
Allowed event_type values: "algorithm_optimized",
"design_pattern_applied", "manual_analysis". Report nothing else. If no
finding applies, return [].`

// buildUserPrompt renders one change request for the model.
func buildUserPrompt(req ChangeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", req.Path)
	if req.NodeID != "" {
		fmt.Fprintf(&b, "Node: %s\n", req.NodeID)
	}
	b.WriteString("\n--- BEFORE ---\n")
	b.WriteString(req.BeforeSource)
	b.WriteString("\n--- AFTER ---\n")
	b.WriteString(req.AfterSource)
	b.WriteString("\n\nRespond with the JSON array only.")
	return b.String()
}

// parseFindings extracts the findings array from a model response,
// tolerating surrounding prose and markdown fences.
func parseFindings(raw string) ([]Finding, error) {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, errors.AI("ai.parseFindings", "response carries no JSON array")
	}

	var findings []Finding
	if err := json.Unmarshal([]byte(raw[start:end+1]), &findings); err != nil {
		return nil, errors.AIWrap(err, "ai.parseFindings", "malformed findings payload")
	}
	return findings, nil
}

// noopAnalyzer is the stand-in when no provider is configured.
type noopAnalyzer struct{}

func (n *noopAnalyzer) AnalyzeChange(context.Context, ChangeRequest) ([]Finding, error) {
	return nil, nil
}

func (n *noopAnalyzer) IsAvailable() bool {
	return false
}
