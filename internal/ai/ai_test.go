package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svcs-dev/svcs/internal/semantic"
)

func TestNewAnalyzerDefaultsToNoop(t *testing.T) {
	t.Parallel()

	analyzer, err := NewAnalyzer(ServiceConfig{})
	require.NoError(t, err)
	assert.False(t, analyzer.IsAvailable())

	findings, err := analyzer.AnalyzeChange(context.Background(), ChangeRequest{Path: "a.py"})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestNewAnalyzerRejectsUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyzer(ServiceConfig{Provider: "skynet", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewAnalyzerRejectsMalformedAnthropicKey(t *testing.T) {
	t.Parallel()

	_, err := NewAnalyzer(ServiceConfig{Provider: "anthropic", APIKey: "not-a-key"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid Anthropic API key format")
}

func TestTruncateSource(t *testing.T) {
	t.Parallel()

	t.Run("short source untouched", func(t *testing.T) {
		t.Parallel()
		src := "a\nb\nc"
		assert.Equal(t, src, TruncateSource(src, 10))
	})

	t.Run("cut at line boundary", func(t *testing.T) {
		t.Parallel()
		src := strings.Repeat("line\n", 500)
		out := TruncateSource(src, 100)
		assert.Equal(t, 101, strings.Count(out, "\n")+1)
		assert.True(t, strings.HasSuffix(out, "truncated ..."))
	})

	t.Run("zero budget falls back to default", func(t *testing.T) {
		t.Parallel()
		src := strings.Repeat("x\n", DefaultMaxSourceLines*2)
		out := TruncateSource(src, 0)
		assert.Less(t, len(out), len(src))
	})
}

func TestParseFindings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{
			name: "plain array",
			raw:  `[{"event_type":"algorithm_optimized","details":"d","confidence":0.8,"reasoning":"r","impact":"i"}]`,
			want: 1,
		},
		{
			name: "fenced with prose",
			raw:  "Here you go:\n```json\n[{\"event_type\":\"manual_analysis\",\"details\":\"d\",\"confidence\":0.7,\"reasoning\":\"r\",\"impact\":\"i\"}]\n```",
			want: 1,
		},
		{
			name: "empty array",
			raw:  "[]",
			want: 0,
		},
		{
			name:    "no array at all",
			raw:     "I cannot analyze this.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			raw:     `[{"event_type":}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			findings, err := parseFindings(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, findings, tt.want)
		})
	}
}

func TestEventsFiltersToModelAlphabet(t *testing.T) {
	t.Parallel()

	findings := []Finding{
		{EventType: semantic.EventAlgorithmOptimized, Details: "faster", Confidence: 0.9, Reasoning: "r", Impact: "i"},
		{EventType: semantic.EventDesignPatternApplied, Details: "observer", Confidence: 0.7, Reasoning: "r"},
		// Outside the model alphabet: dropped.
		{EventType: semantic.EventNodeAdded, Details: "x", Confidence: 0.9},
		// Unknown type: dropped.
		{EventType: "hallucinated_event", Details: "x", Confidence: 0.9},
		// Out-of-range confidence: dropped.
		{EventType: semantic.EventManualAnalysis, Details: "x", Confidence: 1.7},
	}

	events := Events(findings, "claude-sonnet-4-20250514", "file:calc.py", "calc.py")
	require.Len(t, events, 2)

	for _, e := range events {
		assert.Equal(t, semantic.LayerTrueAI, e.Layer)
		assert.Equal(t, "file:calc.py", e.NodeID)
		require.NotNil(t, e.Confidence)
		assert.True(t, strings.HasPrefix(e.Reasoning, "[claude-sonnet-4-20250514]"))
		require.NoError(t, e.Validate())
	}
	assert.Equal(t, "i", events[0].Impact)
}

func TestBuildUserPromptCarriesBothSides(t *testing.T) {
	t.Parallel()

	prompt := buildUserPrompt(ChangeRequest{
		Path:         "calc.py",
		NodeID:       "func:f",
		BeforeSource: "def f(): return 1",
		AfterSource:  "def f(): return 2",
	})

	assert.Contains(t, prompt, "calc.py")
	assert.Contains(t, prompt, "func:f")
	assert.Contains(t, prompt, "--- BEFORE ---")
	assert.Contains(t, prompt, "--- AFTER ---")
	assert.Contains(t, prompt, "return 1")
	assert.Contains(t, prompt, "return 2")
}
