package semantic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHash = "0123456789abcdef0123456789abcdef01234567"

func TestAlphabetIsClosedAndDisjoint(t *testing.T) {
	t.Parallel()

	all := Alphabet()
	require.GreaterOrEqual(t, len(all), 70)

	seen := make(map[EventType]bool, len(all))
	for _, et := range all {
		assert.False(t, seen[et], "duplicate alphabet entry %s", et)
		seen[et] = true
		assert.True(t, Known(et))
		assert.True(t, LayerOf(et).Valid())
	}

	assert.False(t, Known("made_up_event"))
	assert.Equal(t, Layer(""), LayerOf("made_up_event"))
}

func TestAlphabetByLayerPartitionsAlphabet(t *testing.T) {
	t.Parallel()

	total := 0
	for _, l := range []Layer{
		LayerStructural, LayerSyntactic, LayerSemantic,
		LayerBehavioral, LayerAIPattern, LayerTrueAI, LayerCore,
	} {
		types := AlphabetByLayer(l)
		total += len(types)
		for _, et := range types {
			assert.Equal(t, l, LayerOf(et))
		}
	}
	assert.Equal(t, len(Alphabet()), total)
}

func TestRankFollowsDeclarationOrder(t *testing.T) {
	t.Parallel()

	// Structural comes before syntactic, syntactic before semantic.
	assert.Less(t, Rank(EventNodeAdded), Rank(EventSignatureChanged))
	assert.Less(t, Rank(EventSignatureChanged), Rank(EventControlFlowChanged))
	assert.Less(t, Rank(EventControlFlowChanged), Rank(EventFunctionComplexityChanged))

	// Within layer 2 the documented tie-break order holds.
	assert.Less(t, Rank(EventSignatureChanged), Rank(EventReturnTypeChanged))

	// Unknown types sort last.
	assert.Greater(t, Rank("made_up_event"), Rank(EventParseDegraded))
}

func TestLayerProperties(t *testing.T) {
	t.Parallel()

	tests := []struct {
		layer         Layer
		deterministic bool
		description   string
	}{
		{LayerStructural, true, "Structural Analysis"},
		{LayerSyntactic, true, "Syntactic Analysis"},
		{LayerSemantic, true, "Semantic Analysis"},
		{LayerBehavioral, true, "Behavioral Analysis"},
		{LayerAIPattern, false, "AI Pattern Analysis"},
		{LayerTrueAI, false, "True AI Analysis"},
		{LayerCore, true, "Core Analysis"},
	}

	for _, tt := range tests {
		assert.True(t, tt.layer.Valid())
		assert.Equal(t, tt.deterministic, tt.layer.Deterministic(), "layer %s", tt.layer)
		assert.Equal(t, tt.description, tt.layer.Description())
	}

	assert.False(t, Layer("6").Valid())
	assert.Equal(t, "Unknown", Layer("6").Description())
}

func TestNewEventDerivesLayer(t *testing.T) {
	t.Parallel()

	e := NewEvent(EventFunctionMadeAsync, "func:greet", "greet.py", "async modifier added")
	assert.Equal(t, LayerSyntactic, e.Layer)
	assert.Equal(t, "Syntactic Analysis", e.LayerDescription)
	assert.Nil(t, e.Confidence)
	require.NoError(t, e.Validate())

	scored := NewScoredEvent(EventCodeSimplification, FileNodeID("greet.py"), "greet.py", "loop to comprehension", 0.7)
	assert.Equal(t, LayerAIPattern, scored.Layer)
	require.NotNil(t, scored.Confidence)
	assert.InDelta(t, 0.7, *scored.Confidence, 1e-9)
	require.NoError(t, scored.Validate())
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	conf := 0.8
	bad := 1.5

	tests := []struct {
		name    string
		event   Event
		wantErr string
	}{
		{
			name:  "valid deterministic",
			event: NewEvent(EventNodeAdded, "func:greet", "greet.py", "new function"),
		},
		{
			name: "unknown type",
			event: Event{
				Type: "mystery", NodeID: "func:x", Layer: LayerStructural,
			},
			wantErr: "unknown event type",
		},
		{
			name:    "empty node id",
			event:   Event{Type: EventNodeAdded, Layer: LayerStructural},
			wantErr: "empty node id",
		},
		{
			name: "confidence on deterministic layer",
			event: Event{
				Type: EventNodeAdded, NodeID: "func:x",
				Layer: LayerStructural, Confidence: &conf,
			},
			wantErr: "deterministic layer",
		},
		{
			name: "confidence out of range",
			event: Event{
				Type: EventCodeSimplification, NodeID: "file:a.py",
				Layer: LayerAIPattern, Confidence: &bad,
			},
			wantErr: "out of range",
		},
		{
			name: "malformed commit hash",
			event: Event{
				Type: EventNodeAdded, NodeID: "func:x",
				Layer: LayerStructural, CommitHash: "abc",
			},
			wantErr: "malformed commit hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDedupKey(t *testing.T) {
	t.Parallel()

	a := NewEvent(EventSignatureChanged, "func:greet", "greet.py", "parameter added")
	a.CommitHash = testHash
	b := a
	assert.Equal(t, a.DedupKey(), b.DedupKey())

	b.Details = "parameter removed"
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())

	// Location is intentionally not part of the key.
	c := a
	c.Location = "greet.py:10-12"
	assert.Equal(t, a.DedupKey(), c.DedupKey())

	assert.True(t, strings.HasPrefix(FileNodeID("a/b.py"), "file:"))
}

func TestCommitValidate(t *testing.T) {
	t.Parallel()

	c := Commit{Hash: testHash, ParentHashes: []string{testHash}}
	require.NoError(t, c.Validate())

	c.Hash = "HEAD"
	assert.Error(t, c.Validate())

	c.Hash = testHash
	c.ParentHashes = []string{"short"}
	assert.Error(t, c.Validate())
}
