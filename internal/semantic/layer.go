package semantic

// Layer identifies the differ stage that produced an event.
type Layer string

const (
	// LayerStructural is layer 1: file, node, and dependency presence.
	LayerStructural Layer = "1"
	// LayerSyntactic is layer 2: declaration-level facets of matched nodes.
	LayerSyntactic Layer = "2"
	// LayerSemantic is layer 3: abstract body properties of matched nodes.
	LayerSemantic Layer = "3"
	// LayerBehavioral is layer 4: quantitative body histograms.
	LayerBehavioral Layer = "4"
	// LayerAIPattern is layer 5a: heuristic pattern inference over layers 1-4.
	LayerAIPattern Layer = "5a"
	// LayerTrueAI is layer 5b: optional external model analysis.
	LayerTrueAI Layer = "5b"
	// LayerCore marks pipeline-level markers such as degraded parses.
	LayerCore Layer = "core"
)

// Description returns the human label for the layer.
func (l Layer) Description() string {
	switch l {
	case LayerStructural:
		return "Structural Analysis"
	case LayerSyntactic:
		return "Syntactic Analysis"
	case LayerSemantic:
		return "Semantic Analysis"
	case LayerBehavioral:
		return "Behavioral Analysis"
	case LayerAIPattern:
		return "AI Pattern Analysis"
	case LayerTrueAI:
		return "True AI Analysis"
	case LayerCore:
		return "Core Analysis"
	default:
		return "Unknown"
	}
}

// Deterministic reports whether the layer must be replayable with
// identical output for identical input. Such layers carry no confidence.
func (l Layer) Deterministic() bool {
	switch l {
	case LayerStructural, LayerSyntactic, LayerSemantic, LayerBehavioral, LayerCore:
		return true
	default:
		return false
	}
}

// Valid reports whether l is a known layer.
func (l Layer) Valid() bool {
	switch l {
	case LayerStructural, LayerSyntactic, LayerSemantic, LayerBehavioral,
		LayerAIPattern, LayerTrueAI, LayerCore:
		return true
	default:
		return false
	}
}
