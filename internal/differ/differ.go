// Package differ implements the layered semantic comparison of two
// file versions. Layers 1-4 are deterministic folds over the parser
// IRs; layer 5a infers higher-level patterns from the earlier layers'
// output. Each layer is isolated: an internal failure is logged and
// the remaining layers still run.
package differ

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// Depth selects how deep the comparison goes.
type Depth string

const (
	// DepthFull runs every deterministic layer plus pattern inference.
	DepthFull Depth = "full"
	// DepthShallow runs only the structural and syntactic layers.
	DepthShallow Depth = "shallow"
)

// DefaultPatternConfidence is the floor below which layer-5a findings
// are suppressed.
const DefaultPatternConfidence = 0.6

// Input is one file comparison unit. A nil IR means the file does not
// exist on that side.
type Input struct {
	// Path is the repository-relative file path.
	Path string
	// Before and After are the parsed IRs; nil for file add/delete.
	Before *ir.IR
	After  *ir.IR
	// BeforeSrc and AfterSrc carry raw source for consumers that need
	// context beyond the IR. The deterministic layers never read them.
	BeforeSrc []byte
	AfterSrc  []byte
}

// Differ runs the layered comparison.
type Differ struct {
	depth      Depth
	confidence float64
	logger     *slog.Logger
}

// Option configures a Differ.
type Option func(*Differ)

// WithDepth sets the analysis depth.
func WithDepth(d Depth) Option {
	return func(df *Differ) {
		df.depth = d
	}
}

// WithPatternConfidence sets the layer-5a confidence floor.
func WithPatternConfidence(floor float64) Option {
	return func(df *Differ) {
		df.confidence = floor
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(df *Differ) {
		df.logger = logger
	}
}

// New creates a Differ with the given options.
func New(opts ...Option) *Differ {
	d := &Differ{
		depth:      DepthFull,
		confidence: DefaultPatternConfidence,
		logger:     slog.Default().With("component", "differ"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// layerFunc is one differ stage: it sees the match result and all
// events emitted by earlier stages.
type layerFunc struct {
	name string
	run  func(in Input, m *matchResult, prior []semantic.Event) []semantic.Event
}

// Diff emits the ordered event stream for one file pair. It never
// mutates its inputs and never fails: a panicking layer is logged and
// skipped.
func (d *Differ) Diff(in Input) []semantic.Event {
	m := matchNodes(in.Before, in.After)

	layers := []layerFunc{
		{"structural", d.structural},
		{"syntactic", d.syntactic},
	}
	if d.depth == DepthFull {
		layers = append(layers,
			layerFunc{"semantic", d.semantic},
			layerFunc{"behavioral", d.behavioral},
			layerFunc{"patterns", d.patterns},
		)
	}

	var events []semantic.Event
	for _, layer := range layers {
		events = append(events, d.runLayer(layer, in, m, events)...)
	}
	return events
}

func (d *Differ) runLayer(layer layerFunc, in Input, m *matchResult, prior []semantic.Event) (out []semantic.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("differ layer failed",
				"layer", layer.name, "path", in.Path, "panic", fmt.Sprint(r))
			out = nil
		}
	}()
	return layer.run(in, m, prior)
}

// matchedPair is a node present in both versions.
type matchedPair struct {
	Before *ir.Node
	After  *ir.Node
}

// matchResult pairs nodes across the two IRs by qualified name.
type matchResult struct {
	Pairs   []matchedPair
	Added   []*ir.Node
	Removed []*ir.Node

	fileAdded   bool
	fileRemoved bool
}

// matchNodes pairs nodes by qualified name. Renames surface as a
// removal plus an addition.
func matchNodes(before, after *ir.IR) *matchResult {
	m := &matchResult{}

	switch {
	case before == nil && after == nil:
		return m
	case before == nil:
		m.fileAdded = true
	case after == nil:
		m.fileRemoved = true
	}

	var beforeNodes, afterNodes map[string]*ir.Node
	if before != nil {
		beforeNodes = before.Nodes
	}
	if after != nil {
		afterNodes = after.Nodes
	}

	for _, name := range sortedNodeNames(beforeNodes) {
		if afterNode, ok := afterNodes[name]; ok {
			m.Pairs = append(m.Pairs, matchedPair{Before: beforeNodes[name], After: afterNode})
		} else {
			m.Removed = append(m.Removed, beforeNodes[name])
		}
	}
	for _, name := range sortedNodeNames(afterNodes) {
		if _, ok := beforeNodes[name]; !ok {
			m.Added = append(m.Added, afterNodes[name])
		}
	}
	return m
}

func sortedNodeNames(nodes map[string]*ir.Node) []string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nodeLocation renders the location string for a node event.
func nodeLocation(path string, n *ir.Node) string {
	if n == nil || n.StartLine == 0 {
		return path
	}
	return fmt.Sprintf("%s:%d-%d", path, n.StartLine, n.EndLine)
}

// pairLocation prefers the after side of a matched pair.
func pairLocation(path string, p matchedPair) string {
	if p.After != nil && p.After.StartLine > 0 {
		return nodeLocation(path, p.After)
	}
	return nodeLocation(path, p.Before)
}

// trustedFeatures reports whether layers 3 and 4 may compare the pair:
// both sides need a recovered body and neither IR may be degraded for
// the node in question.
func trustedFeatures(in Input, p matchedPair) bool {
	if p.Before == nil || p.After == nil {
		return false
	}
	if p.Before.Features == nil || p.After.Features == nil {
		return false
	}
	if in.Before != nil && in.Before.Degraded {
		return false
	}
	if in.After != nil && in.After.Degraded {
		return false
	}
	return true
}

// sortByRank orders a pair's events by the alphabet's declaration
// order, keeping emission stable across runs.
func sortByRank(events []semantic.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return semantic.Rank(events[i].Type) < semantic.Rank(events[j].Type)
	})
}
