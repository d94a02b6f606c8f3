// Package ir defines the per-file intermediate representation produced
// by the language parsers and consumed by the differ. An IR is a flat,
// single-run structure: nodes are owned by one map keyed by qualified
// name, and parent links are name references rather than pointers.
package ir

import (
	"fmt"
	"sort"
)

// NodeKind classifies a program node.
type NodeKind string

const (
	KindModule             NodeKind = "module"
	KindFunction           NodeKind = "function"
	KindMethod             NodeKind = "method"
	KindClass              NodeKind = "class"
	KindInterface          NodeKind = "interface"
	KindTrait              NodeKind = "trait"
	KindEnum               NodeKind = "enum"
	KindEnumCase           NodeKind = "enum_case"
	KindProperty           NodeKind = "property"
	KindConstant           NodeKind = "constant"
	KindNamespaceImport    NodeKind = "namespace_import"
	KindAttributeDecorator NodeKind = "attribute_decorator"
)

// Visibility is the declared access level of a member.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
)

// Param describes one parameter of a callable signature.
type Param struct {
	// Name is the parameter name.
	Name string
	// HasDefault is true when the parameter carries a default value.
	HasDefault bool
	// Type is the type annotation, empty if none.
	Type string
	// Variadic is true for *args / ...rest style parameters.
	Variadic bool
}

// Signature is the canonicalized callable signature: the ordered
// parameter list plus the return-type annotation if any.
type Signature struct {
	Params     []Param
	ReturnType string
}

// Equal reports structural equality of two signatures.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.ReturnType != other.ReturnType || len(s.Params) != len(other.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}

// DefaultCount returns how many parameters carry defaults.
func (s *Signature) DefaultCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, p := range s.Params {
		if p.HasDefault {
			n++
		}
	}
	return n
}

// String renders the signature for event details.
func (s *Signature) String() string {
	if s == nil {
		return "()"
	}
	out := "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		if p.Variadic {
			out += "*"
		}
		out += p.Name
		if p.Type != "" {
			out += ": " + p.Type
		}
		if p.HasDefault {
			out += "=..."
		}
	}
	out += ")"
	if s.ReturnType != "" {
		out += " -> " + s.ReturnType
	}
	return out
}

// Modifiers is the set of declaration modifiers on a node.
type Modifiers struct {
	Async             bool
	Generator         bool
	Static            bool
	Abstract          bool
	Readonly          bool
	Visibility        Visibility
	Typed             bool
	Nullable          bool
	UnionTypes        []string
	IntersectionTypes []string
}

// BodyFeatures is the abstract summary of a node's body, extracted once
// by the parser. Layers 3 and 4 compare only these features and never
// re-read source.
type BodyFeatures struct {
	// ControlFlow counts control constructs by keyword (if, for, while,
	// try, match, with, switch).
	ControlFlow map[string]int
	// ExceptionHandlers lists handler shapes (caught type names, "" for
	// a bare handler), in source order.
	ExceptionHandlers []string
	// YieldCount is the number of yield points; YieldFromCount counts
	// delegating yields.
	YieldCount     int
	YieldFromCount int
	// ReturnShapes counts return statements by shape class: "bare",
	// "value", "tuple2", "tuple3+".
	ReturnShapes map[string]int
	// InternalCalls counts calls by callee name.
	InternalCalls map[string]int
	// Comprehensions counts comprehension expressions by kind (list,
	// dict, set, generator).
	Comprehensions map[string]int
	// Lambdas is the count of lambda/arrow expressions.
	Lambdas int
	// Globals and Nonlocals are the declared scope names, sorted.
	Globals   []string
	Nonlocals []string
	// AttributeAccesses and SubscriptAccesses count access expressions
	// by target.
	AttributeAccesses map[string]int
	SubscriptAccesses map[string]int
	// Assignments counts assignment statements by shape: "simple",
	// "multiple", "unpack", "annotated". AugmentedAssignments counts by
	// operator.
	Assignments          map[string]int
	AugmentedAssignments map[string]int
	// Operator usage histograms by operator token.
	BinaryOps     map[string]int
	UnaryOps      map[string]int
	ComparisonOps map[string]int
	LogicalOps    map[string]int
	// Literal usage counts by class.
	StringLiterals  int
	NumericLiterals int
	BooleanLiterals int
	// Assertions counts assert statements.
	Assertions int
	// DecisionPoints is the cyclomatic-style complexity proxy.
	DecisionPoints int
	// FunctionalCalls counts map/filter/reduce style calls.
	FunctionalCalls int
}

// NewBodyFeatures returns an empty feature set with all maps allocated.
func NewBodyFeatures() *BodyFeatures {
	return &BodyFeatures{
		ControlFlow:          make(map[string]int),
		ReturnShapes:         make(map[string]int),
		InternalCalls:        make(map[string]int),
		Comprehensions:       make(map[string]int),
		AttributeAccesses:    make(map[string]int),
		SubscriptAccesses:    make(map[string]int),
		Assignments:          make(map[string]int),
		AugmentedAssignments: make(map[string]int),
		BinaryOps:            make(map[string]int),
		UnaryOps:             make(map[string]int),
		ComparisonOps:        make(map[string]int),
		LogicalOps:           make(map[string]int),
	}
}

// IsGenerator reports whether the body contains any yield point.
func (f *BodyFeatures) IsGenerator() bool {
	return f != nil && (f.YieldCount > 0 || f.YieldFromCount > 0)
}

// FunctionalScore is the total count of functional constructs used by
// the layer-4 functional-programming events.
func (f *BodyFeatures) FunctionalScore() int {
	if f == nil {
		return 0
	}
	total := f.Lambdas + f.FunctionalCalls
	for _, n := range f.Comprehensions {
		total += n
	}
	return total
}

// Node is one named program construct within a file version.
type Node struct {
	Kind          NodeKind
	QualifiedName string
	Signature     *Signature
	Modifiers     Modifiers
	// Decorators lists decorator or attribute names in source order.
	Decorators []string
	// Parent is the qualified name of the enclosing node, empty for the
	// module root.
	Parent string
	// Bases lists base classes / extended interfaces for class-kind nodes.
	Bases []string
	// BodyFingerprint is a structural hash of the body used only as a
	// fast equality gate.
	BodyFingerprint uint64
	// Features summarizes the body; nil when the parser did not recover
	// the body (fallback tiers), which disables layers 3 and 4 for the
	// node.
	Features *BodyFeatures
	// Dependencies is the sorted import set; module-kind nodes only.
	Dependencies []string
	// StartLine and EndLine delimit the node in the source, 1-based.
	StartLine int
	EndLine   int
}

// IsClassLike reports whether the node participates in inheritance and
// member rollup comparisons.
func (n *Node) IsClassLike() bool {
	switch n.Kind {
	case KindClass, KindInterface, KindTrait, KindEnum:
		return true
	default:
		return false
	}
}

// IsCallable reports whether the node carries a signature worth diffing.
func (n *Node) IsCallable() bool {
	switch n.Kind {
	case KindFunction, KindMethod:
		return true
	default:
		return false
	}
}

// IR is the parse result for one file version: a flat collection of
// nodes keyed by qualified name.
type IR struct {
	// Path is the repository-relative file path.
	Path string
	// Nodes maps qualified name to node.
	Nodes map[string]*Node
	// Degraded is true when parsing was not fully recoverable and the
	// IR is partial. DegradedDetail names the producing tier or error.
	Degraded       bool
	DegradedDetail string
}

// New returns an empty IR for the given path.
func New(path string) *IR {
	return &IR{Path: path, Nodes: make(map[string]*Node)}
}

// Add inserts a node, rejecting qualified-name collisions.
func (r *IR) Add(n *Node) error {
	if n.QualifiedName == "" {
		return fmt.Errorf("node of kind %s has empty qualified name", n.Kind)
	}
	if _, exists := r.Nodes[n.QualifiedName]; exists {
		return fmt.Errorf("duplicate qualified name %q in %s", n.QualifiedName, r.Path)
	}
	r.Nodes[n.QualifiedName] = n
	return nil
}

// Module returns the root module node, or nil for an empty IR.
func (r *IR) Module() *Node {
	for _, n := range r.Nodes {
		if n.Kind == KindModule {
			return n
		}
	}
	return nil
}

// Names returns all qualified names in sorted order, which gives the
// differ a stable iteration order.
func (r *IR) Names() []string {
	names := make([]string, 0, len(r.Nodes))
	for name := range r.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChildrenOf returns the qualified names of the direct children of the
// given node, sorted.
func (r *IR) ChildrenOf(parent string) []string {
	var out []string
	for name, n := range r.Nodes {
		if n.Parent == parent {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the structural invariants: every non-module node has
// a parent present in the IR, and the module root is unique.
func (r *IR) Validate() error {
	modules := 0
	for name, n := range r.Nodes {
		if name != n.QualifiedName {
			return fmt.Errorf("node keyed as %q carries qualified name %q", name, n.QualifiedName)
		}
		if n.Kind == KindModule {
			modules++
			continue
		}
		if n.Parent == "" {
			return fmt.Errorf("node %q has no parent", name)
		}
		if _, ok := r.Nodes[n.Parent]; !ok {
			return fmt.Errorf("node %q references missing parent %q", name, n.Parent)
		}
	}
	if len(r.Nodes) > 0 && modules != 1 {
		return fmt.Errorf("IR for %s has %d module roots", r.Path, modules)
	}
	return nil
}
