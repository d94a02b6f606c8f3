package differ

import (
	"fmt"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// designPatternSuffixes are class-name endings that indicate a named
// design pattern.
var designPatternSuffixes = []string{
	"Factory", "Builder", "Singleton", "Observer", "Strategy",
	"Adapter", "Decorator", "Proxy", "Visitor", "Facade",
}

// riskyCallFragments and hardeningCallFragments drive the security
// heuristics over added/removed call targets.
var (
	riskyCallFragments     = []string{"eval", "exec", "system", "pickle.loads", "unserialize"}
	hardeningCallFragments = []string{"hash", "encrypt", "sanitize", "escape", "validate", "bcrypt"}
)

// patterns is layer 5a: heuristic inference over the deterministic
// layers' output. Every finding carries a confidence; findings under
// the configured floor are suppressed. The layer is replayable: same
// inputs, same findings, same confidences.
func (d *Differ) patterns(in Input, m *matchResult, prior []semantic.Event) []semantic.Event {
	fileID := semantic.FileNodeID(in.Path)
	typeCount := make(map[semantic.EventType]int, len(prior))
	for _, e := range prior {
		typeCount[e.Type]++
	}

	var events []semantic.Event
	emit := func(t semantic.EventType, nodeID, details, reasoning string, confidence float64) {
		if confidence < d.confidence {
			return
		}
		e := semantic.NewScoredEvent(t, nodeID, in.Path, details, confidence)
		e.Reasoning = reasoning
		events = append(events, e)
	}

	addedFuncs, removedFuncs := 0, 0
	for _, n := range m.Added {
		if n.IsCallable() {
			addedFuncs++
		}
	}
	for _, n := range m.Removed {
		if n.IsCallable() {
			removedFuncs++
		}
	}

	complexityDown, complexityUp := 0, 0
	maxComplexityRise := 0
	loopsDown, loopsUp := 0, 0
	comprehensionGain := false
	functionalGain := false

	for _, p := range m.Pairs {
		if !trustedFeatures(in, p) || sameBody(p) {
			continue
		}
		bf, af := p.Before.Features, p.After.Features

		switch {
		case af.DecisionPoints < bf.DecisionPoints:
			complexityDown++
		case af.DecisionPoints > bf.DecisionPoints:
			complexityUp++
			if rise := af.DecisionPoints - bf.DecisionPoints; rise > maxComplexityRise {
				maxComplexityRise = rise
			}
		}

		beforeLoops := bf.ControlFlow["for"] + bf.ControlFlow["while"]
		afterLoops := af.ControlFlow["for"] + af.ControlFlow["while"]
		switch {
		case afterLoops < beforeLoops:
			loopsDown++
		case afterLoops > beforeLoops:
			loopsUp++
		}

		if sumValues(af.Comprehensions) > sumValues(bf.Comprehensions) {
			comprehensionGain = true
		}
		if af.FunctionalScore() > bf.FunctionalScore() {
			functionalGain = true
		}

		// Per-node security heuristics over added and removed calls.
		for _, callee := range addedKeys(bf.InternalCalls, af.InternalCalls) {
			if matchesFragment(callee, hardeningCallFragments) {
				emit(semantic.EventSecurityImprovement, p.After.QualifiedName,
					fmt.Sprintf("hardening call %s introduced", callee),
					"added call matches a known hardening API", 0.6)
			}
			if matchesFragment(callee, riskyCallFragments) {
				emit(semantic.EventSecurityVulnerability, p.After.QualifiedName,
					fmt.Sprintf("risky call %s introduced", callee),
					"added call matches a known dangerous API", 0.65)
			}
		}
	}

	if addedFuncs > 0 && complexityDown > 0 {
		emit(semantic.EventRefactoringExtractMethod, fileID,
			fmt.Sprintf("%d new function(s) while %d existing bodies got simpler", addedFuncs, complexityDown),
			"new callables appeared as existing bodies shrank", 0.7)
	}
	if removedFuncs > 0 && complexityUp > 0 {
		emit(semantic.EventRefactoringInlineMethod, fileID,
			fmt.Sprintf("%d function(s) removed while %d bodies grew", removedFuncs, complexityUp),
			"callables disappeared as surviving bodies grew", 0.65)
	}

	if comprehensionGain && loopsDown > 0 {
		emit(semantic.EventCodeSimplification, fileID,
			"explicit loops replaced by comprehensions",
			"loop count decreased while comprehension usage increased", 0.75)
		emit(semantic.EventOptimizationAlgorithm, fileID,
			"iteration rewritten in comprehension form",
			"loop-to-comprehension rewrite detected", 0.65)
	}
	if maxComplexityRise >= 3 {
		emit(semantic.EventCodeComplication, fileID,
			fmt.Sprintf("decision points rose by %d in one body", maxComplexityRise),
			"a single body absorbed many new branches", 0.6)
	}

	if typeCount[semantic.EventErrorHandlingIntroduced] > 0 ||
		typeCount[semantic.EventExceptionHandlingAdded] > 0 {
		emit(semantic.EventErrorHandlingImprovement, fileID,
			"exception handling was introduced or extended",
			"layer 3 reported new exception handlers", 0.75)
	}

	if typeCount[semantic.EventFunctionMadeAsync] > 0 || concurrencyGain(m) {
		emit(semantic.EventConcurrencyIntroduction, fileID,
			"asynchronous or concurrent execution introduced",
			"async modifiers or concurrency primitives appeared", 0.8)
	}

	if typeCount[semantic.EventFunctionMadeGenerator] > 0 {
		emit(semantic.EventMemoryOptimization, fileID,
			"materialized iteration replaced by a generator",
			"generator conversion streams values instead of building collections", 0.65)
	}

	if functionalGain && complexityDown > 0 {
		emit(semantic.EventPerformanceImprovement, fileID,
			"bodies became simpler and more functional",
			"complexity fell while functional construct usage rose", 0.6)
	}
	if loopsUp > 1 {
		emit(semantic.EventPerformanceRegression, fileID,
			fmt.Sprintf("loop count increased in %d bodies", loopsUp),
			"multiple bodies gained additional loops", 0.6)
	}

	if (typeCount[semantic.EventSubscriptAccessChanged] > 0 ||
		typeCount[semantic.EventAttributeAccessChanged] > 0) && comprehensionGain {
		emit(semantic.EventOptimizationDataStructure, fileID,
			"access patterns shifted together with collection-building style",
			"subscript/attribute histograms moved with comprehension adoption", 0.6)
	}

	d.apiPatterns(m, fileID, emit)
	d.designPatterns(m, emit)

	if typeCount[semantic.EventInheritanceChanged] > 0 ||
		(classCount(m.Added) > 0 && classCount(m.Removed) > 0) {
		emit(semantic.EventArchitectureChange, fileID,
			"type hierarchy was restructured",
			"inheritance changed or classes were replaced", 0.65)
	}

	return events
}

// emitFunc is the shared emission closure threaded through sub-rules.
type emitFunc func(t semantic.EventType, nodeID, details, reasoning string, confidence float64)

func (d *Differ) apiPatterns(m *matchResult, fileID string, emit emitFunc) {
	for _, n := range m.Removed {
		if n.IsCallable() && isPublic(n) {
			emit(semantic.EventAPIBreakingChange, n.QualifiedName,
				fmt.Sprintf("public callable %s removed", n.QualifiedName),
				"removing a public callable breaks consumers", 0.7)
		}
	}
	for _, p := range m.Pairs {
		if !p.After.IsCallable() || !isPublic(p.After) {
			continue
		}
		beforeParams, afterParams := paramCount(p.Before), paramCount(p.After)
		switch {
		case afterParams < beforeParams:
			emit(semantic.EventAPIBreakingChange, p.After.QualifiedName,
				"public signature lost parameters",
				"parameter removal breaks existing call sites", 0.7)
		case p.After.Signature.DefaultCount() > p.Before.Signature.DefaultCount():
			emit(semantic.EventAPIEnhancement, p.After.QualifiedName,
				"public signature extended with defaulted parameters",
				"defaulted parameters extend the API compatibly", 0.65)
		}
	}
	for _, n := range m.Added {
		if n.IsCallable() && isPublic(n) {
			emit(semantic.EventAPIEnhancement, fileID,
				fmt.Sprintf("public callable %s added", n.QualifiedName),
				"new public callable extends the API", 0.6)
			break
		}
	}
}

func (d *Differ) designPatterns(m *matchResult, emit emitFunc) {
	for _, n := range m.Added {
		if n.IsClassLike() {
			if suffix := patternSuffix(n.QualifiedName); suffix != "" {
				emit(semantic.EventDesignPatternImplementation, n.QualifiedName,
					fmt.Sprintf("class named after the %s pattern added", suffix),
					"class name carries a design-pattern suffix", 0.7)
			}
		}
	}
	for _, n := range m.Removed {
		if n.IsClassLike() {
			if suffix := patternSuffix(n.QualifiedName); suffix != "" {
				emit(semantic.EventDesignPatternRemoval, n.QualifiedName,
					fmt.Sprintf("class named after the %s pattern removed", suffix),
					"class name carries a design-pattern suffix", 0.7)
			}
		}
	}
}

func patternSuffix(qualifiedName string) string {
	for _, suffix := range designPatternSuffixes {
		if strings.HasSuffix(qualifiedName, suffix) {
			return suffix
		}
	}
	return ""
}

func matchesFragment(callee string, fragments []string) bool {
	lower := strings.ToLower(callee)
	for _, fragment := range fragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// concurrencyGain reports goroutine-style construct growth on any
// trusted pair.
func concurrencyGain(m *matchResult) bool {
	for _, p := range m.Pairs {
		if p.Before.Features == nil || p.After.Features == nil {
			continue
		}
		if p.After.Features.ControlFlow["go"] > p.Before.Features.ControlFlow["go"] ||
			p.After.Features.ControlFlow["select"] > p.Before.Features.ControlFlow["select"] {
			return true
		}
	}
	return false
}

func isPublic(n *ir.Node) bool {
	if n.Modifiers.Visibility == ir.VisibilityPrivate || n.Modifiers.Visibility == ir.VisibilityProtected {
		return false
	}
	name := n.QualifiedName
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}
	return !strings.HasPrefix(name, "_")
}

func paramCount(n *ir.Node) int {
	if n.Signature == nil {
		return 0
	}
	return len(n.Signature.Params)
}

func classCount(nodes []*ir.Node) int {
	count := 0
	for _, n := range nodes {
		if n.IsClassLike() {
			count++
		}
	}
	return count
}

func sumValues(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
