package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// semantic is layer 3: abstract body properties of matched pairs. It
// compares only the feature sets extracted by the parser and never
// reads raw source. Pairs whose bodies were not reliably recovered are
// skipped.
func (d *Differ) semantic(in Input, m *matchResult, _ []semantic.Event) []semantic.Event {
	var events []semantic.Event
	for _, pair := range m.Pairs {
		if !trustedFeatures(in, pair) {
			continue
		}
		if sameBody(pair) {
			continue
		}
		pairEvents := d.semanticPair(in, pair)
		sortByRank(pairEvents)
		events = append(events, pairEvents...)
	}
	return events
}

// sameBody is the fast equality gate: identical fingerprints mean the
// body text did not change at all.
func sameBody(p matchedPair) bool {
	return p.Before.BodyFingerprint != 0 &&
		p.Before.BodyFingerprint == p.After.BodyFingerprint
}

func (d *Differ) semanticPair(in Input, p matchedPair) []semantic.Event {
	bf, af := p.Before.Features, p.After.Features
	loc := pairLocation(in.Path, p)
	id := p.After.QualifiedName

	var events []semantic.Event
	emit := func(t semantic.EventType, details string) {
		events = append(events, semantic.NewEvent(t, id, loc, details))
	}

	if !intMapsEqual(bf.ControlFlow, af.ControlFlow) {
		emit(semantic.EventControlFlowChanged, fmt.Sprintf(
			"control flow constructs changed: %s", describeIntMapDiff(bf.ControlFlow, af.ControlFlow)))
	}

	switch {
	case !bf.IsGenerator() && af.IsGenerator():
		emit(semantic.EventFunctionMadeGenerator, "yield introduced")
	case bf.IsGenerator() && !af.IsGenerator():
		emit(semantic.EventGeneratorMadeFunction, "yield removed")
	case bf.IsGenerator() && af.IsGenerator() &&
		(bf.YieldCount != af.YieldCount || bf.YieldFromCount != af.YieldFromCount):
		emit(semantic.EventYieldPatternChanged, fmt.Sprintf(
			"yield points %d -> %d", bf.YieldCount, af.YieldCount))
	}

	if !intMapsEqual(bf.ReturnShapes, af.ReturnShapes) {
		emit(semantic.EventReturnPatternChanged, fmt.Sprintf(
			"return shapes changed: %s", describeIntMapDiff(bf.ReturnShapes, af.ReturnShapes)))
	}

	events = append(events, exceptionEvents(id, loc, bf, af)...)

	for _, callee := range addedKeys(bf.InternalCalls, af.InternalCalls) {
		emit(semantic.EventInternalCallAdded, fmt.Sprintf("call to %s added", callee))
	}
	for _, callee := range addedKeys(af.InternalCalls, bf.InternalCalls) {
		emit(semantic.EventInternalCallRemoved, fmt.Sprintf("call to %s removed", callee))
	}

	if !intMapsEqual(bf.Comprehensions, af.Comprehensions) {
		emit(semantic.EventComprehensionUsageChanged, fmt.Sprintf(
			"comprehension usage changed: %s", describeIntMapDiff(bf.Comprehensions, af.Comprehensions)))
	}
	if bf.Lambdas != af.Lambdas {
		emit(semantic.EventLambdaUsageChanged, fmt.Sprintf(
			"lambda count %d -> %d", bf.Lambdas, af.Lambdas))
	}

	if !stringSlicesEqual(bf.Globals, af.Globals) {
		emit(semantic.EventGlobalScopeChanged, fmt.Sprintf(
			"global declarations changed from [%s] to [%s]",
			strings.Join(bf.Globals, ", "), strings.Join(af.Globals, ", ")))
	}
	if !stringSlicesEqual(bf.Nonlocals, af.Nonlocals) {
		emit(semantic.EventNonlocalScopeChanged, fmt.Sprintf(
			"nonlocal declarations changed from [%s] to [%s]",
			strings.Join(bf.Nonlocals, ", "), strings.Join(af.Nonlocals, ", ")))
	}

	return events
}

// exceptionEvents derives the handler presence and shape events.
func exceptionEvents(id, loc string, bf, af *ir.BodyFeatures) []semantic.Event {
	beforeHandlers := len(bf.ExceptionHandlers)
	afterHandlers := len(af.ExceptionHandlers)

	var events []semantic.Event
	switch {
	case beforeHandlers == 0 && afterHandlers > 0:
		events = append(events,
			semantic.NewEvent(semantic.EventExceptionHandlingAdded, id, loc,
				fmt.Sprintf("%d exception handler(s) added", afterHandlers)),
			semantic.NewEvent(semantic.EventErrorHandlingIntroduced, id, loc,
				"error handling introduced where none existed"))
	case beforeHandlers > 0 && afterHandlers == 0:
		events = append(events,
			semantic.NewEvent(semantic.EventExceptionHandlingRemoved, id, loc,
				fmt.Sprintf("%d exception handler(s) removed", beforeHandlers)))
	case beforeHandlers > 0 && afterHandlers > 0 &&
		!stringSlicesEqual(bf.ExceptionHandlers, af.ExceptionHandlers):
		events = append(events,
			semantic.NewEvent(semantic.EventExceptionHandlingChanged, id, loc,
				fmt.Sprintf("handler shapes changed from [%s] to [%s]",
					strings.Join(bf.ExceptionHandlers, "; "),
					strings.Join(af.ExceptionHandlers, "; "))))
	}
	return events
}

// intMapsEqual compares two histograms, treating an absent key as a
// zero count.
func intMapsEqual(a, b map[string]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

// describeIntMapDiff renders per-key deltas in sorted key order.
func describeIntMapDiff(before, after map[string]int) string {
	keys := make(map[string]bool, len(before)+len(after))
	for k := range before {
		keys[k] = true
	}
	for k := range after {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var parts []string
	for _, k := range sorted {
		if before[k] != after[k] {
			parts = append(parts, fmt.Sprintf("%s %d->%d", k, before[k], after[k]))
		}
	}
	return strings.Join(parts, ", ")
}

// addedKeys returns keys of want absent from have, sorted.
func addedKeys(have, want map[string]int) []string {
	var out []string
	for k := range want {
		if _, ok := have[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
