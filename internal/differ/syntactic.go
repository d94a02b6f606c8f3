package differ

import (
	"fmt"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// syntactic is layer 2: declaration-level facets of matched pairs. A
// single edit may touch several facets; one event is emitted per facet
// that differs, ordered by the alphabet's declaration order.
func (d *Differ) syntactic(in Input, m *matchResult, _ []semantic.Event) []semantic.Event {
	var events []semantic.Event
	for _, pair := range m.Pairs {
		pairEvents := d.syntacticPair(in, pair)
		sortByRank(pairEvents)
		events = append(events, pairEvents...)
	}
	return events
}

func (d *Differ) syntacticPair(in Input, p matchedPair) []semantic.Event {
	before, after := p.Before, p.After
	loc := pairLocation(in.Path, p)
	id := after.QualifiedName

	var events []semantic.Event
	emit := func(t semantic.EventType, details string) {
		events = append(events, semantic.NewEvent(t, id, loc, details))
	}

	if before.IsCallable() && after.IsCallable() {
		if !paramsEqual(before.Signature, after.Signature) {
			emit(semantic.EventSignatureChanged, fmt.Sprintf(
				"signature changed from %s to %s", before.Signature, after.Signature))
		}

		beforeDefaults := before.Signature.DefaultCount()
		afterDefaults := after.Signature.DefaultCount()
		if afterDefaults > beforeDefaults {
			emit(semantic.EventDefaultParametersAdded, fmt.Sprintf(
				"default parameters %d -> %d", beforeDefaults, afterDefaults))
		} else if afterDefaults < beforeDefaults {
			emit(semantic.EventDefaultParametersRemoved, fmt.Sprintf(
				"default parameters %d -> %d", beforeDefaults, afterDefaults))
		}

		if before.Modifiers.Async != after.Modifiers.Async {
			if after.Modifiers.Async {
				emit(semantic.EventFunctionMadeAsync, "async modifier added")
			} else {
				emit(semantic.EventFunctionMadeSync, "async modifier removed")
			}
		}

		if returnType(before) != returnType(after) {
			emit(semantic.EventReturnTypeChanged, fmt.Sprintf(
				"return type changed from %s to %s",
				orNone(returnType(before)), orNone(returnType(after))))
		}
	}

	for _, name := range addedStrings(before.Decorators, after.Decorators) {
		emit(semantic.EventDecoratorAdded, fmt.Sprintf("decorator %s added", name))
	}
	for _, name := range addedStrings(after.Decorators, before.Decorators) {
		emit(semantic.EventDecoratorRemoved, fmt.Sprintf("decorator %s removed", name))
	}

	if before.IsClassLike() && after.IsClassLike() && !stringSlicesEqual(before.Bases, after.Bases) {
		emit(semantic.EventInheritanceChanged, fmt.Sprintf(
			"base classes changed from [%s] to [%s]",
			strings.Join(before.Bases, ", "), strings.Join(after.Bases, ", ")))
	}

	if before.Kind == ir.KindProperty && after.Kind == ir.KindProperty {
		if before.Modifiers.Typed != after.Modifiers.Typed ||
			before.Modifiers.Nullable != after.Modifiers.Nullable {
			emit(semantic.EventTypedPropertyChanged, "property type declaration changed")
		}
	}

	if before.Modifiers.Visibility != after.Modifiers.Visibility &&
		before.Modifiers.Visibility != "" && after.Modifiers.Visibility != "" {
		emit(semantic.EventVisibilityChanged, fmt.Sprintf(
			"visibility changed from %s to %s",
			before.Modifiers.Visibility, after.Modifiers.Visibility))
	}

	if before.Modifiers.Readonly != after.Modifiers.Readonly {
		emit(semantic.EventReadonlyToggled, readonlyDetails(after.Modifiers.Readonly))
	}

	if !stringSlicesEqual(before.Modifiers.UnionTypes, after.Modifiers.UnionTypes) {
		emit(semantic.EventUnionTypesChanged, fmt.Sprintf(
			"union types changed from [%s] to [%s]",
			strings.Join(before.Modifiers.UnionTypes, "|"),
			strings.Join(after.Modifiers.UnionTypes, "|")))
	}
	if !stringSlicesEqual(before.Modifiers.IntersectionTypes, after.Modifiers.IntersectionTypes) {
		emit(semantic.EventIntersectionTypesChanged, fmt.Sprintf(
			"intersection types changed from [%s] to [%s]",
			strings.Join(before.Modifiers.IntersectionTypes, "&"),
			strings.Join(after.Modifiers.IntersectionTypes, "&")))
	}

	return events
}

// paramsEqual compares only the parameter lists; return types are the
// return_type_changed facet.
func paramsEqual(a, b *ir.Signature) bool {
	if a == nil || b == nil {
		return (a == nil || len(a.Params) == 0) && (b == nil || len(b.Params) == 0)
	}
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}

func returnType(n *ir.Node) string {
	if n.Signature == nil {
		return ""
	}
	return n.Signature.ReturnType
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func readonlyDetails(nowReadonly bool) string {
	if nowReadonly {
		return "readonly modifier added"
	}
	return "readonly modifier removed"
}

// addedStrings returns elements of want missing from have, preserving
// want's order.
func addedStrings(have, want []string) []string {
	haveSet := toSet(have)
	var out []string
	for _, s := range want {
		if !haveSet[s] {
			out = append(out, s)
		}
	}
	return out
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
