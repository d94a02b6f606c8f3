package differ

import (
	"fmt"
	"sort"
	"strings"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// behavioral is layer 4: quantitative histograms over matched pair
// bodies, plus class member rollups.
func (d *Differ) behavioral(in Input, m *matchResult, _ []semantic.Event) []semantic.Event {
	degraded := (in.Before != nil && in.Before.Degraded) ||
		(in.After != nil && in.After.Degraded)

	var events []semantic.Event
	for _, pair := range m.Pairs {
		if pair.Before.IsClassLike() && pair.After.IsClassLike() {
			if degraded {
				continue
			}
			pairEvents := classRollup(in, pair)
			sortByRank(pairEvents)
			events = append(events, pairEvents...)
			continue
		}
		if !trustedFeatures(in, pair) {
			continue
		}
		if sameBody(pair) {
			continue
		}
		pairEvents := d.behavioralPair(in, pair)
		sortByRank(pairEvents)
		events = append(events, pairEvents...)
	}
	return events
}

func (d *Differ) behavioralPair(in Input, p matchedPair) []semantic.Event {
	bf, af := p.Before.Features, p.After.Features
	loc := pairLocation(in.Path, p)
	id := p.After.QualifiedName

	var events []semantic.Event
	emit := func(t semantic.EventType, details string) {
		events = append(events, semantic.NewEvent(t, id, loc, details))
	}

	if p.After.IsCallable() && bf.DecisionPoints != af.DecisionPoints {
		emit(semantic.EventFunctionComplexityChanged, fmt.Sprintf(
			"decision points %d -> %d", bf.DecisionPoints, af.DecisionPoints))
	}

	beforeScore := bf.FunctionalScore()
	afterScore := af.FunctionalScore()
	switch {
	case beforeScore == 0 && afterScore > 0:
		emit(semantic.EventFunctionalProgrammingAdopted, fmt.Sprintf(
			"functional constructs 0 -> %d", afterScore))
	case beforeScore > 0 && afterScore == 0:
		emit(semantic.EventFunctionalProgrammingRemoved, fmt.Sprintf(
			"functional constructs %d -> 0", beforeScore))
	case beforeScore != afterScore:
		emit(semantic.EventFunctionalProgrammingChanged, fmt.Sprintf(
			"functional constructs %d -> %d", beforeScore, afterScore))
	}

	histograms := []struct {
		event  semantic.EventType
		label  string
		before map[string]int
		after  map[string]int
	}{
		{semantic.EventAttributeAccessChanged, "attribute access", bf.AttributeAccesses, af.AttributeAccesses},
		{semantic.EventSubscriptAccessChanged, "subscript access", bf.SubscriptAccesses, af.SubscriptAccesses},
		{semantic.EventAssignmentPatternChanged, "assignment shapes", bf.Assignments, af.Assignments},
		{semantic.EventAugmentedAssignmentChanged, "augmented assignments", bf.AugmentedAssignments, af.AugmentedAssignments},
		{semantic.EventBinaryOperatorUsageChanged, "binary operators", bf.BinaryOps, af.BinaryOps},
		{semantic.EventUnaryOperatorUsageChanged, "unary operators", bf.UnaryOps, af.UnaryOps},
		{semantic.EventComparisonOperatorUsageChanged, "comparison operators", bf.ComparisonOps, af.ComparisonOps},
		{semantic.EventLogicalOperatorUsageChanged, "logical operators", bf.LogicalOps, af.LogicalOps},
	}
	for _, h := range histograms {
		if !intMapsEqual(h.before, h.after) {
			emit(h.event, fmt.Sprintf("%s changed: %s", h.label, describeIntMapDiff(h.before, h.after)))
		}
	}

	literals := []struct {
		event  semantic.EventType
		label  string
		before int
		after  int
	}{
		{semantic.EventStringLiteralUsageChanged, "string literals", bf.StringLiterals, af.StringLiterals},
		{semantic.EventNumericLiteralUsageChanged, "numeric literals", bf.NumericLiterals, af.NumericLiterals},
		{semantic.EventBooleanLiteralUsageChanged, "boolean literals", bf.BooleanLiterals, af.BooleanLiterals},
		{semantic.EventAssertionUsageChanged, "assertions", bf.Assertions, af.Assertions},
	}
	for _, l := range literals {
		if l.before != l.after {
			emit(l.event, fmt.Sprintf("%s %d -> %d", l.label, l.before, l.after))
		}
	}

	return events
}

// classRollup compares the direct member sets of a class-kind pair.
func classRollup(in Input, p matchedPair) []semantic.Event {
	beforeMethods, beforeProps := memberSets(in.Before, p.Before)
	afterMethods, afterProps := memberSets(in.After, p.After)

	loc := pairLocation(in.Path, p)
	id := p.After.QualifiedName

	var events []semantic.Event
	if !stringSlicesEqual(beforeMethods, afterMethods) {
		events = append(events, semantic.NewEvent(
			semantic.EventClassMethodsChanged, id, loc,
			fmt.Sprintf("methods changed from [%s] to [%s]",
				strings.Join(beforeMethods, ", "), strings.Join(afterMethods, ", "))))
	}
	if !stringSlicesEqual(beforeProps, afterProps) {
		events = append(events, semantic.NewEvent(
			semantic.EventClassAttributesChanged, id, loc,
			fmt.Sprintf("attributes changed from [%s] to [%s]",
				strings.Join(beforeProps, ", "), strings.Join(afterProps, ", "))))
	}
	return events
}

// memberSets returns the sorted direct method and property names of a
// class node.
func memberSets(tree *ir.IR, cls *ir.Node) (methods, props []string) {
	if tree == nil {
		return nil, nil
	}
	for name, n := range tree.Nodes {
		if n.Parent != cls.QualifiedName {
			continue
		}
		switch n.Kind {
		case ir.KindMethod:
			methods = append(methods, name)
		case ir.KindProperty, ir.KindConstant, ir.KindEnumCase:
			props = append(props, name)
		}
	}
	sort.Strings(methods)
	sort.Strings(props)
	return methods, props
}
