package differ

import (
	"fmt"

	"github.com/svcs-dev/svcs/internal/ir"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// structural is layer 1: file and node presence plus module dependency
// membership.
func (d *Differ) structural(in Input, m *matchResult, _ []semantic.Event) []semantic.Event {
	var events []semantic.Event

	fileID := semantic.FileNodeID(in.Path)
	if m.fileAdded {
		events = append(events, semantic.NewEvent(
			semantic.EventFileAdded, fileID, in.Path, "file created"))
	}
	if m.fileRemoved {
		events = append(events, semantic.NewEvent(
			semantic.EventFileRemoved, fileID, in.Path, "file deleted"))
	}

	for _, n := range m.Added {
		events = append(events, semantic.NewEvent(
			semantic.EventNodeAdded, n.QualifiedName, nodeLocation(in.Path, n),
			fmt.Sprintf("%s %s added", n.Kind, n.QualifiedName)))
	}
	for _, n := range m.Removed {
		events = append(events, semantic.NewEvent(
			semantic.EventNodeRemoved, n.QualifiedName, nodeLocation(in.Path, n),
			fmt.Sprintf("%s %s removed", n.Kind, n.QualifiedName)))
	}

	events = append(events, d.dependencyDiff(in)...)
	return events
}

// dependencyDiff compares the module nodes' import sets.
func (d *Differ) dependencyDiff(in Input) []semantic.Event {
	var beforeModule, afterModule *ir.Node
	if in.Before != nil {
		beforeModule = in.Before.Module()
	}
	if in.After != nil {
		afterModule = in.After.Module()
	}

	var beforeDeps, afterDeps []string
	moduleID := semantic.FileNodeID(in.Path)
	if beforeModule != nil {
		beforeDeps = beforeModule.Dependencies
		moduleID = beforeModule.QualifiedName
	}
	if afterModule != nil {
		afterDeps = afterModule.Dependencies
		moduleID = afterModule.QualifiedName
	}

	var events []semantic.Event
	beforeSet := toSet(beforeDeps)
	afterSet := toSet(afterDeps)

	for _, dep := range afterDeps {
		if !beforeSet[dep] {
			events = append(events, semantic.NewEvent(
				semantic.EventDependencyAdded, moduleID, in.Path,
				fmt.Sprintf("dependency %s added", dep)))
		}
	}
	for _, dep := range beforeDeps {
		if !afterSet[dep] {
			events = append(events, semantic.NewEvent(
				semantic.EventDependencyRemoved, moduleID, in.Path,
				fmt.Sprintf("dependency %s removed", dep)))
		}
	}
	return events
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
