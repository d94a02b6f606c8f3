package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/svcs-dev/svcs/internal/errors"
	"github.com/svcs-dev/svcs/internal/semantic"
)

// EventFilter narrows QueryEvents. Zero values mean "no constraint".
// Patterns use SQL LIKE syntax.
type EventFilter struct {
	Branch        string
	AuthorPattern string
	EventTypes    []semantic.EventType
	NodePattern   string
	PathPattern   string
	Since         int64
	Until         int64
	MinConfidence *float64
	Layers        []semantic.Layer
	Limit         int
	Offset        int
	// OrderBy is "timestamp" (default) or "confidence".
	OrderBy string
	// Descending reverses the order.
	Descending bool
}

const eventColumns = `event_id, commit_hash, branch, event_type, node_id, location,
	details, layer, layer_description, confidence, reasoning, impact, created_at, author`

// QueryEvents returns event rows matching the filter.
func (s *Store) QueryEvents(ctx context.Context, f EventFilter) ([]semantic.Event, error) {
	const op = "store.QueryEvents"

	var where []string
	var args []any

	if f.Branch != "" {
		where = append(where, "branch = ?")
		args = append(args, f.Branch)
	}
	if f.AuthorPattern != "" {
		where = append(where, "author LIKE ?")
		args = append(args, f.AuthorPattern)
	}
	if len(f.EventTypes) > 0 {
		where = append(where, "event_type IN ("+placeholders(len(f.EventTypes))+")")
		for _, et := range f.EventTypes {
			args = append(args, string(et))
		}
	}
	if f.NodePattern != "" {
		where = append(where, "node_id LIKE ?")
		args = append(args, f.NodePattern)
	}
	if f.PathPattern != "" {
		where = append(where, "location LIKE ?")
		args = append(args, f.PathPattern)
	}
	if f.Since > 0 {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since)
	}
	if f.Until > 0 {
		where = append(where, "created_at <= ?")
		args = append(args, f.Until)
	}
	if f.MinConfidence != nil {
		where = append(where, "(confidence IS NULL OR confidence >= ?)")
		args = append(args, *f.MinConfidence)
	}
	if len(f.Layers) > 0 {
		where = append(where, "layer IN ("+placeholders(len(f.Layers))+")")
		for _, l := range f.Layers {
			args = append(args, string(l))
		}
	}

	query := "SELECT " + eventColumns + " FROM semantic_events"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	orderCol := "created_at"
	if f.OrderBy == "confidence" {
		orderCol = "confidence"
	}
	direction := "ASC"
	if f.Descending {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s, event_id %s", orderCol, direction, direction)

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreWrap(err, op, "query failed")
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForCommit returns a commit's events in insertion order.
func (s *Store) EventsForCommit(ctx context.Context, commitHash string) ([]semantic.Event, error) {
	const op = "store.EventsForCommit"

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM semantic_events WHERE commit_hash = ? ORDER BY event_id",
		commitHash)
	if err != nil {
		return nil, errors.StoreWrap(err, op, "query failed")
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EvolutionOf returns every event touching the given node, ordered by
// commit timestamp so the node's history reads chronologically.
func (s *Store) EvolutionOf(ctx context.Context, nodeID string, f EventFilter) ([]semantic.Event, error) {
	const op = "store.EvolutionOf"

	query := `
		SELECT e.event_id, e.commit_hash, e.branch, e.event_type, e.node_id,
			e.location, e.details, e.layer, e.layer_description, e.confidence,
			e.reasoning, e.impact, e.created_at, e.author
		FROM semantic_events e
		JOIN commits c ON c.commit_hash = e.commit_hash
		WHERE e.node_id = ?`
	args := []any{nodeID}

	if f.Branch != "" {
		query += " AND e.branch = ?"
		args = append(args, f.Branch)
	}
	if len(f.EventTypes) > 0 {
		query += " AND e.event_type IN (" + placeholders(len(f.EventTypes)) + ")"
		for _, et := range f.EventTypes {
			args = append(args, string(et))
		}
	}
	query += " ORDER BY c.timestamp, e.event_id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreWrap(err, op, "query failed")
	}
	defer rows.Close()
	return scanEvents(rows)
}

// BranchDiff returns events present on one branch but not the other,
// keyed by (event_type, node_id, details).
func (s *Store) BranchDiff(ctx context.Context, branch, otherBranch string) ([]semantic.Event, error) {
	const op = "store.BranchDiff"

	otherEvents, err := s.QueryEvents(ctx, EventFilter{Branch: otherBranch})
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to load comparison branch")
	}
	otherKeys := make(map[string]bool, len(otherEvents))
	for i := range otherEvents {
		otherKeys[branchDiffKey(&otherEvents[i])] = true
	}

	branchEvents, err := s.QueryEvents(ctx, EventFilter{Branch: branch})
	if err != nil {
		return nil, errors.StoreWrap(err, op, "failed to load branch")
	}

	var diff []semantic.Event
	for i := range branchEvents {
		if !otherKeys[branchDiffKey(&branchEvents[i])] {
			diff = append(diff, branchEvents[i])
		}
	}
	return diff, nil
}

func branchDiffKey(e *semantic.Event) string {
	return string(e.Type) + "\x1f" + e.NodeID + "\x1f" + e.Details
}

// Stats summarizes the store contents.
type Stats struct {
	Commits            int
	Events             int
	DistinctEventTypes int
	ByLayer            map[string]int
	ByAuthor           map[string]int
	ByEventType        map[string]int
	ByBranch           map[string]int
}

// Stats computes totals and distributions.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	const op = "store.Stats"

	out := &Stats{
		ByLayer:     make(map[string]int),
		ByAuthor:    make(map[string]int),
		ByEventType: make(map[string]int),
		ByBranch:    make(map[string]int),
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM commits").Scan(&out.Commits); err != nil {
		return nil, errors.StoreWrap(err, op, "failed to count commits")
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM semantic_events").Scan(&out.Events); err != nil {
		return nil, errors.StoreWrap(err, op, "failed to count events")
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT event_type) FROM semantic_events").Scan(&out.DistinctEventTypes); err != nil {
		return nil, errors.StoreWrap(err, op, "failed to count event types")
	}

	groupings := []struct {
		column string
		target map[string]int
	}{
		{"layer", out.ByLayer},
		{"author", out.ByAuthor},
		{"event_type", out.ByEventType},
		{"branch", out.ByBranch},
	}
	for _, g := range groupings {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+g.column+", COUNT(*) FROM semantic_events GROUP BY "+g.column)
		if err != nil {
			return nil, errors.StoreWrap(err, op, "failed to group by "+g.column)
		}
		for rows.Next() {
			var key string
			var count int
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, errors.StoreWrap(err, op, "failed to scan group row")
			}
			g.target[key] = count
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, errors.StoreWrap(err, op, "failed to iterate groups")
		}
	}
	return out, nil
}

func scanEvents(rows *sql.Rows) ([]semantic.Event, error) {
	const op = "store.scanEvents"

	var events []semantic.Event
	for rows.Next() {
		var e semantic.Event
		var confidence sql.NullFloat64
		err := rows.Scan(&e.ID, &e.CommitHash, &e.Branch, &e.Type, &e.NodeID,
			&e.Location, &e.Details, &e.Layer, &e.LayerDescription, &confidence,
			&e.Reasoning, &e.Impact, &e.CreatedAt, &e.Author)
		if err != nil {
			return nil, errors.StoreWrap(err, op, "failed to scan event")
		}
		if confidence.Valid {
			c := confidence.Float64
			e.Confidence = &c
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
