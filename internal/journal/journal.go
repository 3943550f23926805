// Package journal persists graph events and webhook subscriptions in
// Postgres. The event journal is an at-least-once observer of the graph:
// rows are written before the graph engine commits and carry the event's
// snowflake id so downstream consumers can dedup.
package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lattice.dev/lattice/graph"
)

var ErrNotFound = errors.New("journal: not found")

// Querier is the query surface shared by pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore reads and writes the graph_events table.
type EventStore struct {
	q Querier
}

func NewEventStore(q Querier) *EventStore {
	return &EventStore{q: q}
}

// Append inserts one event. Replaying an already-journaled event id is
// a no-op, which keeps retried dispatches idempotent.
func (s *EventStore) Append(ctx context.Context, ev graph.Event) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO graph_events (id, kind, node_ref, other_ref, node_label, rel_type, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, ev.ID, string(ev.Kind), string(ev.Node), string(ev.Other), ev.NodeLabel, ev.RelType, ev.At)
	if err != nil {
		return fmt.Errorf("appending event %d: %w", ev.ID, err)
	}
	return nil
}

// ListRecent returns the newest events, newest first.
func (s *EventStore) ListRecent(ctx context.Context, limit int32) ([]graph.Event, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, kind, node_ref, other_ref, node_label, rel_type, occurred_at
		FROM graph_events
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListByNode returns the newest events originating at node, newest
// first.
func (s *EventStore) ListByNode(ctx context.Context, node graph.NodeRef, limit int32) ([]graph.Event, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, kind, node_ref, other_ref, node_label, rel_type, occurred_at
		FROM graph_events
		WHERE node_ref = $1
		ORDER BY id DESC
		LIMIT $2
	`, string(node), limit)
	if err != nil {
		return nil, fmt.Errorf("listing events for node %s: %w", node, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]graph.Event, error) {
	var events []graph.Event
	for rows.Next() {
		var (
			ev          graph.Event
			kind        string
			node, other string
		)
		if err := rows.Scan(&ev.ID, &kind, &node, &other, &ev.NodeLabel, &ev.RelType, &ev.At); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		ev.Kind = graph.EventKind(kind)
		ev.Node = graph.NodeRef(node)
		ev.Other = graph.NodeRef(other)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading event rows: %w", err)
	}
	return events, nil
}
