// Package sqlite implements graph.Engine on an embedded SQLite
// database via the pure-Go modernc driver. Nodes and edges live in two
// tables with JSON property bags; Expand is a recursive CTE; SQL
// transactions ride the context.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"lattice.dev/lattice/graph"
)

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS nodes (
		ref   TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		props TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		ref       TEXT PRIMARY KEY,
		start_ref TEXT NOT NULL REFERENCES nodes(ref),
		end_ref   TEXT NOT NULL REFERENCES nodes(ref),
		rel_type  TEXT NOT NULL,
		props     TEXT NOT NULL DEFAULT '{}',
		seq       INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_start ON edges(start_ref, rel_type, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_end ON edges(end_ref, rel_type, seq)`,
}

type Config struct {
	// Path is the database file. ":memory:" opens a throwaway database.
	Path string
}

func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}

// Engine satisfies graph.Engine, graph.NodeSource, and graph.NodeAdmin
// over one SQLite database file.
type Engine struct {
	db *sql.DB
}

// New opens (creating if needed) the database and applies the schema.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sqlite config: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between the pool's connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &Engine{db: db}, nil
}

// Close closes the underlying database.
func (e *Engine) Close() error {
	return e.db.Close()
}

func engineErr(err error) error {
	return errors.Join(graph.ErrEngine, err)
}

type txKey struct{}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querier is the statement surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (e *Engine) queryable(ctx context.Context) querier {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return e.db
}

// Begin opens a SQL transaction carried by the returned context.
func (e *Engine) Begin(ctx context.Context) (context.Context, error) {
	if e.InTx(ctx) {
		return ctx, fmt.Errorf("%w: transaction already open", graph.ErrEngine)
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return ctx, engineErr(fmt.Errorf("beginning transaction: %w", err))
	}
	return context.WithValue(ctx, txKey{}, tx), nil
}

// Commit settles the transaction carried by ctx.
func (e *Engine) Commit(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	if err := tx.Commit(); err != nil {
		return engineErr(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

// Rollback discards the transaction carried by ctx.
func (e *Engine) Rollback(ctx context.Context) error {
	tx := txFrom(ctx)
	if tx == nil {
		return fmt.Errorf("%w: no open transaction", graph.ErrEngine)
	}
	if err := tx.Rollback(); err != nil {
		return engineErr(fmt.Errorf("rolling back transaction: %w", err))
	}
	return nil
}

// InTx reports whether ctx carries an open transaction.
func (e *Engine) InTx(ctx context.Context) bool {
	return txFrom(ctx) != nil
}

// CreateNode inserts a node row and returns its generated ref.
func (e *Engine) CreateNode(ctx context.Context, label string, props map[string]any) (graph.NodeRef, error) {
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", engineErr(fmt.Errorf("encoding node properties: %w", err))
	}

	ref := uuid.NewString()
	_, err = e.queryable(ctx).ExecContext(ctx,
		`INSERT INTO nodes (ref, label, props) VALUES (?, ?, ?)`,
		ref, label, string(raw),
	)
	if err != nil {
		return "", engineErr(fmt.Errorf("inserting node: %w", err))
	}
	return graph.NodeRef(ref), nil
}

// ResolveNode loads a node row into a graph.Node.
func (e *Engine) ResolveNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	var label, raw string
	err := e.queryable(ctx).QueryRowContext(ctx,
		`SELECT label, props FROM nodes WHERE ref = ?`, string(ref),
	).Scan(&label, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: node %s", graph.ErrNotFound, ref)
	}
	if err != nil {
		return nil, engineErr(fmt.Errorf("loading node %s: %w", ref, err))
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, engineErr(fmt.Errorf("decoding node properties: %w", err))
	}
	return &graph.Node{Ref: ref, Label: label, Props: props}, nil
}

// CreateEdge inserts an edge row. Both endpoints must exist; foreign
// keys reject dangling refs.
func (e *Engine) CreateEdge(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
	ref := uuid.NewString()
	_, err := e.queryable(ctx).ExecContext(ctx,
		`INSERT INTO edges (ref, start_ref, end_ref, rel_type, props, seq)
		 VALUES (?, ?, ?, ?, '{}', (SELECT COALESCE(MAX(seq), 0) + 1 FROM edges))`,
		ref, string(from), string(to), typeName,
	)
	if err != nil {
		return graph.EdgeInfo{}, engineErr(fmt.Errorf("inserting edge: %w", err))
	}
	return graph.EdgeInfo{Ref: graph.EdgeRef(ref), Start: from, End: to, Type: typeName}, nil
}

// DescribeEdge loads an edge row's endpoints and type.
func (e *Engine) DescribeEdge(ctx context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error) {
	var start, end, typ string
	err := e.queryable(ctx).QueryRowContext(ctx,
		`SELECT start_ref, end_ref, rel_type FROM edges WHERE ref = ?`, string(edge),
	).Scan(&start, &end, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return graph.EdgeInfo{}, fmt.Errorf("%w: edge %s", graph.ErrNotFound, edge)
	}
	if err != nil {
		return graph.EdgeInfo{}, engineErr(fmt.Errorf("loading edge %s: %w", edge, err))
	}
	return graph.EdgeInfo{
		Ref:   edge,
		Start: graph.NodeRef(start),
		End:   graph.NodeRef(end),
		Type:  typ,
	}, nil
}

// DeleteEdge removes an edge row.
func (e *Engine) DeleteEdge(ctx context.Context, edge graph.EdgeRef) error {
	res, err := e.queryable(ctx).ExecContext(ctx,
		`DELETE FROM edges WHERE ref = ?`, string(edge),
	)
	if err != nil {
		return engineErr(fmt.Errorf("deleting edge %s: %w", edge, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return engineErr(err)
	}
	if n == 0 {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, edge)
	}
	return nil
}

// EdgeProperty reads one key out of the edge's JSON property bag.
func (e *Engine) EdgeProperty(ctx context.Context, edge graph.EdgeRef, key string) (any, bool, error) {
	props, err := e.edgeProps(ctx, edge)
	if err != nil {
		return nil, false, err
	}
	value, ok := props[key]
	return value, ok, nil
}

// SetEdgeProperty rewrites the edge's JSON property bag with key set.
// Values JSON cannot carry (channels, funcs) surface as rejections.
func (e *Engine) SetEdgeProperty(ctx context.Context, edge graph.EdgeRef, key string, value any) error {
	props, err := e.edgeProps(ctx, edge)
	if err != nil {
		return err
	}
	props[key] = value

	raw, err := json.Marshal(props)
	if err != nil {
		return engineErr(fmt.Errorf("encoding edge properties: %w", err))
	}
	_, err = e.queryable(ctx).ExecContext(ctx,
		`UPDATE edges SET props = ? WHERE ref = ?`, string(raw), string(edge),
	)
	if err != nil {
		return engineErr(fmt.Errorf("updating edge %s: %w", edge, err))
	}
	return nil
}

func (e *Engine) edgeProps(ctx context.Context, edge graph.EdgeRef) (map[string]any, error) {
	var raw string
	err := e.queryable(ctx).QueryRowContext(ctx,
		`SELECT props FROM edges WHERE ref = ?`, string(edge),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: edge %s", graph.ErrNotFound, edge)
	}
	if err != nil {
		return nil, engineErr(fmt.Errorf("loading edge %s: %w", edge, err))
	}

	var props map[string]any
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, engineErr(fmt.Errorf("decoding edge properties: %w", err))
	}
	if props == nil {
		props = map[string]any{}
	}
	return props, nil
}

// IncidentEdges enumerates a node's edges in insertion order.
func (e *Engine) IncidentEdges(ctx context.Context, node graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
	var where string
	args := []any{}
	switch dir {
	case graph.DirectionOutbound:
		where = "start_ref = ?"
		args = append(args, string(node))
	case graph.DirectionInbound:
		where = "end_ref = ?"
		args = append(args, string(node))
	default:
		where = "(start_ref = ? OR end_ref = ?)"
		args = append(args, string(node), string(node))
	}
	if typeName != "" {
		where += " AND rel_type = ?"
		args = append(args, typeName)
	}

	query := `SELECT ref, start_ref, end_ref, rel_type FROM edges WHERE ` + where + ` ORDER BY seq`

	return func(yield func(graph.EdgeInfo, error) bool) {
		rows, err := e.queryable(ctx).QueryContext(ctx, query, args...)
		if err != nil {
			yield(graph.EdgeInfo{}, engineErr(fmt.Errorf("enumerating edges: %w", err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var ref, start, end, typ string
			if err := rows.Scan(&ref, &start, &end, &typ); err != nil {
				yield(graph.EdgeInfo{}, engineErr(err))
				return
			}
			info := graph.EdgeInfo{
				Ref:   graph.EdgeRef(ref),
				Start: graph.NodeRef(start),
				End:   graph.NodeRef(end),
				Type:  typ,
			}
			if !yield(info, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(graph.EdgeInfo{}, engineErr(err))
		}
	}
}

// Expand walks 1..maxDepth outgoing hops of one type with a recursive
// CTE: start excluded, each node grouped at its minimum depth, level
// order with insertion order inside a level.
func (e *Engine) Expand(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
	query := `
		WITH RECURSIVE frontier(ref, depth, seq) AS (
			SELECT ?, 0, 0
			UNION ALL
			SELECT e.end_ref, f.depth + 1, e.seq
			FROM frontier f
			JOIN edges e ON e.start_ref = f.ref AND e.rel_type = ?
			WHERE f.depth < ?
		)
		SELECT ref, MIN(depth) AS d, MIN(seq) AS s
		FROM frontier
		WHERE ref <> ?
		GROUP BY ref
		ORDER BY d, s
	`

	return func(yield func(graph.NodeRef, error) bool) {
		rows, err := e.queryable(ctx).QueryContext(ctx, query,
			string(start), typeName, maxDepth, string(start))
		if err != nil {
			yield("", engineErr(fmt.Errorf("expanding from %s: %w", start, err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var ref string
			var depth, seq int
			if err := rows.Scan(&ref, &depth, &seq); err != nil {
				yield("", engineErr(err))
				return
			}
			if !yield(graph.NodeRef(ref), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", engineErr(err))
		}
	}
}
