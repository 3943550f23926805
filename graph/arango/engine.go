// Package arango implements graph.Engine on ArangoDB. Nodes live in one
// document collection and each declared relationship type gets its own
// edge collection, tied together by a named graph. All reads and writes
// go through AQL; stream transactions ride the context.
package arango

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/arangodb/go-driver/v2/connection"

	"lattice.dev/lattice/common"
	"lattice.dev/lattice/graph"
)

const (
	nodeCollection = "nodes"
	graphName      = "lattice"
	edgePrefix     = "rel_"

	// refSep keeps edge refs free of "/" so they survive URL paths.
	refSep = ":"
)

type Config struct {
	URL      string
	Username string
	Password string
	Database string

	// Types are the declared relationship types. Each gets an edge
	// collection; edges of undeclared types are rejected.
	Types []string
}

func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("arangodb URL is required")
	}
	if c.Username == "" {
		return fmt.Errorf("arangodb username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("arangodb database name is required")
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("arangodb engine requires declared relationship types")
	}
	return nil
}

// Engine satisfies graph.Engine, graph.NodeSource, and graph.NodeAdmin
// over one ArangoDB database.
type Engine struct {
	client arangodb.Client
	db     arangodb.Database
	cfg    Config

	// edgeCols maps declared type names to their edge collections.
	edgeCols map[string]string
	colNames []string
}

// New connects to ArangoDB. EnsureSchema must run before the engine is
// used.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("arangodb config: %w", err)
	}

	endpoint := connection.NewRoundRobinEndpoints([]string{cfg.URL})
	conn := connection.NewHttp2Connection(connection.DefaultHTTP2ConfigurationWrapper(endpoint, true))

	auth := connection.NewBasicAuth(cfg.Username, cfg.Password)
	if err := conn.SetAuthentication(auth); err != nil {
		return nil, fmt.Errorf("arangodb auth: %w", err)
	}

	e := &Engine{
		client:   arangodb.NewClient(conn),
		cfg:      cfg,
		edgeCols: make(map[string]string),
	}

	for _, typeName := range cfg.Types {
		col, err := edgeCollectionName(typeName)
		if err != nil {
			return nil, err
		}
		if _, ok := e.edgeCols[typeName]; ok {
			continue
		}
		for declared, existing := range e.edgeCols {
			if existing == col {
				return nil, fmt.Errorf("relationship types %q and %q collide on collection %s", declared, typeName, col)
			}
		}
		e.edgeCols[typeName] = col
		e.colNames = append(e.colNames, col)
	}

	return e, nil
}

func edgeCollectionName(typeName string) (string, error) {
	slug, err := common.Slugify(typeName, "")
	if err != nil {
		return "", fmt.Errorf("%w: relationship type %q has no usable name", graph.ErrInvalidArgument, typeName)
	}
	return edgePrefix + strings.ReplaceAll(slug, "-", "_"), nil
}

func (e *Engine) edgeCollection(typeName string) (string, error) {
	col, ok := e.edgeCols[typeName]
	if !ok {
		return "", fmt.Errorf("%w: relationship type %q is not declared", graph.ErrInvalidArgument, typeName)
	}
	return col, nil
}

// restriction renders the edgeCollections option value for a traversal:
// one collection when a type is selected, every declared one otherwise.
func (e *Engine) restriction(typeName string) (string, error) {
	cols := e.colNames
	if typeName != "" {
		col, err := e.edgeCollection(typeName)
		if err != nil {
			return "", err
		}
		cols = []string{col}
	}
	rendered, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("rendering edge collections: %w", err)
	}
	return string(rendered), nil
}

// nodeID and edgeID translate opaque refs into document _id values;
// refFromID and edgeRefFromID invert them.
func nodeID(ref graph.NodeRef) string {
	return nodeCollection + "/" + string(ref)
}

func nodeRefFromID(id string) graph.NodeRef {
	return graph.NodeRef(strings.TrimPrefix(id, nodeCollection+"/"))
}

func edgeID(ref graph.EdgeRef) (string, error) {
	col, key, ok := strings.Cut(string(ref), refSep)
	if !ok || col == "" || key == "" {
		return "", fmt.Errorf("%w: malformed edge ref %q", graph.ErrInvalidArgument, ref)
	}
	return col + "/" + key, nil
}

func edgeRefFromID(id string) graph.EdgeRef {
	return graph.EdgeRef(strings.Replace(id, "/", refSep, 1))
}

func engineErr(err error) error {
	return errors.Join(graph.ErrEngine, err)
}

// CreateNode inserts a node document and returns its key as the ref.
func (e *Engine) CreateNode(ctx context.Context, label string, props map[string]any) (graph.NodeRef, error) {
	if e.db == nil {
		return "", fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	if props == nil {
		props = map[string]any{}
	}

	query := `INSERT { label: @label, props: @props } INTO nodes RETURN NEW._id`
	ids, err := e.queryStrings(ctx, query, map[string]any{"label": label, "props": props})
	if err != nil {
		return "", fmt.Errorf("creating node: %w", err)
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("creating node: %w", graph.ErrEngine)
	}
	return nodeRefFromID(ids[0]), nil
}

// ResolveNode loads a node document by ref.
func (e *Engine) ResolveNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	if e.db == nil {
		return nil, fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}

	query := `
		LET n = DOCUMENT(@id)
		RETURN n == null ? null : { id: n._id, label: n.label, props: n.props }
	`
	cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{"id": nodeID(ref)},
	})
	if err != nil {
		return nil, fmt.Errorf("resolving node: %w", engineErr(err))
	}
	defer cursor.Close()

	var doc *struct {
		ID    string         `json:"id"`
		Label string         `json:"label"`
		Props map[string]any `json:"props"`
	}
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, fmt.Errorf("reading node document: %w", engineErr(err))
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: node %s", graph.ErrNotFound, ref)
	}
	return &graph.Node{Ref: nodeRefFromID(doc.ID), Label: doc.Label, Props: doc.Props}, nil
}

// CreateEdge inserts an edge into the collection of its type.
func (e *Engine) CreateEdge(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
	if e.db == nil {
		return graph.EdgeInfo{}, fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	col, err := e.edgeCollection(typeName)
	if err != nil {
		return graph.EdgeInfo{}, err
	}

	start := time.Now()
	query := `
		LET from = DOCUMENT(@from)
		LET to = DOCUMENT(@to)
		FILTER from != null AND to != null
		INSERT { _from: @from, _to: @to, type: @type, props: {} } INTO @@col
		RETURN NEW._id
	`
	ids, err := e.queryStrings(ctx, query, map[string]any{
		"from": nodeID(from),
		"to":   nodeID(to),
		"type": typeName,
		"@col": col,
	})
	if err != nil {
		return graph.EdgeInfo{}, fmt.Errorf("creating %s edge: %w", typeName, err)
	}
	if len(ids) == 0 {
		return graph.EdgeInfo{}, fmt.Errorf("creating %s edge: %w: node %s or %s", typeName, graph.ErrNotFound, from, to)
	}

	slog.DebugContext(ctx, "arangodb edge created",
		"type", typeName,
		"collection", col,
		"duration_ms", time.Since(start).Milliseconds())

	return graph.EdgeInfo{Ref: edgeRefFromID(ids[0]), Start: from, End: to, Type: typeName}, nil
}

// DeleteEdge removes an edge document.
func (e *Engine) DeleteEdge(ctx context.Context, ref graph.EdgeRef) error {
	if e.db == nil {
		return fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	id, err := edgeID(ref)
	if err != nil {
		return err
	}
	col, _, _ := strings.Cut(id, "/")

	query := `
		LET e = DOCUMENT(@id)
		FILTER e != null
		REMOVE e IN @@col
		RETURN OLD._id
	`
	ids, err := e.queryStrings(ctx, query, map[string]any{"id": id, "@col": col})
	if err != nil {
		return fmt.Errorf("deleting edge: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return nil
}

// DescribeEdge loads an edge's endpoints and type.
func (e *Engine) DescribeEdge(ctx context.Context, ref graph.EdgeRef) (graph.EdgeInfo, error) {
	if e.db == nil {
		return graph.EdgeInfo{}, fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	id, err := edgeID(ref)
	if err != nil {
		return graph.EdgeInfo{}, err
	}

	query := `
		LET e = DOCUMENT(@id)
		RETURN e == null ? null : { id: e._id, from: e._from, to: e._to, type: e.type }
	`
	cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{"id": id},
	})
	if err != nil {
		return graph.EdgeInfo{}, fmt.Errorf("describing edge: %w", engineErr(err))
	}
	defer cursor.Close()

	var doc *edgeDoc
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return graph.EdgeInfo{}, fmt.Errorf("reading edge document: %w", engineErr(err))
		}
	}
	if doc == nil {
		return graph.EdgeInfo{}, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return doc.info(), nil
}

// EdgeProperty reads one property of an edge.
func (e *Engine) EdgeProperty(ctx context.Context, ref graph.EdgeRef, key string) (any, bool, error) {
	if e.db == nil {
		return nil, false, fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	id, err := edgeID(ref)
	if err != nil {
		return nil, false, err
	}

	query := `
		LET e = DOCUMENT(@id)
		RETURN e == null ? null : { has: HAS(e.props, @key), value: e.props[@key] }
	`
	cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{
		BindVars: map[string]any{"id": id, "key": key},
	})
	if err != nil {
		return nil, false, fmt.Errorf("reading edge property: %w", engineErr(err))
	}
	defer cursor.Close()

	var doc *struct {
		Has   bool `json:"has"`
		Value any  `json:"value"`
	}
	if cursor.HasMore() {
		if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
			return nil, false, fmt.Errorf("reading property document: %w", engineErr(err))
		}
	}
	if doc == nil {
		return nil, false, fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return doc.Value, doc.Has, nil
}

// SetEdgeProperty merges one property into an edge's bag.
func (e *Engine) SetEdgeProperty(ctx context.Context, ref graph.EdgeRef, key string, value any) error {
	if e.db == nil {
		return fmt.Errorf("%w: database not initialized", graph.ErrEngine)
	}
	id, err := edgeID(ref)
	if err != nil {
		return err
	}
	col, _, _ := strings.Cut(id, "/")

	query := `
		LET e = DOCUMENT(@id)
		FILTER e != null
		UPDATE e WITH { props: { [@key]: @value } } IN @@col
		RETURN NEW._id
	`
	ids, err := e.queryStrings(ctx, query, map[string]any{
		"id":    id,
		"key":   key,
		"value": value,
		"@col":  col,
	})
	if err != nil {
		return fmt.Errorf("writing edge property: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: edge %s", graph.ErrNotFound, ref)
	}
	return nil
}

// IncidentEdges enumerates a node's edges through a depth-1 graph
// traversal restricted to the selected edge collections.
func (e *Engine) IncidentEdges(ctx context.Context, node graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
	return func(yield func(graph.EdgeInfo, error) bool) {
		if _, err := e.ResolveNode(ctx, node); err != nil {
			yield(graph.EdgeInfo{}, err)
			return
		}
		restriction, err := e.restriction(typeName)
		if err != nil {
			yield(graph.EdgeInfo{}, err)
			return
		}

		query := fmt.Sprintf(`
			FOR v, e IN 1..1 %s @start GRAPH %q
				OPTIONS { edgeCollections: %s }
				RETURN { id: e._id, from: e._from, to: e._to, type: e.type }
		`, aqlDirection(dir), graphName, restriction)

		cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]any{"start": nodeID(node)},
		})
		if err != nil {
			yield(graph.EdgeInfo{}, fmt.Errorf("querying incident edges: %w", engineErr(err)))
			return
		}
		defer cursor.Close()

		// ANY traversals can visit a self-loop from both ends.
		seen := make(map[string]bool)
		for cursor.HasMore() {
			var doc edgeDoc
			if _, err := cursor.ReadDocument(ctx, &doc); err != nil {
				yield(graph.EdgeInfo{}, fmt.Errorf("reading edge document: %w", engineErr(err)))
				return
			}
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			if !yield(doc.info(), nil) {
				return
			}
		}
	}
}

// Expand runs a bounded breadth-first graph traversal over one type's
// edge collection.
func (e *Engine) Expand(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		if _, err := e.ResolveNode(ctx, start); err != nil {
			yield("", err)
			return
		}
		restriction, err := e.restriction(typeName)
		if err != nil {
			yield("", err)
			return
		}

		began := time.Now()
		query := fmt.Sprintf(`
			FOR v IN 1..@depth OUTBOUND @start GRAPH %q
				OPTIONS { order: "bfs", uniqueVertices: "global", edgeCollections: %s }
				FILTER v != null AND v._id != @start
				RETURN v._id
		`, graphName, restriction)

		cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{
			BindVars: map[string]any{"start": nodeID(start), "depth": maxDepth},
		})
		if err != nil {
			yield("", fmt.Errorf("expanding from %s: %w", start, engineErr(err)))
			return
		}
		defer cursor.Close()

		count := 0
		for cursor.HasMore() {
			var id string
			if _, err := cursor.ReadDocument(ctx, &id); err != nil {
				yield("", fmt.Errorf("reading traversal document: %w", engineErr(err)))
				return
			}
			count++
			if !yield(nodeRefFromID(id), nil) {
				return
			}
		}

		slog.DebugContext(ctx, "arangodb traversal completed",
			"start", string(start),
			"type", typeName,
			"depth", maxDepth,
			"results", count,
			"duration_ms", time.Since(began).Milliseconds())
	}
}

type edgeDoc struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

func (d edgeDoc) info() graph.EdgeInfo {
	return graph.EdgeInfo{
		Ref:   edgeRefFromID(d.ID),
		Start: nodeRefFromID(d.From),
		End:   nodeRefFromID(d.To),
		Type:  d.Type,
	}
}

func aqlDirection(dir graph.Direction) string {
	switch dir {
	case graph.DirectionOutbound:
		return "OUTBOUND"
	case graph.DirectionInbound:
		return "INBOUND"
	default:
		return "ANY"
	}
}

// queryStrings runs a query returning string rows.
func (e *Engine) queryStrings(ctx context.Context, query string, bindVars map[string]any) ([]string, error) {
	cursor, err := e.queryable(ctx).Query(ctx, query, &arangodb.QueryOptions{BindVars: bindVars})
	if err != nil {
		return nil, engineErr(err)
	}
	defer cursor.Close()

	var rows []string
	for cursor.HasMore() {
		var row string
		if _, err := cursor.ReadDocument(ctx, &row); err != nil {
			return nil, engineErr(err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
