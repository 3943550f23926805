// Package graph is a typed relationship layer over pluggable storage
// engines. The engine owns nodes, edges, properties, and transactions;
// this package layers canonical relationship types, directional edge
// views, depth-bounded traversal, and transactional mutation with event
// dispatch on top of the Engine interface.
package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
)

// Sentinel errors.
var (
	// ErrInvalidArgument is returned for empty type names, non-positive
	// traversal depths, and endpoint label mismatches.
	ErrInvalidArgument = errors.New("graph: invalid argument")

	// ErrPropertyNotFound is returned when a property key is absent from
	// an edge.
	ErrPropertyNotFound = errors.New("graph: property not found")

	// ErrEngine is returned when the storage engine rejects or fails an
	// operation. Adapters wrap their driver errors so both ErrEngine and
	// the driver error match errors.Is.
	ErrEngine = errors.New("graph: engine failure")

	// ErrNotFound is the ErrEngine subcase for a missing node or edge.
	ErrNotFound = fmt.Errorf("%w: not found", ErrEngine)

	// ErrTxAborted is returned when a guarded mutation rolled back. It is
	// joined with the original cause, so both stay matchable.
	ErrTxAborted = errors.New("graph: transaction aborted")
)

// NodeRef is an opaque engine node identifier.
type NodeRef string

// EdgeRef is an opaque engine edge identifier.
type EdgeRef string

// Direction selects which incident edges of a node an enumeration covers.
type Direction int

const (
	// DirectionAny covers both outgoing and incoming edges.
	DirectionAny Direction = iota
	// DirectionOutbound covers edges leaving the node.
	DirectionOutbound
	// DirectionInbound covers edges arriving at the node.
	DirectionInbound
)

func (d Direction) String() string {
	switch d {
	case DirectionOutbound:
		return "outbound"
	case DirectionInbound:
		return "inbound"
	default:
		return "any"
	}
}

// Node is a resolved graph node: identity, label, and property bag.
type Node struct {
	Ref   NodeRef        `json:"ref"`
	Label string         `json:"label"`
	Props map[string]any `json:"props,omitempty"`
}

// EdgeInfo is the engine-level description of one edge.
type EdgeInfo struct {
	Ref   EdgeRef
	Start NodeRef
	End   NodeRef
	Type  string
}

// Engine is the storage surface the graph core consumes. Engines own
// nodes, edges, properties, and transactions; the core only sequences
// calls into them. Transactions ride the context: Begin returns a derived
// context that every call inside the transaction must use.
type Engine interface {
	// IncidentEdges enumerates the edges incident to node in the given
	// direction. An empty typeName matches every relationship type.
	IncidentEdges(ctx context.Context, node NodeRef, dir Direction, typeName string) iter.Seq2[EdgeInfo, error]

	// CreateEdge creates a directed edge from one node to another.
	CreateEdge(ctx context.Context, from, to NodeRef, typeName string) (EdgeInfo, error)

	// DeleteEdge removes an edge. Deleting a missing edge fails with an
	// error matching ErrNotFound.
	DeleteEdge(ctx context.Context, edge EdgeRef) error

	// DescribeEdge returns the endpoints and type of an edge.
	DescribeEdge(ctx context.Context, edge EdgeRef) (EdgeInfo, error)

	// EdgeProperty reads one property. ok is false when the key is absent.
	EdgeProperty(ctx context.Context, edge EdgeRef, key string) (value any, ok bool, err error)

	// SetEdgeProperty writes one property, overwriting any prior value.
	SetEdgeProperty(ctx context.Context, edge EdgeRef, key string, value any) error

	// Expand enumerates the nodes reachable from start over 1..maxDepth
	// outgoing edges of one type: start excluded, each node once at its
	// minimum depth, level order.
	Expand(ctx context.Context, start NodeRef, typeName string, maxDepth int) iter.Seq2[NodeRef, error]

	// Begin opens a transaction and returns the context carrying it.
	Begin(ctx context.Context) (context.Context, error)

	// Commit settles the transaction carried by ctx.
	Commit(ctx context.Context) error

	// Rollback discards the transaction carried by ctx.
	Rollback(ctx context.Context) error

	// InTx reports whether ctx carries an open transaction.
	InTx(ctx context.Context) bool
}

// NodeSource resolves opaque node references into usable nodes.
type NodeSource interface {
	ResolveNode(ctx context.Context, ref NodeRef) (*Node, error)
}

// NodeAdmin is the optional node-creation surface adapters expose. The
// graph core never calls it.
type NodeAdmin interface {
	CreateNode(ctx context.Context, label string, props map[string]any) (NodeRef, error)
}

// Graph wires an engine, a node source, a type registry, and an event
// dispatcher into one queryable surface.
type Graph struct {
	engine Engine
	nodes  NodeSource
	types  *TypeRegistry
	events *Dispatcher
}

// New creates a graph over the given engine and node source with a fresh
// type registry and event dispatcher.
func New(engine Engine, nodes NodeSource) *Graph {
	return &Graph{
		engine: engine,
		nodes:  nodes,
		types:  NewTypeRegistry(),
		events: NewDispatcher(),
	}
}

// Types returns the graph's relationship-type registry.
func (g *Graph) Types() *TypeRegistry {
	return g.types
}

// Events returns the graph's event dispatcher.
func (g *Graph) Events() *Dispatcher {
	return g.events
}

// Node resolves ref through the graph's node source.
func (g *Graph) Node(ctx context.Context, ref NodeRef) (*Node, error) {
	node, err := g.nodes.ResolveNode(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolving node %s: %w", ref, err)
	}
	return node, nil
}

// Relationship wraps an engine edge reference in a handle.
func (g *Graph) Relationship(ref EdgeRef) *Relationship {
	return &Relationship{graph: g, ref: ref}
}

// Relationships returns a view over node's incident edges, initially
// covering both directions and every relationship type.
func (g *Graph) Relationships(node NodeRef) View {
	return View{graph: g, node: node, dir: DirectionAny}
}
