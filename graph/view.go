package graph

import (
	"context"
	"fmt"
	"iter"
)

// View is an immutable selection of one node's incident edges: a
// direction (both by default) and an optional relationship-type filter.
// Selectors return modified copies, so a view can be narrowed and shared
// without aliasing. An invalid filter argument is carried as a deferred
// error and surfaced by the next terminal operation.
type View struct {
	graph *Graph
	node  NodeRef
	dir   Direction
	typ   string
	err   error
}

// Outgoing narrows the view to edges leaving the node.
func (v View) Outgoing() View {
	v.dir = DirectionOutbound
	return v
}

// Incoming narrows the view to edges arriving at the node.
func (v View) Incoming() View {
	v.dir = DirectionInbound
	return v
}

// Both widens the view back to both directions.
func (v View) Both() View {
	v.dir = DirectionAny
	return v
}

// OfType narrows the view to one relationship type.
func (v View) OfType(name string) View {
	if name == "" {
		v.err = fmt.Errorf("%w: empty relationship type", ErrInvalidArgument)
		return v
	}
	v.typ = name
	return v
}

// Node returns the node the view is bound to.
func (v View) Node() NodeRef {
	return v.node
}

// All enumerates the selected edges. The sequence is lazy and
// restartable: each range opens a fresh engine enumeration honoring the
// view's current direction and type filter. Order is engine-native.
func (v View) All(ctx context.Context) iter.Seq2[*Relationship, error] {
	return func(yield func(*Relationship, error) bool) {
		if v.err != nil {
			yield(nil, v.err)
			return
		}
		for info, err := range v.graph.engine.IncidentEdges(ctx, v.node, v.dir, v.typ) {
			if err != nil {
				yield(nil, fmt.Errorf("enumerating edges of %s: %w", v.node, err))
				return
			}
			if !yield(v.graph.Relationship(info.Ref), nil) {
				return
			}
		}
	}
}

// Neighbors enumerates the far endpoint of each selected edge, relative
// to the view's node, resolved through the node source.
func (v View) Neighbors(ctx context.Context) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		if v.err != nil {
			yield(nil, v.err)
			return
		}
		for info, err := range v.graph.engine.IncidentEdges(ctx, v.node, v.dir, v.typ) {
			if err != nil {
				yield(nil, fmt.Errorf("enumerating edges of %s: %w", v.node, err))
				return
			}
			far := info.Start
			if info.Start == v.node {
				far = info.End
			}
			node, err := v.graph.nodes.ResolveNode(ctx, far)
			if err != nil {
				yield(nil, fmt.Errorf("resolving neighbor %s: %w", far, err))
				return
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

// IsEmpty reports whether the view currently selects no edges. It runs a
// fresh bounded enumeration and consumes nothing a later iteration
// depends on.
func (v View) IsEmpty(ctx context.Context) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	for _, err := range v.graph.engine.IncidentEdges(ctx, v.node, v.dir, v.typ) {
		if err != nil {
			return false, fmt.Errorf("enumerating edges of %s: %w", v.node, err)
		}
		return false, nil
	}
	return true, nil
}

// Lookup returns the first selected edge whose end node is other, or
// (nil, nil) when no such edge exists. Identity is reference equality on
// the edge's end node, not wrapper identity.
func (v View) Lookup(ctx context.Context, other NodeRef) (*Relationship, error) {
	if v.err != nil {
		return nil, v.err
	}
	for info, err := range v.graph.engine.IncidentEdges(ctx, v.node, v.dir, v.typ) {
		if err != nil {
			return nil, fmt.Errorf("enumerating edges of %s: %w", v.node, err)
		}
		if info.End == other {
			return v.graph.Relationship(info.Ref), nil
		}
	}
	return nil, nil
}
