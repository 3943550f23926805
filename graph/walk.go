package graph

import (
	"context"
	"fmt"
	"iter"
)

// Predicate reports whether a resolved node should be yielded by a
// traversal. It filters output only: rejected nodes still expand.
type Predicate func(*Node) bool

// Walk is a depth-bounded breadth-first traversal over outgoing edges of
// one relationship type.
type Walk struct {
	graph  *Graph
	start  NodeRef
	typ    *RelType
	depth  int
	filter Predicate
}

// Walk builds a traversal from start over outgoing edges of typeName.
// WithDepth bounds the traversal (default 1 hop) and WithFilter narrows
// the yielded nodes. Endpoint labels do not apply to walks.
func (g *Graph) Walk(start NodeRef, typeName string, opts ...Option) (*Walk, error) {
	rt, err := g.types.Intern(typeName)
	if err != nil {
		return nil, err
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.endpointLabel != "" {
		return nil, fmt.Errorf("%w: endpoint label does not apply to a walk", ErrInvalidArgument)
	}
	return &Walk{graph: g, start: start, typ: rt, depth: o.depth, filter: o.filter}, nil
}

// Type returns the walk's interned relationship type.
func (w *Walk) Type() *RelType {
	return w.typ
}

// Depth returns the walk's depth bound.
func (w *Walk) Depth() int {
	return w.depth
}

// Nodes yields the nodes reachable from the start over 1..depth outgoing
// edges of the walk's type: breadth-first, start excluded, each node once
// at its minimum depth. Nodes found at the depth bound are yielded but
// not expanded. Each yielded node is resolved through the node source
// before the filter sees it; sibling order is engine-native.
func (w *Walk) Nodes(ctx context.Context) iter.Seq2[*Node, error] {
	return func(yield func(*Node, error) bool) {
		for ref, err := range w.graph.engine.Expand(ctx, w.start, w.typ.Name(), w.depth) {
			if err != nil {
				yield(nil, fmt.Errorf("expanding from %s: %w", w.start, err))
				return
			}
			node, err := w.graph.nodes.ResolveNode(ctx, ref)
			if err != nil {
				yield(nil, fmt.Errorf("resolving node %s: %w", ref, err))
				return
			}
			if w.filter != nil && !w.filter(node) {
				continue
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}
