package graph

import (
	"context"
	"fmt"
	"iter"
	"time"

	"lattice.dev/lattice/common/id"
)

// RelatedSet binds a relationship type to one node: traversal over the
// type's outgoing edges plus transactional edge creation with event
// dispatch. Sets are immutable after construction.
type RelatedSet struct {
	graph         *Graph
	node          NodeRef
	typ           *RelType
	depth         int
	filter        Predicate
	endpointLabel string
}

// Related binds typeName to node. WithDepth and WithFilter shape the
// set's traversal; WithEndpointLabel adds a label check to New and
// Append.
func (g *Graph) Related(node NodeRef, typeName string, opts ...Option) (*RelatedSet, error) {
	rt, err := g.types.Intern(typeName)
	if err != nil {
		return nil, err
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &RelatedSet{
		graph:         g,
		node:          node,
		typ:           rt,
		depth:         o.depth,
		filter:        o.filter,
		endpointLabel: o.endpointLabel,
	}, nil
}

// Node returns the node the set is bound to.
func (s *RelatedSet) Node() NodeRef {
	return s.node
}

// Type returns the set's interned relationship type.
func (s *RelatedSet) Type() *RelType {
	return s.typ
}

// Nodes traverses the set's relationship type from its node, honoring
// the configured depth and filter.
func (s *RelatedSet) Nodes(ctx context.Context) iter.Seq2[*Node, error] {
	w := &Walk{graph: s.graph, start: s.node, typ: s.typ, depth: s.depth, filter: s.filter}
	return w.Nodes(ctx)
}

// New creates a directed edge from the set's node to other inside a
// transaction, dispatches relationship.added before commit, and returns
// the created edge's handle.
func (s *RelatedSet) New(ctx context.Context, other NodeRef) (*Relationship, error) {
	var rel *Relationship
	err := s.graph.withTx(ctx, func(ctx context.Context) error {
		var err error
		rel, err = s.create(ctx, other)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// Append creates an edge exactly as New does and returns the set itself,
// so creations chain left to right. Each chained call creates an
// independent edge from the bound node.
func (s *RelatedSet) Append(ctx context.Context, other NodeRef) (*RelatedSet, error) {
	err := s.graph.withTx(ctx, func(ctx context.Context) error {
		_, err := s.create(ctx, other)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// create runs inside the guard: endpoint label check, edge creation,
// event dispatch, in that order. Nothing mutates before the check passes.
func (s *RelatedSet) create(ctx context.Context, other NodeRef) (*Relationship, error) {
	origin, err := s.graph.nodes.ResolveNode(ctx, s.node)
	if err != nil {
		return nil, fmt.Errorf("resolving origin node %s: %w", s.node, err)
	}
	if s.endpointLabel != "" {
		far, err := s.graph.nodes.ResolveNode(ctx, other)
		if err != nil {
			return nil, fmt.Errorf("resolving endpoint node %s: %w", other, err)
		}
		if far.Label != s.endpointLabel {
			return nil, fmt.Errorf("%w: node %s has label %q, want %q", ErrInvalidArgument, other, far.Label, s.endpointLabel)
		}
	}

	info, err := s.graph.engine.CreateEdge(ctx, s.node, other, s.typ.Name())
	if err != nil {
		return nil, fmt.Errorf("creating %s edge: %w", s.typ.Name(), err)
	}

	ev := Event{
		ID:        id.New(),
		Kind:      EventRelationshipAdded,
		Node:      s.node,
		Other:     other,
		NodeLabel: origin.Label,
		RelType:   s.typ.Name(),
		At:        time.Now().UTC(),
	}
	if err := s.graph.events.dispatch(ctx, ev); err != nil {
		return nil, err
	}
	return s.graph.Relationship(info.Ref), nil
}
