package graph

import (
	"context"
	"fmt"
	"time"

	"lattice.dev/lattice/common/id"
)

// Relationship is a handle over one edge. Endpoints and type are read
// through the engine on every call, never cached, so a handle observes
// the edge's current state and fails once the edge is gone. After Delete
// the handle must not be used again.
type Relationship struct {
	graph *Graph
	ref   EdgeRef
}

// Ref returns the engine edge reference the handle wraps.
func (r *Relationship) Ref() EdgeRef {
	return r.ref
}

// Describe returns the current endpoints and type of the edge.
func (r *Relationship) Describe(ctx context.Context) (EdgeInfo, error) {
	info, err := r.graph.engine.DescribeEdge(ctx, r.ref)
	if err != nil {
		return EdgeInfo{}, fmt.Errorf("describing edge %s: %w", r.ref, err)
	}
	return info, nil
}

// StartNode resolves the edge's source node.
func (r *Relationship) StartNode(ctx context.Context) (*Node, error) {
	info, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	node, err := r.graph.nodes.ResolveNode(ctx, info.Start)
	if err != nil {
		return nil, fmt.Errorf("resolving start node: %w", err)
	}
	return node, nil
}

// EndNode resolves the edge's target node.
func (r *Relationship) EndNode(ctx context.Context) (*Node, error) {
	info, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	node, err := r.graph.nodes.ResolveNode(ctx, info.End)
	if err != nil {
		return nil, fmt.Errorf("resolving end node: %w", err)
	}
	return node, nil
}

// OtherNode resolves the endpoint opposite relativeTo, which must be one
// of the edge's endpoints.
func (r *Relationship) OtherNode(ctx context.Context, relativeTo NodeRef) (*Node, error) {
	info, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}

	var far NodeRef
	switch relativeTo {
	case info.Start:
		far = info.End
	case info.End:
		far = info.Start
	default:
		return nil, fmt.Errorf("%w: node %s is not an endpoint of edge %s", ErrInvalidArgument, relativeTo, r.ref)
	}

	node, err := r.graph.nodes.ResolveNode(ctx, far)
	if err != nil {
		return nil, fmt.Errorf("resolving other node: %w", err)
	}
	return node, nil
}

// Type returns the interned type token of the underlying edge.
func (r *Relationship) Type(ctx context.Context) (*RelType, error) {
	info, err := r.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return r.graph.types.Intern(info.Type)
}

// Property returns the value stored under key. An absent key fails with
// ErrPropertyNotFound.
func (r *Relationship) Property(ctx context.Context, key string) (any, error) {
	value, ok, err := r.graph.engine.EdgeProperty(ctx, r.ref, key)
	if err != nil {
		return nil, fmt.Errorf("reading property %q: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q on edge %s", ErrPropertyNotFound, key, r.ref)
	}
	return value, nil
}

// HasProperty reports whether key is set on the edge.
func (r *Relationship) HasProperty(ctx context.Context, key string) (bool, error) {
	_, ok, err := r.graph.engine.EdgeProperty(ctx, r.ref, key)
	if err != nil {
		return false, fmt.Errorf("reading property %q: %w", key, err)
	}
	return ok, nil
}

// SetProperty writes key through to the engine immediately.
func (r *Relationship) SetProperty(ctx context.Context, key string, value any) error {
	if err := r.graph.engine.SetEdgeProperty(ctx, r.ref, key, value); err != nil {
		return fmt.Errorf("writing property %q: %w", key, err)
	}
	return nil
}

// Delete removes the edge inside a transaction and dispatches a
// relationship.deleted event before commit. Endpoints and type are
// captured before the edge goes away; on any failure the transaction
// rolls back and no event is observed.
func (r *Relationship) Delete(ctx context.Context) error {
	return r.graph.withTx(ctx, func(ctx context.Context) error {
		info, err := r.graph.engine.DescribeEdge(ctx, r.ref)
		if err != nil {
			return fmt.Errorf("describing edge %s: %w", r.ref, err)
		}
		origin, err := r.graph.nodes.ResolveNode(ctx, info.Start)
		if err != nil {
			return fmt.Errorf("resolving start node: %w", err)
		}

		if err := r.graph.engine.DeleteEdge(ctx, r.ref); err != nil {
			return fmt.Errorf("deleting edge %s: %w", r.ref, err)
		}

		return r.graph.events.dispatch(ctx, Event{
			ID:        id.New(),
			Kind:      EventRelationshipDeleted,
			Node:      info.Start,
			Other:     info.End,
			NodeLabel: origin.Label,
			RelType:   info.Type,
			At:        time.Now().UTC(),
		})
	})
}
