package service

import (
	"context"
	"fmt"
	"time"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/metrics"
	"lattice.dev/lattice/internal/schema"
)

// GraphService is the orchestration surface the HTTP layer talks to. It
// layers schema checks over the graph core and records metrics for
// mutations and traversals.
type GraphService interface {
	CreateNode(ctx context.Context, label string, props map[string]any) (*graph.Node, error)
	GetNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error)

	Relationships(ctx context.Context, node graph.NodeRef, direction, typeName string) ([]graph.EdgeInfo, error)
	Related(ctx context.Context, node graph.NodeRef, typeName string, depth int) ([]*graph.Node, error)
	LookupRelated(ctx context.Context, node graph.NodeRef, typeName string, to graph.NodeRef) (*graph.EdgeInfo, error)
	Append(ctx context.Context, node graph.NodeRef, typeName string, others []graph.NodeRef) error

	DescribeRelationship(ctx context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error)
	DeleteRelationship(ctx context.Context, edge graph.EdgeRef) error
	RelationshipProperty(ctx context.Context, edge graph.EdgeRef, key string) (any, error)
	SetRelationshipProperty(ctx context.Context, edge graph.EdgeRef, key string, value any) error
}

type graphService struct {
	graph      *graph.Graph
	admin      graph.NodeAdmin
	schema     *schema.Schema
	engineName string
}

func NewGraphService(g *graph.Graph, admin graph.NodeAdmin, s *schema.Schema, engineName string) GraphService {
	if s == nil {
		s = &schema.Schema{}
	}
	return &graphService{graph: g, admin: admin, schema: s, engineName: engineName}
}

func (s *graphService) CreateNode(ctx context.Context, label string, props map[string]any) (*graph.Node, error) {
	ref, err := s.admin.CreateNode(ctx, label, props)
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}
	return s.graph.Node(ctx, ref)
}

func (s *graphService) GetNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	return s.graph.Node(ctx, ref)
}

// view narrows a relationship view by the request's direction and type
// strings. An unknown direction is an invalid argument.
func (s *graphService) view(node graph.NodeRef, direction, typeName string) (graph.View, error) {
	v := s.graph.Relationships(node)
	switch direction {
	case "", "any", "both":
		v = v.Both()
	case "outgoing", "out":
		v = v.Outgoing()
	case "incoming", "in":
		v = v.Incoming()
	default:
		return graph.View{}, fmt.Errorf("%w: unknown direction %q", graph.ErrInvalidArgument, direction)
	}
	if typeName != "" {
		v = v.OfType(typeName)
	}
	return v, nil
}

func (s *graphService) Relationships(ctx context.Context, node graph.NodeRef, direction, typeName string) ([]graph.EdgeInfo, error) {
	v, err := s.view(node, direction, typeName)
	if err != nil {
		return nil, err
	}

	var infos []graph.EdgeInfo
	for rel, err := range v.All(ctx) {
		if err != nil {
			return nil, err
		}
		info, err := rel.Describe(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (s *graphService) Related(ctx context.Context, node graph.NodeRef, typeName string, depth int) ([]*graph.Node, error) {
	if !s.schema.Allows(typeName) {
		return nil, fmt.Errorf("%w: relationship type %q is not declared", graph.ErrInvalidArgument, typeName)
	}
	if depth == 0 {
		depth = 1
	}

	set, err := s.graph.Related(node, typeName, graph.WithDepth(depth))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var nodes []*graph.Node
	for n, err := range set.Nodes(ctx) {
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	metrics.TraversalDuration.WithLabelValues(s.engineName).Observe(time.Since(start).Seconds())
	return nodes, nil
}

func (s *graphService) LookupRelated(ctx context.Context, node graph.NodeRef, typeName string, to graph.NodeRef) (*graph.EdgeInfo, error) {
	rel, err := s.graph.Relationships(node).Outgoing().OfType(typeName).Lookup(ctx, to)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, nil
	}
	info, err := rel.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *graphService) Append(ctx context.Context, node graph.NodeRef, typeName string, others []graph.NodeRef) error {
	if !s.schema.Allows(typeName) {
		return fmt.Errorf("%w: relationship type %q is not declared", graph.ErrInvalidArgument, typeName)
	}

	opts := []graph.Option{}
	if label := s.schema.EndpointLabel(typeName); label != "" {
		opts = append(opts, graph.WithEndpointLabel(label))
	}

	set, err := s.graph.Related(node, typeName, opts...)
	if err != nil {
		return err
	}
	for _, other := range others {
		if set, err = set.Append(ctx, other); err != nil {
			return err
		}
		metrics.RelationshipsCreated.WithLabelValues(typeName).Inc()
	}
	return nil
}

func (s *graphService) DescribeRelationship(ctx context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error) {
	return s.graph.Relationship(edge).Describe(ctx)
}

func (s *graphService) DeleteRelationship(ctx context.Context, edge graph.EdgeRef) error {
	rel := s.graph.Relationship(edge)
	info, err := rel.Describe(ctx)
	if err != nil {
		return err
	}
	if err := rel.Delete(ctx); err != nil {
		return err
	}
	metrics.RelationshipsDeleted.WithLabelValues(info.Type).Inc()
	return nil
}

func (s *graphService) RelationshipProperty(ctx context.Context, edge graph.EdgeRef, key string) (any, error) {
	return s.graph.Relationship(edge).Property(ctx, key)
}

func (s *graphService) SetRelationshipProperty(ctx context.Context, edge graph.EdgeRef, key string, value any) error {
	return s.graph.Relationship(edge).SetProperty(ctx, key, value)
}
