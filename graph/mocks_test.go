package graph_test

import (
	"context"
	"iter"

	"lattice.dev/lattice/graph"
)

type txKeyType struct{}

var txKey txKeyType

type mockEngine struct {
	incidentEdgesFn   func(ctx context.Context, node graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error]
	createEdgeFn      func(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error)
	deleteEdgeFn      func(ctx context.Context, edge graph.EdgeRef) error
	describeEdgeFn    func(ctx context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error)
	edgePropertyFn    func(ctx context.Context, edge graph.EdgeRef, key string) (any, bool, error)
	setEdgePropertyFn func(ctx context.Context, edge graph.EdgeRef, key string, value any) error
	expandFn          func(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error]
	beginFn           func(ctx context.Context) (context.Context, error)
	commitFn          func(ctx context.Context) error
	rollbackFn        func(ctx context.Context) error

	beginCalls    int
	commitCalls   int
	rollbackCalls int
}

func (m *mockEngine) IncidentEdges(ctx context.Context, node graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
	if m.incidentEdgesFn != nil {
		return m.incidentEdgesFn(ctx, node, dir, typeName)
	}
	return edgeSeq()
}

func (m *mockEngine) CreateEdge(ctx context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
	if m.createEdgeFn != nil {
		return m.createEdgeFn(ctx, from, to, typeName)
	}
	return graph.EdgeInfo{Ref: "edge-1", Start: from, End: to, Type: typeName}, nil
}

func (m *mockEngine) DeleteEdge(ctx context.Context, edge graph.EdgeRef) error {
	if m.deleteEdgeFn != nil {
		return m.deleteEdgeFn(ctx, edge)
	}
	return nil
}

func (m *mockEngine) DescribeEdge(ctx context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error) {
	if m.describeEdgeFn != nil {
		return m.describeEdgeFn(ctx, edge)
	}
	return graph.EdgeInfo{Ref: edge}, nil
}

func (m *mockEngine) EdgeProperty(ctx context.Context, edge graph.EdgeRef, key string) (any, bool, error) {
	if m.edgePropertyFn != nil {
		return m.edgePropertyFn(ctx, edge, key)
	}
	return nil, false, nil
}

func (m *mockEngine) SetEdgeProperty(ctx context.Context, edge graph.EdgeRef, key string, value any) error {
	if m.setEdgePropertyFn != nil {
		return m.setEdgePropertyFn(ctx, edge, key, value)
	}
	return nil
}

func (m *mockEngine) Expand(ctx context.Context, start graph.NodeRef, typeName string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
	if m.expandFn != nil {
		return m.expandFn(ctx, start, typeName, maxDepth)
	}
	return refSeq()
}

func (m *mockEngine) Begin(ctx context.Context) (context.Context, error) {
	m.beginCalls++
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return context.WithValue(ctx, txKey, true), nil
}

func (m *mockEngine) Commit(ctx context.Context) error {
	m.commitCalls++
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	return nil
}

func (m *mockEngine) Rollback(ctx context.Context) error {
	m.rollbackCalls++
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	return nil
}

func (m *mockEngine) InTx(ctx context.Context) bool {
	return ctx.Value(txKey) != nil
}

type mockNodeSource struct {
	resolveNodeFn func(ctx context.Context, ref graph.NodeRef) (*graph.Node, error)

	resolveCalls int
}

func (m *mockNodeSource) ResolveNode(ctx context.Context, ref graph.NodeRef) (*graph.Node, error) {
	m.resolveCalls++
	if m.resolveNodeFn != nil {
		return m.resolveNodeFn(ctx, ref)
	}
	return &graph.Node{Ref: ref, Label: "node"}, nil
}

func edgeSeq(infos ...graph.EdgeInfo) iter.Seq2[graph.EdgeInfo, error] {
	return func(yield func(graph.EdgeInfo, error) bool) {
		for _, info := range infos {
			if !yield(info, nil) {
				return
			}
		}
	}
}

func refSeq(refs ...graph.NodeRef) iter.Seq2[graph.NodeRef, error] {
	return func(yield func(graph.NodeRef, error) bool) {
		for _, ref := range refs {
			if !yield(ref, nil) {
				return
			}
		}
	}
}
