package graph_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/graph"
)

var _ = Describe("Relationship", func() {
	var (
		g      *graph.Graph
		engine *mockEngine
		nodes  *mockNodeSource
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		engine = &mockEngine{}
		nodes = &mockNodeSource{}
		g = graph.New(engine, nodes)

		err := id.Init(1)
		Expect(err).NotTo(HaveOccurred())

		engine.describeEdgeFn = func(_ context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error) {
			return graph.EdgeInfo{Ref: edge, Start: "a", End: "b", Type: "follows"}, nil
		}
	})

	Describe("endpoint resolution", func() {
		It("should resolve the start node through the node source", func() {
			nodes.resolveNodeFn = func(_ context.Context, ref graph.NodeRef) (*graph.Node, error) {
				return &graph.Node{Ref: ref, Label: "user"}, nil
			}

			node, err := g.Relationship("e1").StartNode(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(node.Ref).To(Equal(graph.NodeRef("a")))
			Expect(node.Label).To(Equal("user"))
		})

		It("should resolve the end node through the node source", func() {
			node, err := g.Relationship("e1").EndNode(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(node.Ref).To(Equal(graph.NodeRef("b")))
		})

		It("should resolve the opposite endpoint from either side", func() {
			rel := g.Relationship("e1")

			other, err := rel.OtherNode(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Ref).To(Equal(graph.NodeRef("b")))

			other, err = rel.OtherNode(ctx, "b")
			Expect(err).NotTo(HaveOccurred())
			Expect(other.Ref).To(Equal(graph.NodeRef("a")))
		})

		It("should reject OtherNode relative to a non-endpoint", func() {
			_, err := g.Relationship("e1").OtherNode(ctx, "z")

			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})

		It("should surface a missing edge as an engine failure", func() {
			engine.describeEdgeFn = func(_ context.Context, edge graph.EdgeRef) (graph.EdgeInfo, error) {
				return graph.EdgeInfo{}, graph.ErrNotFound
			}

			_, err := g.Relationship("gone").StartNode(ctx)

			Expect(err).To(MatchError(graph.ErrEngine))
			Expect(err).To(MatchError(graph.ErrNotFound))
		})
	})

	Describe("Type", func() {
		It("should intern the edge's type into the graph's registry", func() {
			rel := g.Relationship("e1")

			token, err := rel.Type(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.Name()).To(Equal("follows"))

			interned, err := g.Types().Intern("follows")
			Expect(err).NotTo(HaveOccurred())
			Expect(token).To(BeIdenticalTo(interned))
		})
	})

	Describe("properties", func() {
		It("should return the stored value", func() {
			engine.edgePropertyFn = func(_ context.Context, _ graph.EdgeRef, key string) (any, bool, error) {
				if key == "since" {
					return 2021, true, nil
				}
				return nil, false, nil
			}

			value, err := g.Relationship("e1").Property(ctx, "since")

			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(2021))
		})

		It("should fail with ErrPropertyNotFound for an absent key", func() {
			_, err := g.Relationship("e1").Property(ctx, "missing")

			Expect(err).To(MatchError(graph.ErrPropertyNotFound))
		})

		It("should report presence without failing", func() {
			engine.edgePropertyFn = func(_ context.Context, _ graph.EdgeRef, key string) (any, bool, error) {
				return "x", key == "set", nil
			}

			rel := g.Relationship("e1")

			has, err := rel.HasProperty(ctx, "set")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeTrue())

			has, err = rel.HasProperty(ctx, "unset")
			Expect(err).NotTo(HaveOccurred())
			Expect(has).To(BeFalse())
		})

		It("should write through immediately", func() {
			var wroteKey string
			var wroteValue any
			engine.setEdgePropertyFn = func(_ context.Context, _ graph.EdgeRef, key string, value any) error {
				wroteKey = key
				wroteValue = value
				return nil
			}

			err := g.Relationship("e1").SetProperty(ctx, "since", 2021)

			Expect(err).NotTo(HaveOccurred())
			Expect(wroteKey).To(Equal("since"))
			Expect(wroteValue).To(Equal(2021))
			Expect(engine.beginCalls).To(BeZero())
		})

		It("should surface an engine rejection on write", func() {
			rejected := errors.Join(graph.ErrEngine, errors.New("value too large"))
			engine.setEdgePropertyFn = func(_ context.Context, _ graph.EdgeRef, _ string, _ any) error {
				return rejected
			}

			err := g.Relationship("e1").SetProperty(ctx, "bio", "…")

			Expect(err).To(MatchError(graph.ErrEngine))
		})
	})

	Describe("Delete", func() {
		It("should delete the edge and dispatch the event before commit", func() {
			var order []string
			var got graph.Event

			engine.deleteEdgeFn = func(_ context.Context, _ graph.EdgeRef) error {
				order = append(order, "delete")
				return nil
			}
			engine.commitFn = func(_ context.Context) error {
				order = append(order, "commit")
				return nil
			}
			nodes.resolveNodeFn = func(_ context.Context, ref graph.NodeRef) (*graph.Node, error) {
				return &graph.Node{Ref: ref, Label: "user"}, nil
			}
			g.Events().Subscribe("", func(_ context.Context, ev graph.Event) error {
				order = append(order, "event")
				got = ev
				return nil
			})

			err := g.Relationship("e1").Delete(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"delete", "event", "commit"}))
			Expect(got.Kind).To(Equal(graph.EventRelationshipDeleted))
			Expect(got.Node).To(Equal(graph.NodeRef("a")))
			Expect(got.Other).To(Equal(graph.NodeRef("b")))
			Expect(got.NodeLabel).To(Equal("user"))
			Expect(got.RelType).To(Equal("follows"))
			Expect(got.ID).NotTo(BeZero())
			Expect(engine.rollbackCalls).To(BeZero())
		})

		It("should roll back and emit nothing when the engine refuses", func() {
			boom := errors.New("edge is pinned")
			engine.deleteEdgeFn = func(_ context.Context, _ graph.EdgeRef) error {
				return boom
			}
			events := 0
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				events++
				return nil
			})

			err := g.Relationship("e1").Delete(ctx)

			Expect(err).To(MatchError(graph.ErrTxAborted))
			Expect(err).To(MatchError(boom))
			Expect(events).To(BeZero())
			Expect(engine.rollbackCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
		})

		It("should roll back when a listener fails", func() {
			deleted := 0
			engine.deleteEdgeFn = func(_ context.Context, _ graph.EdgeRef) error {
				deleted++
				return nil
			}
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				return errors.New("journal offline")
			})

			err := g.Relationship("e1").Delete(ctx)

			Expect(err).To(MatchError(graph.ErrTxAborted))
			Expect(deleted).To(Equal(1))
			Expect(engine.rollbackCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
		})

		It("should join an open transaction without settling it", func() {
			txCtx, err := engine.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(engine.beginCalls).To(Equal(1))

			err = g.Relationship("e1").Delete(txCtx)

			Expect(err).NotTo(HaveOccurred())
			Expect(engine.beginCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
			Expect(engine.rollbackCalls).To(BeZero())
		})
	})
})
