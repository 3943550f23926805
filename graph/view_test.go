package graph_test

import (
	"context"
	"errors"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/graph"
)

var _ = Describe("View", func() {
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
	})

	collect := func(seq iter.Seq2[*graph.Relationship, error]) ([]*graph.Relationship, error) {
		var rels []*graph.Relationship
		for rel, err := range seq {
			if err != nil {
				return nil, err
			}
			rels = append(rels, rel)
		}
		return rels, nil
	}

	Describe("direction selectors", func() {
		It("should default to both directions and no type filter", func() {
			var gotDir graph.Direction
			var gotType string
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
				gotDir = dir
				gotType = typeName
				return edgeSeq()
			}

			_, err := collect(g.Relationships("a").All(ctx))

			Expect(err).NotTo(HaveOccurred())
			Expect(gotDir).To(Equal(graph.DirectionAny))
			Expect(gotType).To(BeEmpty())
		})

		It("should pass the selected direction and type to the engine", func() {
			var gotDir graph.Direction
			var gotType string
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, dir graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
				gotDir = dir
				gotType = typeName
				return edgeSeq()
			}

			_, err := collect(g.Relationships("a").Outgoing().OfType("follows").All(ctx))

			Expect(err).NotTo(HaveOccurred())
			Expect(gotDir).To(Equal(graph.DirectionOutbound))
			Expect(gotType).To(Equal("follows"))
		})

		It("should return modified copies instead of mutating the receiver", func() {
			var dirs []graph.Direction
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, dir graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				dirs = append(dirs, dir)
				return edgeSeq()
			}

			base := g.Relationships("a")
			narrowed := base.Incoming()

			_, err := collect(narrowed.All(ctx))
			Expect(err).NotTo(HaveOccurred())
			_, err = collect(base.All(ctx))
			Expect(err).NotTo(HaveOccurred())

			Expect(dirs).To(Equal([]graph.Direction{graph.DirectionInbound, graph.DirectionAny}))
		})

		It("should not leak a type filter into sibling views", func() {
			var types []string
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, typeName string) iter.Seq2[graph.EdgeInfo, error] {
				types = append(types, typeName)
				return edgeSeq()
			}

			base := g.Relationships("a")
			typed := base.OfType("follows")
			other := base.OfType("authored")

			_, err := collect(typed.All(ctx))
			Expect(err).NotTo(HaveOccurred())
			_, err = collect(other.All(ctx))
			Expect(err).NotTo(HaveOccurred())

			Expect(types).To(Equal([]string{"follows", "authored"}))
		})
	})

	Describe("OfType with an empty name", func() {
		It("should surface ErrInvalidArgument from All", func() {
			_, err := collect(g.Relationships("a").OfType("").All(ctx))
			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})

		It("should surface ErrInvalidArgument from IsEmpty", func() {
			_, err := g.Relationships("a").OfType("").IsEmpty(ctx)
			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})

		It("should surface ErrInvalidArgument from Lookup", func() {
			_, err := g.Relationships("a").OfType("").Lookup(ctx, "b")
			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})
	})

	Describe("All", func() {
		It("should open a fresh enumeration on every range", func() {
			opened := 0
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				opened++
				return edgeSeq(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b", Type: "follows"})
			}

			view := g.Relationships("a")
			seq := view.All(ctx)

			first, err := collect(seq)
			Expect(err).NotTo(HaveOccurred())
			second, err := collect(seq)
			Expect(err).NotTo(HaveOccurred())

			Expect(opened).To(Equal(2))
			Expect(first).To(HaveLen(1))
			Expect(second).To(HaveLen(1))
		})

		It("should stop after yielding a mid-iteration engine failure", func() {
			boom := errors.New("cursor lost")
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return func(yield func(graph.EdgeInfo, error) bool) {
					if !yield(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"}, nil) {
						return
					}
					yield(graph.EdgeInfo{}, boom)
				}
			}

			var rels []*graph.Relationship
			var errs []error
			for rel, err := range g.Relationships("a").All(ctx) {
				if err != nil {
					errs = append(errs, err)
					continue
				}
				rels = append(rels, rel)
			}

			Expect(rels).To(HaveLen(1))
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(MatchError(boom))
		})

		It("should honor early termination by the consumer", func() {
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(
					graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"},
					graph.EdgeInfo{Ref: "e2", Start: "a", End: "c"},
				)
			}

			count := 0
			for _, err := range g.Relationships("a").All(ctx) {
				Expect(err).NotTo(HaveOccurred())
				count++
				break
			}

			Expect(count).To(Equal(1))
		})
	})

	Describe("Neighbors", func() {
		It("should project each edge to its far endpoint", func() {
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(
					graph.EdgeInfo{Ref: "e1", Start: "a", End: "b", Type: "follows"},
					graph.EdgeInfo{Ref: "e2", Start: "c", End: "a", Type: "follows"},
				)
			}

			var refs []graph.NodeRef
			for node, err := range g.Relationships("a").Neighbors(ctx) {
				Expect(err).NotTo(HaveOccurred())
				refs = append(refs, node.Ref)
			}

			Expect(refs).To(Equal([]graph.NodeRef{"b", "c"}))
		})

		It("should resolve neighbors through the node source", func() {
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"})
			}
			nodes.resolveNodeFn = func(_ context.Context, ref graph.NodeRef) (*graph.Node, error) {
				return &graph.Node{Ref: ref, Label: "user", Props: map[string]any{"name": "b"}}, nil
			}

			for node, err := range g.Relationships("a").Neighbors(ctx) {
				Expect(err).NotTo(HaveOccurred())
				Expect(node.Label).To(Equal("user"))
				Expect(node.Props).To(HaveKeyWithValue("name", "b"))
			}
			Expect(nodes.resolveCalls).To(Equal(1))
		})

		It("should stop after a node resolution failure", func() {
			boom := errors.New("node gone")
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"})
			}
			nodes.resolveNodeFn = func(_ context.Context, _ graph.NodeRef) (*graph.Node, error) {
				return nil, boom
			}

			var errs []error
			for _, err := range g.Relationships("a").Neighbors(ctx) {
				if err != nil {
					errs = append(errs, err)
				}
			}

			Expect(errs).To(HaveLen(1))
			Expect(errs[0]).To(MatchError(boom))
		})
	})

	Describe("IsEmpty", func() {
		It("should report true for a node with no edges", func() {
			empty, err := g.Relationships("loner").IsEmpty(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(empty).To(BeTrue())
		})

		It("should report false as soon as one edge exists", func() {
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"})
			}

			empty, err := g.Relationships("a").IsEmpty(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(empty).To(BeFalse())
		})

		It("should answer the same on repeated calls", func() {
			opened := 0
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				opened++
				return edgeSeq(graph.EdgeInfo{Ref: "e1", Start: "a", End: "b"})
			}

			view := g.Relationships("a")
			first, err := view.IsEmpty(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := view.IsEmpty(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(Equal(second))
			Expect(opened).To(Equal(2))
		})
	})

	Describe("Lookup", func() {
		BeforeEach(func() {
			engine.incidentEdgesFn = func(_ context.Context, _ graph.NodeRef, _ graph.Direction, _ string) iter.Seq2[graph.EdgeInfo, error] {
				return edgeSeq(
					graph.EdgeInfo{Ref: "e1", Start: "a", End: "b", Type: "follows"},
					graph.EdgeInfo{Ref: "e2", Start: "c", End: "a", Type: "follows"},
				)
			}
		})

		It("should return the first edge ending at the given node", func() {
			rel, err := g.Relationships("a").Lookup(ctx, "b")

			Expect(err).NotTo(HaveOccurred())
			Expect(rel).NotTo(BeNil())
			Expect(rel.Ref()).To(Equal(graph.EdgeRef("e1")))
		})

		It("should return nil without error when no edge matches", func() {
			rel, err := g.Relationships("a").Lookup(ctx, "z")

			Expect(err).NotTo(HaveOccurred())
			Expect(rel).To(BeNil())
		})

		It("should compare the literal end node, not the far endpoint", func() {
			rel, err := g.Relationships("a").Lookup(ctx, "c")

			Expect(err).NotTo(HaveOccurred())
			Expect(rel).To(BeNil())
		})
	})
})
