package graph_test

import (
	"context"
	"errors"
	"iter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/graph"
)

var _ = Describe("RelatedSet", func() {
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

		nodes.resolveNodeFn = func(_ context.Context, ref graph.NodeRef) (*graph.Node, error) {
			label := "user"
			if ref == "p1" || ref == "p2" {
				label = "post"
			}
			return &graph.Node{Ref: ref, Label: label}, nil
		}
	})

	Describe("construction", func() {
		It("should reject an empty type name", func() {
			_, err := g.Related("a", "")

			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})

		It("should reject a depth below one", func() {
			_, err := g.Related("a", "authored", graph.WithDepth(0))

			Expect(err).To(MatchError(graph.ErrInvalidArgument))
		})

		It("should intern the type into the graph's registry", func() {
			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			interned, err := g.Types().Intern("authored")
			Expect(err).NotTo(HaveOccurred())

			Expect(set.Type()).To(BeIdenticalTo(interned))
			Expect(set.Node()).To(Equal(graph.NodeRef("a")))
		})
	})

	Describe("New", func() {
		It("should create the edge and dispatch relationship.added before commit", func() {
			var order []string
			var got graph.Event

			engine.createEdgeFn = func(_ context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
				order = append(order, "create")
				return graph.EdgeInfo{Ref: "e9", Start: from, End: to, Type: typeName}, nil
			}
			engine.commitFn = func(_ context.Context) error {
				order = append(order, "commit")
				return nil
			}
			g.Events().Subscribe("", func(_ context.Context, ev graph.Event) error {
				order = append(order, "event")
				got = ev
				return nil
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			rel, err := set.New(ctx, "p1")

			Expect(err).NotTo(HaveOccurred())
			Expect(rel.Ref()).To(Equal(graph.EdgeRef("e9")))
			Expect(order).To(Equal([]string{"create", "event", "commit"}))
			Expect(got.Kind).To(Equal(graph.EventRelationshipAdded))
			Expect(got.Node).To(Equal(graph.NodeRef("a")))
			Expect(got.Other).To(Equal(graph.NodeRef("p1")))
			Expect(got.NodeLabel).To(Equal("user"))
			Expect(got.RelType).To(Equal("authored"))
			Expect(got.ID).NotTo(BeZero())
		})

		It("should abort and emit nothing when edge creation fails", func() {
			boom := errors.New("target node missing")
			engine.createEdgeFn = func(_ context.Context, _, _ graph.NodeRef, _ string) (graph.EdgeInfo, error) {
				return graph.EdgeInfo{}, boom
			}
			events := 0
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				events++
				return nil
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			rel, err := set.New(ctx, "p1")

			Expect(rel).To(BeNil())
			Expect(err).To(MatchError(graph.ErrTxAborted))
			Expect(err).To(MatchError(boom))
			Expect(events).To(BeZero())
			Expect(engine.rollbackCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
		})

		It("should abort when a listener fails", func() {
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				return errors.New("stream unavailable")
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			_, err = set.New(ctx, "p1")

			Expect(err).To(MatchError(graph.ErrTxAborted))
			Expect(engine.rollbackCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
		})

		It("should join an open transaction without settling it", func() {
			txCtx, err := engine.Begin(ctx)
			Expect(err).NotTo(HaveOccurred())

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			_, err = set.New(txCtx, "p1")

			Expect(err).NotTo(HaveOccurred())
			Expect(engine.beginCalls).To(Equal(1))
			Expect(engine.commitCalls).To(BeZero())
			Expect(engine.rollbackCalls).To(BeZero())
		})
	})

	Describe("Append", func() {
		It("should return the same set so calls chain", func() {
			created := 0
			engine.createEdgeFn = func(_ context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
				created++
				return graph.EdgeInfo{Ref: graph.EdgeRef("e" + to), Start: from, End: to, Type: typeName}, nil
			}
			var events []graph.Event
			g.Events().Subscribe("", func(_ context.Context, ev graph.Event) error {
				events = append(events, ev)
				return nil
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			chained, err := set.Append(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(chained).To(BeIdenticalTo(set))

			_, err = chained.Append(ctx, "p2")
			Expect(err).NotTo(HaveOccurred())

			Expect(created).To(Equal(2))
			Expect(events).To(HaveLen(2))
			Expect(events[0].Other).To(Equal(graph.NodeRef("p1")))
			Expect(events[1].Other).To(Equal(graph.NodeRef("p2")))
			for _, ev := range events {
				Expect(ev.Kind).To(Equal(graph.EventRelationshipAdded))
				Expect(ev.Node).To(Equal(graph.NodeRef("a")))
				Expect(ev.RelType).To(Equal("authored"))
			}
		})

		It("should run each chained call in its own transaction", func() {
			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			_, err = set.Append(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			_, err = set.Append(ctx, "p2")
			Expect(err).NotTo(HaveOccurred())

			Expect(engine.beginCalls).To(Equal(2))
			Expect(engine.commitCalls).To(Equal(2))
		})
	})

	Describe("endpoint label checks", func() {
		It("should create the edge when the far endpoint matches", func() {
			set, err := g.Related("a", "authored", graph.WithEndpointLabel("post"))
			Expect(err).NotTo(HaveOccurred())

			rel, err := set.New(ctx, "p1")

			Expect(err).NotTo(HaveOccurred())
			Expect(rel).NotTo(BeNil())
		})

		It("should reject a mismatched label before mutating", func() {
			created := 0
			engine.createEdgeFn = func(_ context.Context, from, to graph.NodeRef, typeName string) (graph.EdgeInfo, error) {
				created++
				return graph.EdgeInfo{Ref: "e1", Start: from, End: to, Type: typeName}, nil
			}
			events := 0
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				events++
				return nil
			})

			set, err := g.Related("a", "authored", graph.WithEndpointLabel("post"))
			Expect(err).NotTo(HaveOccurred())

			_, err = set.New(ctx, "b")

			Expect(err).To(MatchError(graph.ErrTxAborted))
			Expect(err).To(MatchError(graph.ErrInvalidArgument))
			Expect(created).To(BeZero())
			Expect(events).To(BeZero())
		})

		It("should stay inert with the zero label", func() {
			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			_, err = set.New(ctx, "b")

			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("event routing", func() {
		It("should route on the origin node's label", func() {
			var userEvents, postEvents, allEvents int
			g.Events().Subscribe("user", func(_ context.Context, _ graph.Event) error {
				userEvents++
				return nil
			})
			g.Events().Subscribe("post", func(_ context.Context, _ graph.Event) error {
				postEvents++
				return nil
			})
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				allEvents++
				return nil
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())
			_, err = set.New(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())

			Expect(userEvents).To(Equal(1))
			Expect(postEvents).To(BeZero())
			Expect(allEvents).To(Equal(1))
		})

		It("should deliver in registration order and stop delivering after unsubscribe", func() {
			var order []string
			g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				order = append(order, "first")
				return nil
			})
			cancel := g.Events().Subscribe("", func(_ context.Context, _ graph.Event) error {
				order = append(order, "second")
				return nil
			})

			set, err := g.Related("a", "authored")
			Expect(err).NotTo(HaveOccurred())

			_, err = set.New(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"first", "second"}))

			cancel()
			_, err = set.New(ctx, "p2")
			Expect(err).NotTo(HaveOccurred())
			Expect(order).To(Equal([]string{"first", "second", "first"}))
		})
	})

	Describe("Nodes", func() {
		It("should traverse with the set's depth and filter", func() {
			var gotDepth int
			engine.expandFn = func(_ context.Context, _ graph.NodeRef, _ string, maxDepth int) iter.Seq2[graph.NodeRef, error] {
				gotDepth = maxDepth
				return refSeq("b", "p1")
			}

			set, err := g.Related("a", "authored", graph.WithDepth(2), graph.WithFilter(func(n *graph.Node) bool {
				return n.Label == "post"
			}))
			Expect(err).NotTo(HaveOccurred())

			var refs []graph.NodeRef
			for node, err := range set.Nodes(ctx) {
				Expect(err).NotTo(HaveOccurred())
				refs = append(refs, node.Ref)
			}

			Expect(gotDepth).To(Equal(2))
			Expect(refs).To(Equal([]graph.NodeRef{"p1"}))
		})
	})
})
