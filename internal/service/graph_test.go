package service_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/common/id"
	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/graph/memory"
	"lattice.dev/lattice/internal/schema"
	"lattice.dev/lattice/internal/service"
)

var _ = Describe("GraphService", func() {
	var (
		ctx    context.Context
		engine *memory.Engine
		g      *graph.Graph
		svc    service.GraphService
	)

	declared := `
relationships:
  - type: authored
    from: user
    to: post
`

	newNode := func(label string) graph.NodeRef {
		ref, err := engine.CreateNode(ctx, label, nil)
		Expect(err).NotTo(HaveOccurred())
		return ref
	}

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		engine = memory.New()
		g = graph.New(engine, engine)

		s, err := schema.Parse([]byte(declared))
		Expect(err).NotTo(HaveOccurred())
		svc = service.NewGraphService(g, engine, s, "memory")
	})

	It("creates and resolves nodes", func() {
		node, err := svc.CreateNode(ctx, "user", map[string]any{"name": "ada"})
		Expect(err).NotTo(HaveOccurred())
		Expect(node.Label).To(Equal("user"))

		got, err := svc.GetNode(ctx, node.Ref)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Props).To(HaveKeyWithValue("name", "ada"))
	})

	It("appends relationships and lists them by direction", func() {
		user := newNode("user")
		post := newNode("post")

		Expect(svc.Append(ctx, user, "authored", []graph.NodeRef{post})).To(Succeed())

		infos, err := svc.Relationships(ctx, user, "outgoing", "authored")
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(HaveLen(1))
		Expect(infos[0].End).To(Equal(post))

		infos, err = svc.Relationships(ctx, user, "incoming", "authored")
		Expect(err).NotTo(HaveOccurred())
		Expect(infos).To(BeEmpty())
	})

	It("rejects undeclared relationship types", func() {
		user := newNode("user")
		post := newNode("post")

		err := svc.Append(ctx, user, "likes", []graph.NodeRef{post})
		Expect(err).To(MatchError(graph.ErrInvalidArgument))
	})

	It("enforces the schema's endpoint label", func() {
		user := newNode("user")
		other := newNode("user")

		err := svc.Append(ctx, user, "authored", []graph.NodeRef{other})
		Expect(err).To(MatchError(graph.ErrInvalidArgument))

		infos, lerr := svc.Relationships(ctx, user, "outgoing", "authored")
		Expect(lerr).NotTo(HaveOccurred())
		Expect(infos).To(BeEmpty())
	})

	It("rejects unknown directions", func() {
		user := newNode("user")
		_, err := svc.Relationships(ctx, user, "sideways", "")
		Expect(err).To(MatchError(graph.ErrInvalidArgument))
	})

	It("walks related nodes at the requested depth", func() {
		a := newNode("user")
		b := newNode("post")
		c := newNode("post")
		Expect(svc.Append(ctx, a, "authored", []graph.NodeRef{b})).To(Succeed())

		set, err := g.Related(b, "references")
		Expect(err).NotTo(HaveOccurred())
		_, err = set.Append(ctx, c)
		Expect(err).NotTo(HaveOccurred())

		nodes, err := svc.Related(ctx, a, "authored", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
		Expect(nodes[0].Ref).To(Equal(b))
	})

	It("looks up a relationship by its far endpoint", func() {
		user := newNode("user")
		post := newNode("post")
		Expect(svc.Append(ctx, user, "authored", []graph.NodeRef{post})).To(Succeed())

		info, err := svc.LookupRelated(ctx, user, "authored", post)
		Expect(err).NotTo(HaveOccurred())
		Expect(info).NotTo(BeNil())
		Expect(info.End).To(Equal(post))

		missing, err := svc.LookupRelated(ctx, user, "authored", user)
		Expect(err).NotTo(HaveOccurred())
		Expect(missing).To(BeNil())
	})

	It("deletes relationships and round-trips properties", func() {
		user := newNode("user")
		post := newNode("post")
		Expect(svc.Append(ctx, user, "authored", []graph.NodeRef{post})).To(Succeed())

		infos, err := svc.Relationships(ctx, user, "outgoing", "")
		Expect(err).NotTo(HaveOccurred())
		edge := infos[0].Ref

		Expect(svc.SetRelationshipProperty(ctx, edge, "weight", 2)).To(Succeed())
		value, err := svc.RelationshipProperty(ctx, edge, "weight")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal(2))

		_, err = svc.RelationshipProperty(ctx, edge, "absent")
		Expect(err).To(MatchError(graph.ErrPropertyNotFound))

		Expect(svc.DeleteRelationship(ctx, edge)).To(Succeed())
		_, err = svc.DescribeRelationship(ctx, edge)
		Expect(err).To(MatchError(graph.ErrEngine))
	})
})
