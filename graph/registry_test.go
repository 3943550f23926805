package graph_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/graph"
)

var _ = Describe("TypeRegistry", func() {
	var registry *graph.TypeRegistry

	BeforeEach(func() {
		registry = graph.NewTypeRegistry()
	})

	Describe("Intern", func() {
		It("should return the identical pointer for the same name", func() {
			first, err := registry.Intern("authored")
			Expect(err).NotTo(HaveOccurred())

			second, err := registry.Intern("authored")
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
			Expect(first.Name()).To(Equal("authored"))
		})

		It("should return distinct tokens for distinct names", func() {
			authored, err := registry.Intern("authored")
			Expect(err).NotTo(HaveOccurred())

			follows, err := registry.Intern("follows")
			Expect(err).NotTo(HaveOccurred())

			Expect(authored).NotTo(BeIdenticalTo(follows))
			Expect(registry.Len()).To(Equal(2))
		})

		It("should reject the empty name", func() {
			token, err := registry.Intern("")

			Expect(err).To(MatchError(graph.ErrInvalidArgument))
			Expect(token).To(BeNil())
			Expect(registry.Len()).To(BeZero())
		})

		It("should hand every concurrent caller the same token", func() {
			const callers = 32

			var wg sync.WaitGroup
			tokens := make([]*graph.RelType, callers)
			for i := range callers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					token, err := registry.Intern("raced")
					Expect(err).NotTo(HaveOccurred())
					tokens[i] = token
				}()
			}
			wg.Wait()

			for i := 1; i < callers; i++ {
				Expect(tokens[i]).To(BeIdenticalTo(tokens[0]))
			}
			Expect(registry.Len()).To(Equal(1))
		})

		It("should keep tokens alive for repeated lookups", func() {
			seen := make(map[*graph.RelType]bool)
			for i := range 10 {
				token, err := registry.Intern(fmt.Sprintf("type-%d", i%3))
				Expect(err).NotTo(HaveOccurred())
				seen[token] = true
			}
			Expect(seen).To(HaveLen(3))
		})
	})

	Describe("InternType", func() {
		It("should intern into the process-wide default registry", func() {
			first, err := graph.InternType("default-registry-type")
			Expect(err).NotTo(HaveOccurred())

			second, err := graph.InternType("default-registry-type")
			Expect(err).NotTo(HaveOccurred())

			Expect(second).To(BeIdenticalTo(first))
		})

		It("should be independent of per-graph registries", func() {
			fromDefault, err := graph.InternType("shared-name")
			Expect(err).NotTo(HaveOccurred())

			fromLocal, err := registry.Intern("shared-name")
			Expect(err).NotTo(HaveOccurred())

			Expect(fromDefault).NotTo(BeIdenticalTo(fromLocal))
		})
	})
})
