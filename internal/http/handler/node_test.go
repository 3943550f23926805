package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/http/handler"
)

var _ = Describe("NodeHandler", func() {
	var (
		router *gin.Engine
		svc    *mockGraphService
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		svc = &mockGraphService{}
		h := handler.NewNodeHandler(svc)
		router.POST("/nodes", h.Create)
		router.GET("/nodes/:id", h.Get)
		router.GET("/nodes/:id/relationships", h.Relationships)
		router.GET("/nodes/:id/related/:type", h.Related)
		router.POST("/nodes/:id/related/:type", h.Append)
	})

	It("returns 201 with the created node", func() {
		svc.createNodeFn = func(_ context.Context, label string, props map[string]any) (*graph.Node, error) {
			return &graph.Node{Ref: "n1", Label: label, Props: props}, nil
		}

		body, _ := json.Marshal(map[string]any{"label": "user", "props": map[string]any{"name": "ada"}})
		w := perform(router, http.MethodPost, "/nodes", body)

		Expect(w.Code).To(Equal(http.StatusCreated))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["ref"]).To(Equal("n1"))
		Expect(resp["label"]).To(Equal("user"))
	})

	It("returns 400 when the label is missing", func() {
		w := perform(router, http.MethodPost, "/nodes", []byte(`{"props":{}}`))
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("returns 404 for a missing node", func() {
		svc.getNodeFn = func(_ context.Context, ref graph.NodeRef) (*graph.Node, error) {
			return nil, fmt.Errorf("resolving node %s: %w", ref, graph.ErrNotFound)
		}

		w := perform(router, http.MethodGet, "/nodes/missing", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("passes direction and type filters through", func() {
		var gotDir, gotType string
		svc.relationshipsFn = func(_ context.Context, _ graph.NodeRef, direction, typeName string) ([]graph.EdgeInfo, error) {
			gotDir, gotType = direction, typeName
			return []graph.EdgeInfo{{Ref: "e1", Start: "a", End: "b", Type: typeName}}, nil
		}

		w := perform(router, http.MethodGet, "/nodes/a/relationships?direction=outgoing&type=follows", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(gotDir).To(Equal("outgoing"))
		Expect(gotType).To(Equal("follows"))
	})

	It("returns 400 for a bad depth", func() {
		w := perform(router, http.MethodGet, "/nodes/a/related/follows?depth=two", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("runs a lookup when ?to= is present", func() {
		svc.lookupRelatedFn = func(_ context.Context, node graph.NodeRef, typeName string, to graph.NodeRef) (*graph.EdgeInfo, error) {
			Expect(node).To(Equal(graph.NodeRef("a")))
			Expect(to).To(Equal(graph.NodeRef("b")))
			return &graph.EdgeInfo{Ref: "e1", Start: "a", End: "b", Type: typeName}, nil
		}

		w := perform(router, http.MethodGet, "/nodes/a/related/follows?to=b", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp map[string]any
		Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp["end"]).To(Equal("b"))
	})

	It("returns 404 when a lookup finds nothing", func() {
		svc.lookupRelatedFn = func(context.Context, graph.NodeRef, string, graph.NodeRef) (*graph.EdgeInfo, error) {
			return nil, nil
		}

		w := perform(router, http.MethodGet, "/nodes/a/related/follows?to=b", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("appends every listed ref in order", func() {
		var got []graph.NodeRef
		svc.appendFn = func(_ context.Context, _ graph.NodeRef, _ string, others []graph.NodeRef) error {
			got = others
			return nil
		}

		body, _ := json.Marshal(map[string]any{"others": []string{"b", "c"}})
		w := perform(router, http.MethodPost, "/nodes/a/related/follows", body)

		Expect(w.Code).To(Equal(http.StatusCreated))
		Expect(got).To(Equal([]graph.NodeRef{"b", "c"}))
	})

	It("returns 400 when append hits an undeclared type", func() {
		svc.appendFn = func(context.Context, graph.NodeRef, string, []graph.NodeRef) error {
			return fmt.Errorf("%w: relationship type %q is not declared", graph.ErrInvalidArgument, "nope")
		}

		body, _ := json.Marshal(map[string]any{"others": []string{"b"}})
		w := perform(router, http.MethodPost, "/nodes/a/related/nope", body)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

func perform(router *gin.Engine, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}
