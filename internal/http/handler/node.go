package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/http/dto"
	"lattice.dev/lattice/internal/service"
)

type NodeHandler struct {
	service service.GraphService
}

func NewNodeHandler(svc service.GraphService) *NodeHandler {
	return &NodeHandler{service: svc}
}

func (h *NodeHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	node, err := h.service.CreateNode(ctx, req.Label, req.Props)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create node", "error", err, "label", req.Label)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToNodeResponse(node))
}

func (h *NodeHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.NodeRef(c.Param("id"))

	node, err := h.service.GetNode(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToNodeResponse(node))
}

func (h *NodeHandler) Relationships(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.NodeRef(c.Param("id"))

	infos, err := h.service.Relationships(ctx, ref, c.Query("direction"), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"relationships": dto.ToRelationshipResponses(infos)})
}

func (h *NodeHandler) Related(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.NodeRef(c.Param("id"))
	typeName := c.Param("type")

	// ?to= switches from traversal to a single-edge lookup.
	if to := c.Query("to"); to != "" {
		info, err := h.service.LookupRelated(ctx, ref, typeName, graph.NodeRef(to))
		if err != nil {
			respondError(c, err)
			return
		}
		if info == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no relationship to " + to})
			return
		}
		c.JSON(http.StatusOK, dto.ToRelationshipResponse(*info))
		return
	}

	depth := 1
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be an integer"})
			return
		}
		depth = parsed
	}

	nodes, err := h.service.Related(ctx, ref, typeName, depth)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"nodes": dto.ToNodeResponses(nodes)})
}

func (h *NodeHandler) Append(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.NodeRef(c.Param("id"))
	typeName := c.Param("type")

	var req dto.AppendRelatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	others := make([]graph.NodeRef, 0, len(req.Others))
	for _, other := range req.Others {
		others = append(others, graph.NodeRef(other))
	}

	if err := h.service.Append(ctx, ref, typeName, others); err != nil {
		slog.ErrorContext(ctx, "failed to append relationships",
			"error", err,
			"node", string(ref),
			"rel_type", typeName)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"created": len(others)})
}
