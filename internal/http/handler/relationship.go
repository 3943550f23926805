package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/http/dto"
	"lattice.dev/lattice/internal/service"
)

type RelationshipHandler struct {
	service service.GraphService
}

func NewRelationshipHandler(svc service.GraphService) *RelationshipHandler {
	return &RelationshipHandler{service: svc}
}

func (h *RelationshipHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.EdgeRef(c.Param("id"))

	info, err := h.service.DescribeRelationship(ctx, ref)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToRelationshipResponse(info))
}

func (h *RelationshipHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.EdgeRef(c.Param("id"))

	if err := h.service.DeleteRelationship(ctx, ref); err != nil {
		slog.ErrorContext(ctx, "failed to delete relationship", "error", err, "edge", string(ref))
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *RelationshipHandler) GetProperty(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.EdgeRef(c.Param("id"))
	key := c.Param("key")

	value, err := h.service.RelationshipProperty(ctx, ref, key)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PropertyResponse{Key: key, Value: value})
}

func (h *RelationshipHandler) SetProperty(c *gin.Context) {
	ctx := c.Request.Context()
	ref := graph.EdgeRef(c.Param("id"))
	key := c.Param("key")

	var req dto.SetPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.SetRelationshipProperty(ctx, ref, key, req.Value); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PropertyResponse{Key: key, Value: req.Value})
}
