package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/service"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(svc service.EventService) *EventHandler {
	return &EventHandler{service: svc}
}

func (h *EventHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	var limit int32
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = int32(parsed)
	}

	var (
		events []graph.Event
		err    error
	)
	if node := c.Query("node"); node != "" {
		events, err = h.service.ListByNode(ctx, graph.NodeRef(node), limit)
	} else {
		events, err = h.service.ListRecent(ctx, limit)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if events == nil {
		events = []graph.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
