package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/journal"
)

// statusFor maps the core error taxonomy onto HTTP statuses. The cause
// inside an aborted transaction wins over the abort itself, so a
// bad-argument rollback is still a 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graph.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, graph.ErrPropertyNotFound),
		errors.Is(err, graph.ErrNotFound),
		errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, graph.ErrTxAborted):
		return http.StatusConflict
	case errors.Is(err, graph.ErrEngine):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
