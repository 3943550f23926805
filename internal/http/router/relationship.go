package router

import (
	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/internal/http/handler"
)

func RelationshipRouter(router *gin.RouterGroup, handler *handler.RelationshipHandler) {
	router.GET("/:id", handler.Get)
	router.DELETE("/:id", handler.Delete)
	router.GET("/:id/properties/:key", handler.GetProperty)
	router.PUT("/:id/properties/:key", handler.SetProperty)
}
