package router

import (
	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/internal/http/handler"
)

func NodeRouter(router *gin.RouterGroup, handler *handler.NodeHandler) {
	router.POST("", handler.Create)
	router.GET("/:id", handler.Get)
	router.GET("/:id/relationships", handler.Relationships)
	router.GET("/:id/related/:type", handler.Related)
	router.POST("/:id/related/:type", handler.Append)
}
