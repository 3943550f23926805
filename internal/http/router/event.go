package router

import (
	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventHandler) {
	router.GET("", handler.List)
}
