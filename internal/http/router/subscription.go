package router

import (
	"github.com/gin-gonic/gin"

	"lattice.dev/lattice/internal/http/handler"
)

func SubscriptionRouter(router *gin.RouterGroup, handler *handler.SubscriptionHandler) {
	router.POST("", handler.Create)
	router.GET("", handler.List)
	router.GET("/:id", handler.Get)
	router.DELETE("/:id", handler.Delete)
	router.GET("/:id/deliveries", handler.Deliveries)
}
