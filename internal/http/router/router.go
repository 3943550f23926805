package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lattice.dev/lattice/graph"
	"lattice.dev/lattice/internal/http/handler"
	"lattice.dev/lattice/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services, dispatcher *graph.Dispatcher) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		nodeHandler := handler.NewNodeHandler(services.Graph())
		NodeRouter(v1.Group("/nodes"), nodeHandler)

		relHandler := handler.NewRelationshipHandler(services.Graph())
		RelationshipRouter(v1.Group("/relationships"), relHandler)

		eventHandler := handler.NewEventHandler(services.Events())
		EventRouter(v1.Group("/events"), eventHandler)

		subHandler := handler.NewSubscriptionHandler(services.Subscriptions())
		SubscriptionRouter(v1.Group("/subscriptions"), subHandler)

		watchHandler := handler.NewWatchHandler(dispatcher)
		v1.GET("/watch", watchHandler.Watch)
	}
}
