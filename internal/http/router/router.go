package router

import (
	"github.com/gin-gonic/gin"

	"eventsim.app/dispatcher/internal/http/handler"
	"eventsim.app/dispatcher/internal/service"
)

func SetupRoutes(router *gin.Engine, services *service.Services) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		eventHandler := handler.NewEventHandler(services.EventSender())
		EventRouter(api.Group("/events"), eventHandler)
	}
}
