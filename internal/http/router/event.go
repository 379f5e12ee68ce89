package router

import (
	"github.com/gin-gonic/gin"

	"eventsim.app/dispatcher/internal/http/handler"
)

func EventRouter(router *gin.RouterGroup, handler *handler.EventHandler) {
	router.GET("", handler.Status)
	router.GET("/schema", handler.Schema)
	router.POST("/send", handler.Send)
	router.POST("/plan", handler.Plan)
	router.GET("/stream", handler.Stream)
}
