package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoreply.app/relay/internal/http/handler"
	"autoreply.app/relay/internal/service"
)

type RouterConfig struct {
	TraceHeader string
	ServiceName string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := router.Group("/api/v1")
	{
		MessageRouter(v1.Group("/messages"), handler.NewMessageHandler(services.Ingest(), cfg.TraceHeader))
		ConversationRouter(v1.Group("/conversations"), handler.NewConversationHandler(services.Conversations()))
		QueueRouter(v1.Group("/queue"), handler.NewQueueHandler(services.Queue()))
		MerchantRouter(v1.Group("/merchants"), handler.NewMerchantHandler(services.Merchants()))
	}
}
