package router

import (
	"github.com/gin-gonic/gin"

	"autoreply.app/relay/internal/http/handler"
)

func MessageRouter(router *gin.RouterGroup, h *handler.MessageHandler) {
	router.POST("", h.Ingest)
}

func ConversationRouter(router *gin.RouterGroup, h *handler.ConversationHandler) {
	router.GET("/:channel_id/:counterparty_id/run", h.LatestRun)
	router.GET("/:channel_id/:counterparty_id/history", h.History)
}

func QueueRouter(router *gin.RouterGroup, h *handler.QueueHandler) {
	router.GET("/stats", h.Stats)
}

func MerchantRouter(router *gin.RouterGroup, h *handler.MerchantHandler) {
	router.POST("", h.Onboard)
	router.POST("/:id/topup", h.TopUp)
	router.GET("/:id/balance", h.Balance)
}
