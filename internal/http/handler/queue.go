package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"autoreply.app/relay/internal/service"
)

type QueueHandler struct {
	service service.QueueService
}

func NewQueueHandler(service service.QueueService) *QueueHandler {
	return &QueueHandler{service: service}
}

func (h *QueueHandler) Stats(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read queue stats", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
