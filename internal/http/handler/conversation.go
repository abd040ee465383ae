package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"autoreply.app/relay/internal/http/dto"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/service"
)

type ConversationHandler struct {
	service service.ConversationService
}

func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func conversationKey(c *gin.Context) model.ConversationKey {
	return model.ConversationKey{
		ChannelID:      c.Param("channel_id"),
		CounterpartyID: c.Param("counterparty_id"),
	}
}

// LatestRun shows where the most recent message of a conversation is in the pipeline.
func (h *ConversationHandler) LatestRun(c *gin.Context) {
	ctx := c.Request.Context()
	key := conversationKey(c)

	run, err := h.service.LatestRun(ctx, key)
	if err != nil {
		if errors.Is(err, service.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run for conversation"})
			return
		}
		slog.ErrorContext(ctx, "failed to load run", "error", err, "conversation_key", key.String())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, dto.NewRunResponse(run))
}

func (h *ConversationHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	key := conversationKey(c)

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	turns, err := h.service.History(ctx, key, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load history", "error", err, "conversation_key", key.String())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, dto.NewHistoryResponse(key, turns))
}
