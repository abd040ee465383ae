package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"autoreply.app/relay/internal/http/dto"
	"autoreply.app/relay/internal/service"
)

type MessageHandler struct {
	service     service.MessageIngestService
	traceHeader string
}

func NewMessageHandler(service service.MessageIngestService, traceHeader string) *MessageHandler {
	return &MessageHandler{
		service:     service,
		traceHeader: traceHeader,
	}
}

func (h *MessageHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.IngestMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid ingest request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	traceID := c.GetHeader(h.traceHeader)
	if traceID == "" {
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
		}
	}
	params := service.MessageIngestParams{
		EventID:        req.EventID,
		ChannelID:      req.ChannelID,
		CounterpartyID: req.CounterpartyID,
		Text:           req.Text,
		SentAt:         req.SentAt,
	}
	if traceID != "" {
		params.TraceID = &traceID
	}

	result, err := h.service.Ingest(ctx, params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to ingest message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest message"})
		return
	}

	c.JSON(http.StatusAccepted, dto.IngestMessageResponse{
		EventID:         result.EventID,
		ConversationKey: result.Key.String(),
		Enqueued:        result.Enqueued,
		Duplicated:      result.Duplicated,
	})
}
