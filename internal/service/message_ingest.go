package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoreply.app/relay/common"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/queue"
	"autoreply.app/relay/internal/store"
)

var ErrInvalidMessage = errors.New("channel_id, counterparty_id and text are required")

type MessageIngestParams struct {
	// EventID is the channel's message id. One is minted when absent.
	EventID        *string    `json:"event_id,omitempty"`
	ChannelID      string     `json:"channel_id"`
	CounterpartyID string     `json:"counterparty_id"`
	Text           string     `json:"text"`
	SentAt         *time.Time `json:"sent_at,omitempty"`

	TraceID *string `json:"trace_id,omitempty"`
}

type MessageIngestResult struct {
	EventID    string
	Key        model.ConversationKey
	Enqueued   bool
	Duplicated bool
}

type MessageIngestService interface {
	Ingest(ctx context.Context, params MessageIngestParams) (*MessageIngestResult, error)
}

type messageIngestService struct {
	messages store.MessageStore
	queue    queue.Producer
	logger   *slog.Logger
}

func NewMessageIngestService(messages store.MessageStore, queue queue.Producer, logger *slog.Logger) MessageIngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &messageIngestService{
		messages: messages,
		queue:    queue,
		logger:   logger,
	}
}

// Ingest stores the inbound message, then enqueues it for a reply. A redelivered
// event id is stored once and enqueued once.
func (s *messageIngestService) Ingest(ctx context.Context, params MessageIngestParams) (*MessageIngestResult, error) {
	key := model.ConversationKey{
		ChannelID:      strings.TrimSpace(params.ChannelID),
		CounterpartyID: strings.TrimSpace(params.CounterpartyID),
	}
	if !key.Valid() {
		return nil, ErrInvalidMessage
	}
	text, err := common.RequireText(params.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	eventID := ""
	if params.EventID != nil {
		eventID = strings.TrimSpace(*params.EventID)
	}
	if eventID == "" {
		eventID = uuid.NewString()
	}

	stored := &model.StoredMessage{
		ChannelID:         key.ChannelID,
		CounterpartyID:    key.CounterpartyID,
		ExternalMessageID: &eventID,
		Body:              text,
	}
	if params.SentAt != nil {
		stored.SentAt = *params.SentAt
	}

	if err := s.messages.RecordIncoming(ctx, stored); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.InfoContext(ctx, "duplicate inbound message deduped",
				"event_id", eventID,
				"conversation_key", key.String())
			return &MessageIngestResult{EventID: eventID, Key: key, Duplicated: true}, nil
		}
		return nil, fmt.Errorf("storing inbound message: %w", err)
	}

	if err := s.queue.Enqueue(ctx, queue.InboundTask{
		EventID:        eventID,
		ChannelID:      key.ChannelID,
		CounterpartyID: key.CounterpartyID,
		Text:           text,
		TraceID:        params.TraceID,
		Attempt:        1,
	}); err != nil {
		return nil, fmt.Errorf("enqueueing inbound message: %w", err)
	}

	return &MessageIngestResult{EventID: eventID, Key: key, Enqueued: true}, nil
}
