package dto

import "time"

type IngestMessageRequest struct {
	EventID        *string    `json:"event_id,omitempty"`
	ChannelID      string     `json:"channel_id" binding:"required"`
	CounterpartyID string     `json:"counterparty_id" binding:"required"`
	Text           string     `json:"text" binding:"required"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
}

type IngestMessageResponse struct {
	EventID         string `json:"event_id"`
	ConversationKey string `json:"conversation_key"`
	Enqueued        bool   `json:"enqueued"`
	Duplicated      bool   `json:"duplicated"`
}
