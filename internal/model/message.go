package model

import "time"

// StoredMessage is a persisted inbound or outbound message; the history window is read from these.
type StoredMessage struct {
	ID                int64     `json:"id"`
	ChannelID         string    `json:"channel_id"`
	CounterpartyID    string    `json:"counterparty_id"`
	ExternalMessageID *string   `json:"external_message_id,omitempty"`
	Direction         Direction `json:"direction"`
	Body              string    `json:"body"`
	SentAt            time.Time `json:"sent_at"`
}

func (m StoredMessage) Turn() Turn {
	return Turn{Text: m.Body, Direction: m.Direction, Timestamp: m.SentAt}
}
