package model

import "time"

type Merchant struct {
	ID               string    `json:"id"`
	ChannelID        string    `json:"channel_id"`
	AutoReplyEnabled bool      `json:"auto_reply_enabled"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
