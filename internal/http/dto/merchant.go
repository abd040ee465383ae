package dto

import (
	"time"

	"autoreply.app/relay/internal/model"
)

type OnboardMerchantRequest struct {
	MerchantID     string                 `json:"merchant_id" binding:"required"`
	ChannelID      string                 `json:"channel_id" binding:"required"`
	AIConfig       *model.AIConfig        `json:"ai_config,omitempty"`
	Profile        *model.BusinessProfile `json:"business_profile,omitempty"`
	InitialBalance int64                  `json:"initial_balance" binding:"gte=0"`
}

type MerchantResponse struct {
	ID               string `json:"id"`
	ChannelID        string `json:"channel_id"`
	AutoReplyEnabled bool   `json:"auto_reply_enabled"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

type LedgerEntryResponse struct {
	ID               int64     `json:"id,string"`
	Amount           int64     `json:"amount"`
	ResultingBalance int64     `json:"resulting_balance"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
}

type BalanceResponse struct {
	MerchantID       string                `json:"merchant_id"`
	Balance          int64                 `json:"balance"`
	AutoReplyEnabled bool                  `json:"auto_reply_enabled"`
	Entries          []LedgerEntryResponse `json:"entries"`
}
