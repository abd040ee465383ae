package model

// MerchantNotification tells a merchant about a captured order.
type MerchantNotification struct {
	Profile         BusinessProfile  `json:"profile"`
	ChannelID       string           `json:"channel_id"`
	CounterpartyID  string           `json:"counterparty_id"`
	OrderSummary    string           `json:"order_summary"`
	OriginalMessage string           `json:"original_message"`
	Method          EscalationMethod `json:"method"`
}
