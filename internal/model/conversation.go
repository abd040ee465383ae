package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadySet is returned when a write-once field of ConversationState is written twice.
var ErrAlreadySet = errors.New("field already set")

// ConversationKey identifies one exchange between a merchant channel and a customer.
type ConversationKey struct {
	ChannelID      string `json:"channel_id"`
	CounterpartyID string `json:"counterparty_id"`
}

func (k ConversationKey) String() string {
	return fmt.Sprintf("%s_%s", k.ChannelID, k.CounterpartyID)
}

func (k ConversationKey) Valid() bool {
	return k.ChannelID != "" && k.CounterpartyID != ""
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Turn is one message of the history window. Slices of turns are chronological, most recent last.
type Turn struct {
	Text      string    `json:"text"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

type Decision string

const (
	DecisionEscalate     Decision = "escalate"
	DecisionProcessOrder Decision = "process_order"
	DecisionRespond      Decision = "respond"
)

func (d Decision) Valid() bool {
	switch d {
	case DecisionEscalate, DecisionProcessOrder, DecisionRespond:
		return true
	}
	return false
}

// ConversationState is the unit of work for one inbound message.
// Decision, ReplyText and ChargeAmount are written exactly once through their setters.
type ConversationState struct {
	Key         ConversationKey `json:"key"`
	EventID     string          `json:"event_id"`
	MessageText string          `json:"message_text"`
	MerchantID  string          `json:"merchant_id"`
	History     []Turn          `json:"history,omitempty"`

	// nil = not fetched yet, empty = fetched and nothing found.
	BusinessProfile *BusinessProfile `json:"business_profile,omitempty"`
	AIConfig        *AIConfig        `json:"ai_config,omitempty"`

	Decision        Decision `json:"decision,omitempty"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning,omitempty"`
	OrderIntentFlag bool     `json:"order_intent"`
	OrderSummary    *string  `json:"order_summary,omitempty"`

	// MerchantNotified is the checkpointed claim on the order notification.
	MerchantNotified bool `json:"merchant_notified,omitempty"`

	ReplyText    *string `json:"reply_text,omitempty"`
	ChargeAmount *int64  `json:"charge_amount,omitempty"`
	ChargeReason string  `json:"charge_reason,omitempty"`
}

func (s *ConversationState) SetDecision(d Decision, confidence float64, reasoning string) error {
	if s.Decision != "" {
		return fmt.Errorf("decision: %w", ErrAlreadySet)
	}
	if !d.Valid() {
		return fmt.Errorf("invalid decision %q", d)
	}
	s.Decision = d
	s.Confidence = confidence
	s.Reasoning = reasoning
	return nil
}

func (s *ConversationState) SetReply(text string) error {
	if s.ReplyText != nil {
		return fmt.Errorf("reply: %w", ErrAlreadySet)
	}
	s.ReplyText = &text
	return nil
}

func (s *ConversationState) SetCharge(amount int64, reason string) error {
	if s.ChargeAmount != nil {
		return fmt.Errorf("charge: %w", ErrAlreadySet)
	}
	if amount < 0 {
		return fmt.Errorf("negative charge %d", amount)
	}
	s.ChargeAmount = &amount
	s.ChargeReason = reason
	return nil
}

// Reply returns the reply text or "" when no terminal stage has run.
func (s *ConversationState) Reply() string {
	if s.ReplyText == nil {
		return ""
	}
	return *s.ReplyText
}

// Charge returns the charge amount or 0 when billing has not run.
func (s *ConversationState) Charge() int64 {
	if s.ChargeAmount == nil {
		return 0
	}
	return *s.ChargeAmount
}

// Profile returns the fetched profile, or an empty one when enrichment has not run.
func (s *ConversationState) Profile() BusinessProfile {
	if s.BusinessProfile == nil {
		return BusinessProfile{}
	}
	return *s.BusinessProfile
}
