package model

import "time"

type Stage string

const (
	StageAnalyze  Stage = "analyze"
	StageContext  Stage = "context"
	StageEscalate Stage = "escalate"
	StageOrder    Stage = "order"
	StageRespond  Stage = "respond"
	StageBill     Stage = "bill"
	StageDone     Stage = "done"
)

// Settlement tracks charge-then-deliver progress of a run that reached StageDone.
type Settlement string

const (
	SettlementPending             Settlement = "pending"
	SettlementCharged             Settlement = "charged"
	SettlementDelivered           Settlement = "delivered"
	SettlementInsufficientBalance Settlement = "insufficient_balance"
	SettlementDeliveryFailed      Settlement = "delivery_failed"
)

// Settled reports whether no further charge or delivery may happen for the run.
func (s Settlement) Settled() bool {
	switch s {
	case SettlementDelivered, SettlementInsufficientBalance, SettlementDeliveryFailed:
		return true
	}
	return false
}

// Run is the checkpoint of one orchestration, keyed by conversation and inbound event.
type Run struct {
	ID         int64             `json:"id"`
	Key        ConversationKey   `json:"key"`
	EventID    string            `json:"event_id"`
	Stage      Stage             `json:"stage"`
	Settlement Settlement        `json:"settlement"`
	State      ConversationState `json:"state"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
