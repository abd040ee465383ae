package dto

import (
	"time"

	"autoreply.app/relay/internal/model"
)

type RunResponse struct {
	ID              int64     `json:"id,string"`
	ConversationKey string    `json:"conversation_key"`
	EventID         string    `json:"event_id"`
	Stage           string    `json:"stage"`
	Settlement      string    `json:"settlement"`
	Decision        string    `json:"decision,omitempty"`
	Confidence      float64   `json:"confidence"`
	Reasoning       string    `json:"reasoning,omitempty"`
	OrderIntent     bool      `json:"order_intent"`
	OrderSummary    *string   `json:"order_summary,omitempty"`
	ReplyText       *string   `json:"reply_text,omitempty"`
	ChargeAmount    *int64    `json:"charge_amount,omitempty"`
	ChargeReason    string    `json:"charge_reason,omitempty"`
	HistoryTurns    int       `json:"history_turns"`
	ProfileLoaded   bool      `json:"profile_loaded"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewRunResponse(run *model.Run) RunResponse {
	s := run.State
	return RunResponse{
		ID:              run.ID,
		ConversationKey: run.Key.String(),
		EventID:         run.EventID,
		Stage:           string(run.Stage),
		Settlement:      string(run.Settlement),
		Decision:        string(s.Decision),
		Confidence:      s.Confidence,
		Reasoning:       s.Reasoning,
		OrderIntent:     s.OrderIntentFlag,
		OrderSummary:    s.OrderSummary,
		ReplyText:       s.ReplyText,
		ChargeAmount:    s.ChargeAmount,
		ChargeReason:    s.ChargeReason,
		HistoryTurns:    len(s.History),
		ProfileLoaded:   s.BusinessProfile != nil && !s.BusinessProfile.IsEmpty(),
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
	}
}

type TurnResponse struct {
	Text      string    `json:"text"`
	Direction string    `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	ConversationKey string         `json:"conversation_key"`
	Turns           []TurnResponse `json:"turns"`
}

func NewHistoryResponse(key model.ConversationKey, turns []model.Turn) HistoryResponse {
	resp := HistoryResponse{ConversationKey: key.String(), Turns: make([]TurnResponse, 0, len(turns))}
	for _, t := range turns {
		resp.Turns = append(resp.Turns, TurnResponse{Text: t.Text, Direction: string(t.Direction), Timestamp: t.Timestamp})
	}
	return resp
}
