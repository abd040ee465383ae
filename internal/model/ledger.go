package model

import "time"

// ChargeResult is the outcome of applying a charge to a prepaid balance.
type ChargeResult struct {
	Success    bool   `json:"success"`
	NewBalance int64  `json:"new_balance"`
	Message    string `json:"message"`
}

// LedgerEntry is one append-only balance movement. Amount is signed: top-ups positive, charges negative.
type LedgerEntry struct {
	ID               int64     `json:"id"`
	AccountID        string    `json:"account_id"`
	Amount           int64     `json:"amount"`
	ResultingBalance int64     `json:"resulting_balance"`
	Reason           string    `json:"reason"`
	IdempotencyKey   *string   `json:"idempotency_key,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
