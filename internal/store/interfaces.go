package store

import (
	"context"

	"autoreply.app/relay/internal/model"
)

// MerchantStore resolves channel ownership and the auto-reply switch.
type MerchantStore interface {
	GetByID(ctx context.Context, id string) (*model.Merchant, error)
	ResolveMerchant(ctx context.Context, channelID string) (*model.Merchant, error)
	Upsert(ctx context.Context, merchant *model.Merchant) error
	DisableAutoReply(ctx context.Context, merchantID string) error
	SetAutoReply(ctx context.Context, merchantID string, enabled bool) error
}

type AIConfigStore interface {
	GetAIConfig(ctx context.Context, merchantID string) (*model.AIConfig, error)
	Upsert(ctx context.Context, merchantID string, cfg model.AIConfig) error
}

type ProfileStore interface {
	GetBusinessProfile(ctx context.Context, merchantID string) (*model.BusinessProfile, error)
	Upsert(ctx context.Context, merchantID string, profile model.BusinessProfile) error
}

// MessageStore persists conversation messages and serves the history window.
type MessageStore interface {
	// RecordIncoming returns ErrDuplicate when the external message id was already stored.
	RecordIncoming(ctx context.Context, msg *model.StoredMessage) error
	RecordOutgoing(ctx context.Context, key model.ConversationKey, text string) error
	RecentHistory(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error)
}

// LedgerStore is the append-only prepaid balance.
type LedgerStore interface {
	ApplyCharge(ctx context.Context, accountID string, amount int64, reason, idempotencyKey string) (model.ChargeResult, error)
	TopUp(ctx context.Context, accountID string, amount int64, reason string) (*model.LedgerEntry, error)
	Balance(ctx context.Context, accountID string) (int64, error)
	ListEntries(ctx context.Context, accountID string, limit int) ([]model.LedgerEntry, error)
}

// RunStore checkpoints orchestration runs.
type RunStore interface {
	Get(ctx context.Context, key model.ConversationKey, eventID string) (*model.Run, error)
	Latest(ctx context.Context, key model.ConversationKey) (*model.Run, error)
	Save(ctx context.Context, run *model.Run) error
}
