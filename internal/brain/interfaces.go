package brain

import (
	"context"

	"autoreply.app/relay/internal/model"
)

// MerchantDirectory resolves the merchant owning a channel.
// ResolveMerchant returns store.ErrNotFound when no merchant owns the channel.
type MerchantDirectory interface {
	ResolveMerchant(ctx context.Context, channelID string) (*model.Merchant, error)
	DisableAutoReply(ctx context.Context, merchantID string) error
}

// ConfigSource returns nil (or store.ErrNotFound) when the merchant has no AI configuration.
type ConfigSource interface {
	GetAIConfig(ctx context.Context, merchantID string) (*model.AIConfig, error)
}

type ProfileSource interface {
	GetBusinessProfile(ctx context.Context, merchantID string) (*model.BusinessProfile, error)
}

// MessageLog is the persisted message history of a conversation.
type MessageLog interface {
	// RecentHistory returns at most limit turns, chronological, most recent last.
	RecentHistory(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error)
	RecordOutgoing(ctx context.Context, key model.ConversationKey, text string) error
}

// Advisor is the auxiliary classification signal consulted when no keyword matched.
type Advisor interface {
	Advise(ctx context.Context, text string, history []model.Turn) (Advice, error)
}

type Advice struct {
	Label     string
	Reasoning string
}

// Ledger applies a charge atomically. Replaying the same idempotency key must not charge twice.
// An insufficient balance is reported as Success=false with a message mentioning the balance.
type Ledger interface {
	ApplyCharge(ctx context.Context, accountID string, amount int64, reason, idempotencyKey string) (model.ChargeResult, error)
}

type Deliverer interface {
	Deliver(ctx context.Context, channelID, counterpartyID, text string) error
}

type Notifier interface {
	NotifyMerchant(ctx context.Context, n model.MerchantNotification) error
}

// CheckpointStore persists orchestration runs. Get and Latest return store.ErrNotFound when absent.
type CheckpointStore interface {
	Get(ctx context.Context, key model.ConversationKey, eventID string) (*model.Run, error)
	Latest(ctx context.Context, key model.ConversationKey) (*model.Run, error)
	Save(ctx context.Context, run *model.Run) error
}

// KeyLocker serializes runs per conversation key. The returned func releases the lock.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
