package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type merchantStore struct {
	q db.Querier
}

func newMerchantStore(q db.Querier) MerchantStore {
	return &merchantStore{q: q}
}

const merchantColumns = `id, channel_id, auto_reply_enabled, created_at, updated_at`

func (s *merchantStore) GetByID(ctx context.Context, id string) (*model.Merchant, error) {
	return s.getOne(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id)
}

func (s *merchantStore) ResolveMerchant(ctx context.Context, channelID string) (*model.Merchant, error) {
	return s.getOne(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE channel_id = $1`, channelID)
}

func (s *merchantStore) getOne(ctx context.Context, query string, arg any) (*model.Merchant, error) {
	var m model.Merchant
	err := s.q.QueryRow(ctx, query, arg).Scan(&m.ID, &m.ChannelID, &m.AutoReplyEnabled, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *merchantStore) Upsert(ctx context.Context, merchant *model.Merchant) error {
	err := s.q.QueryRow(ctx, `
		INSERT INTO merchants (id, channel_id, auto_reply_enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET channel_id = EXCLUDED.channel_id,
		    auto_reply_enabled = EXCLUDED.auto_reply_enabled,
		    updated_at = NOW()
		RETURNING created_at, updated_at`,
		merchant.ID, merchant.ChannelID, merchant.AutoReplyEnabled,
	).Scan(&merchant.CreatedAt, &merchant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("channel %s already owned: %w", merchant.ChannelID, ErrDuplicate)
		}
		return err
	}
	return nil
}

func (s *merchantStore) DisableAutoReply(ctx context.Context, merchantID string) error {
	return s.SetAutoReply(ctx, merchantID, false)
}

func (s *merchantStore) SetAutoReply(ctx context.Context, merchantID string, enabled bool) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE merchants SET auto_reply_enabled = $2, updated_at = NOW() WHERE id = $1`,
		merchantID, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
