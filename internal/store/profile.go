package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type profileStore struct {
	q db.Querier
}

func newProfileStore(q db.Querier) ProfileStore {
	return &profileStore{q: q}
}

func (s *profileStore) GetBusinessProfile(ctx context.Context, merchantID string) (*model.BusinessProfile, error) {
	var raw []byte
	err := s.q.QueryRow(ctx, `SELECT profile FROM business_profiles WHERE merchant_id = $1`, merchantID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var profile model.BusinessProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decoding business profile: %w", err)
	}
	return &profile, nil
}

func (s *profileStore) Upsert(ctx context.Context, merchantID string, profile model.BusinessProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding business profile: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		INSERT INTO business_profiles (merchant_id, profile)
		VALUES ($1, $2)
		ON CONFLICT (merchant_id) DO UPDATE
		SET profile = EXCLUDED.profile, updated_at = NOW()`,
		merchantID, raw)
	return err
}
