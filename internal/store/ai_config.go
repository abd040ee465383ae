package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type aiConfigStore struct {
	q db.Querier
}

func newAIConfigStore(q db.Querier) AIConfigStore {
	return &aiConfigStore{q: q}
}

func (s *aiConfigStore) GetAIConfig(ctx context.Context, merchantID string) (*model.AIConfig, error) {
	var (
		cfg                           model.AIConfig
		creativity, formality, length int16
	)
	err := s.q.QueryRow(ctx, `
		SELECT model, creativity_level, formality_level, max_reply_length_level, custom_system_prompt
		FROM ai_configs WHERE merchant_id = $1`, merchantID,
	).Scan(&cfg.Model, &creativity, &formality, &length, &cfg.CustomSystemPrompt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	cfg.CreativityLevel = int(creativity)
	cfg.FormalityLevel = int(formality)
	cfg.MaxReplyLengthLevel = int(length)
	return &cfg, nil
}

func (s *aiConfigStore) Upsert(ctx context.Context, merchantID string, cfg model.AIConfig) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO ai_configs (merchant_id, model, creativity_level, formality_level, max_reply_length_level, custom_system_prompt)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (merchant_id) DO UPDATE
		SET model = EXCLUDED.model,
		    creativity_level = EXCLUDED.creativity_level,
		    formality_level = EXCLUDED.formality_level,
		    max_reply_length_level = EXCLUDED.max_reply_length_level,
		    custom_system_prompt = EXCLUDED.custom_system_prompt,
		    updated_at = NOW()`,
		merchantID, cfg.Model,
		int16(model.ClampLevel(cfg.CreativityLevel)),
		int16(model.ClampLevel(cfg.FormalityLevel)),
		int16(model.ClampLevel(cfg.MaxReplyLengthLevel)),
		cfg.CustomSystemPrompt)
	return err
}
