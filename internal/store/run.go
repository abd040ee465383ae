package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"autoreply.app/relay/common/id"
	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type runStore struct {
	q db.Querier
}

func newRunStore(q db.Querier) RunStore {
	return &runStore{q: q}
}

const runColumns = `id, channel_id, counterparty_id, event_id, stage, settlement, state, created_at, updated_at`

func (s *runStore) Get(ctx context.Context, key model.ConversationKey, eventID string) (*model.Run, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+runColumns+` FROM conversation_runs
		WHERE channel_id = $1 AND counterparty_id = $2 AND event_id = $3`,
		key.ChannelID, key.CounterpartyID, eventID)
	return scanRun(row)
}

func (s *runStore) Latest(ctx context.Context, key model.ConversationKey) (*model.Run, error) {
	row := s.q.QueryRow(ctx, `
		SELECT `+runColumns+` FROM conversation_runs
		WHERE channel_id = $1 AND counterparty_id = $2
		ORDER BY updated_at DESC, id DESC
		LIMIT 1`,
		key.ChannelID, key.CounterpartyID)
	return scanRun(row)
}

func (s *runStore) Save(ctx context.Context, run *model.Run) error {
	if run.ID == 0 {
		run.ID = id.New()
	}
	if run.Settlement == "" {
		run.Settlement = model.SettlementPending
	}

	state, err := json.Marshal(run.State)
	if err != nil {
		return fmt.Errorf("encoding run state: %w", err)
	}

	return s.q.QueryRow(ctx, `
		INSERT INTO conversation_runs (id, channel_id, counterparty_id, event_id, stage, settlement, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (channel_id, counterparty_id, event_id) DO UPDATE
		SET stage = EXCLUDED.stage,
		    settlement = EXCLUDED.settlement,
		    state = EXCLUDED.state,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		run.ID, run.Key.ChannelID, run.Key.CounterpartyID, run.EventID,
		string(run.Stage), string(run.Settlement), state,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
}

func scanRun(row pgx.Row) (*model.Run, error) {
	var (
		run               model.Run
		stage, settlement string
		state             []byte
	)
	err := row.Scan(&run.ID, &run.Key.ChannelID, &run.Key.CounterpartyID, &run.EventID,
		&stage, &settlement, &state, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	run.Stage = model.Stage(stage)
	run.Settlement = model.Settlement(settlement)
	if err := json.Unmarshal(state, &run.State); err != nil {
		return nil, fmt.Errorf("decoding run state: %w", err)
	}
	return &run, nil
}
