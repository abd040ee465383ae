package store

import (
	"context"
	"slices"

	"autoreply.app/relay/common/id"
	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type messageStore struct {
	q db.Querier
}

func newMessageStore(q db.Querier) MessageStore {
	return &messageStore{q: q}
}

func (s *messageStore) RecordIncoming(ctx context.Context, msg *model.StoredMessage) error {
	if msg.ID == 0 {
		msg.ID = id.New()
	}
	msg.Direction = model.DirectionIncoming

	err := s.q.QueryRow(ctx, `
		INSERT INTO messages (id, channel_id, counterparty_id, external_message_id, direction, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING sent_at`,
		msg.ID, msg.ChannelID, msg.CounterpartyID, msg.ExternalMessageID, string(msg.Direction), msg.Body, nullTime(msg.SentAt),
	).Scan(&msg.SentAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *messageStore) RecordOutgoing(ctx context.Context, key model.ConversationKey, text string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO messages (id, channel_id, counterparty_id, direction, body)
		VALUES ($1, $2, $3, $4, $5)`,
		id.New(), key.ChannelID, key.CounterpartyID, string(model.DirectionOutgoing), text)
	return err
}

func (s *messageStore) RecentHistory(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.q.Query(ctx, `
		SELECT body, direction, sent_at
		FROM messages
		WHERE channel_id = $1 AND counterparty_id = $2
		ORDER BY sent_at DESC, id DESC
		LIMIT $3`,
		key.ChannelID, key.CounterpartyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []model.Turn
	for rows.Next() {
		var (
			t         model.Turn
			direction string
		)
		if err := rows.Scan(&t.Text, &direction, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Direction = model.Direction(direction)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(turns)
	return turns, nil
}
