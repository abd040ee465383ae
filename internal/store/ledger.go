package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"autoreply.app/relay/common/id"
	"autoreply.app/relay/core/db"
	"autoreply.app/relay/internal/model"
)

type ledgerStore struct {
	q    db.Querier
	inTx func(ctx context.Context, fn func(q db.Querier) error) error
}

func newLedgerStore(q db.Querier, inTx func(ctx context.Context, fn func(q db.Querier) error) error) LedgerStore {
	return &ledgerStore{q: q, inTx: inTx}
}

// ApplyCharge debits amount under a per-account advisory lock. A repeated idempotency key
// returns the original result without a second debit.
func (s *ledgerStore) ApplyCharge(ctx context.Context, accountID string, amount int64, reason, idempotencyKey string) (model.ChargeResult, error) {
	if amount < 0 {
		return model.ChargeResult{}, fmt.Errorf("charge amount must be non-negative, got %d", amount)
	}

	var result model.ChargeResult
	err := s.inTx(ctx, func(q db.Querier) error {
		if err := lockAccount(ctx, q, accountID); err != nil {
			return err
		}

		if idempotencyKey != "" {
			prior, err := balanceForKey(ctx, q, idempotencyKey)
			if err == nil {
				result = model.ChargeResult{Success: true, NewBalance: prior, Message: "charge already applied"}
				return nil
			}
			if !errors.Is(err, ErrNotFound) {
				return err
			}
		}

		balance, err := currentBalance(ctx, q, accountID)
		if err != nil {
			return err
		}
		if balance < amount {
			result = model.ChargeResult{
				Success:    false,
				NewBalance: balance,
				Message:    fmt.Sprintf("insufficient balance: have %d, need %d", balance, amount),
			}
			return nil
		}

		entry := model.LedgerEntry{
			ID:               id.New(),
			AccountID:        accountID,
			Amount:           -amount,
			ResultingBalance: balance - amount,
			Reason:           reason,
		}
		if idempotencyKey != "" {
			entry.IdempotencyKey = &idempotencyKey
		}
		if err := insertEntry(ctx, q, &entry); err != nil {
			return err
		}

		result = model.ChargeResult{Success: true, NewBalance: entry.ResultingBalance, Message: "charge applied"}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			// Another transaction committed the same key first.
			prior, lookupErr := balanceForKey(ctx, s.q, idempotencyKey)
			if lookupErr != nil {
				return model.ChargeResult{}, fmt.Errorf("resolving duplicate charge: %w", lookupErr)
			}
			return model.ChargeResult{Success: true, NewBalance: prior, Message: "charge already applied"}, nil
		}
		return model.ChargeResult{}, fmt.Errorf("applying charge: %w", err)
	}
	return result, nil
}

func (s *ledgerStore) TopUp(ctx context.Context, accountID string, amount int64, reason string) (*model.LedgerEntry, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("top-up amount must be positive, got %d", amount)
	}

	var entry model.LedgerEntry
	err := s.inTx(ctx, func(q db.Querier) error {
		if err := lockAccount(ctx, q, accountID); err != nil {
			return err
		}
		balance, err := currentBalance(ctx, q, accountID)
		if err != nil {
			return err
		}
		entry = model.LedgerEntry{
			ID:               id.New(),
			AccountID:        accountID,
			Amount:           amount,
			ResultingBalance: balance + amount,
			Reason:           reason,
		}
		return insertEntry(ctx, q, &entry)
	})
	if err != nil {
		return nil, fmt.Errorf("topping up: %w", err)
	}
	return &entry, nil
}

func (s *ledgerStore) Balance(ctx context.Context, accountID string) (int64, error) {
	return currentBalance(ctx, s.q, accountID)
}

func (s *ledgerStore) ListEntries(ctx context.Context, accountID string, limit int) ([]model.LedgerEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, account_id, amount, resulting_balance, reason, idempotency_key, created_at
		FROM balance_ledger
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.ResultingBalance, &e.Reason, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func lockAccount(ctx context.Context, q db.Querier, accountID string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, accountID); err != nil {
		return fmt.Errorf("locking account: %w", err)
	}
	return nil
}

// currentBalance is the resulting balance of the most recent entry, 0 for a new account.
func currentBalance(ctx context.Context, q db.Querier, accountID string) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `
		SELECT resulting_balance FROM balance_ledger
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

func balanceForKey(ctx context.Context, q db.Querier, key string) (int64, error) {
	var balance int64
	err := q.QueryRow(ctx, `SELECT resulting_balance FROM balance_ledger WHERE idempotency_key = $1`, key).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// created_at uses clock_timestamp so entries order by insertion under the account lock,
// not by transaction start.
func insertEntry(ctx context.Context, q db.Querier, e *model.LedgerEntry) error {
	return q.QueryRow(ctx, `
		INSERT INTO balance_ledger (id, account_id, amount, resulting_balance, reason, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, clock_timestamp())
		RETURNING created_at`,
		e.ID, e.AccountID, e.Amount, e.ResultingBalance, e.Reason, e.IdempotencyKey,
	).Scan(&e.CreatedAt)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
