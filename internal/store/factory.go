package store

import (
	"context"

	"autoreply.app/relay/core/db"
)

type Stores struct {
	q  db.Querier
	tx Transactor
}

// NewStores creates stores over q. tx may be nil when q is already a transaction;
// multi-statement operations then run on q directly.
func NewStores(q db.Querier, tx Transactor) *Stores {
	return &Stores{q: q, tx: tx}
}

// FromDB wires stores to a pool-backed database.
func FromDB(database *db.DB) *Stores {
	return NewStores(database.Querier(), database)
}

func (s *Stores) Merchants() MerchantStore {
	return newMerchantStore(s.q)
}

func (s *Stores) AIConfigs() AIConfigStore {
	return newAIConfigStore(s.q)
}

func (s *Stores) Profiles() ProfileStore {
	return newProfileStore(s.q)
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.q)
}

func (s *Stores) Ledger() LedgerStore {
	return newLedgerStore(s.q, s.inTx)
}

func (s *Stores) Runs() RunStore {
	return newRunStore(s.q)
}

func (s *Stores) inTx(ctx context.Context, fn func(q db.Querier) error) error {
	if s.tx == nil {
		return fn(s.q)
	}
	return s.tx.WithTx(ctx, fn)
}
