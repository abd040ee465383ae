package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"autoreply.app/relay/core/db"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert hits a uniqueness guard
var ErrDuplicate = errors.New("duplicate")

// Transactor runs fn inside a database transaction. *db.DB satisfies it.
type Transactor interface {
	WithTx(ctx context.Context, fn func(q db.Querier) error) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
