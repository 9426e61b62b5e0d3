package pgx

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the PostgreSQL implementation of the campaign graph stores. One
// Store value satisfies every store interface the services consume.
type Store struct {
	conn *pgxpool.Pool
}

// New creates a Store on top of an existing connection pool.
func New(conn *pgxpool.Pool) *Store {
	return &Store{conn: conn}
}

func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
