// Package db is the postgres implementation of the store interfaces. SQL
// is hand written; addresses and ids travel as bytea, amounts as numeric.
package db

import (
	"context"
	"database/sql"
	"errors"

	"renthub-services/renthub/store"

	"github.com/ninja-software/terror/v2"
)

// querier is the subset of *sql.DB and *sql.Tx the queries run on.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store implements store.Store on a *sql.DB. Inside an Atomic block db is
// the transaction and conn is nil.
type Store struct {
	conn *sql.DB
	db   querier
}

func NewStore(conn *sql.DB) *Store {
	return &Store{conn: conn, db: conn}
}

var _ store.Store = (*Store)(nil)

// Atomic runs fn against a single database transaction. An error from fn
// rolls every mutation back. Nested calls join the outer transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.StoreTx) error) error {
	if s.conn == nil {
		return fn(s)
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return terror.Error(err, "could not begin a transaction")
	}
	defer tx.Rollback()

	err = fn(&Store{db: tx})
	if err != nil {
		return err
	}
	err = tx.Commit()
	if err != nil {
		return terror.Error(err, "could not commit the transaction")
	}
	return nil
}

// notFound maps the driver's empty result onto the store sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
