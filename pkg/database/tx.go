package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// TxFunc runs inside a transaction. Returning an error rolls it back.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) error

// Transactor owns the begin/commit/rollback boundary. Callees receive the
// transaction explicitly and never commit on their own.
type Transactor struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTransactor constructs a Transactor using read-committed isolation.
func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// WithinTx executes fn in a single transaction, committing only when fn
// returns nil. Panics roll back and are re-raised.
func (t *Transactor) WithinTx(ctx context.Context, fn TxFunc) error {
	return t.run(ctx, t.opts, fn)
}

// WithinReadOnlyTx executes fn in a read-only repeatable-read transaction,
// so every statement fn issues observes the same snapshot.
func (t *Transactor) WithinReadOnlyTx(ctx context.Context, fn TxFunc) error {
	return t.run(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func (t *Transactor) run(ctx context.Context, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := t.db.BeginTxx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
