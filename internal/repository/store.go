package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store scopes units of work. Every ledger mutation runs inside RunInTx so
// that balance reads, balance writes and the transaction-log append commit
// or roll back together.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a store wrapper around a pgx connection pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Pool exposes the underlying pool for read-only queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.db
}

// RunInTx executes fn within a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LockAccounts acquires row locks on the given accounts in ascending id
// order so concurrent transfers touching the same pair cannot deadlock.
// Returns the set of ids that exist.
func LockAccounts(ctx context.Context, tx pgx.Tx, ids ...int64) (map[int64]bool, error) {
	sorted := append([]int64(nil), ids...)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i] > sorted[j] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	locked := make(map[int64]bool, len(sorted))
	for _, id := range sorted {
		if locked[id] {
			continue
		}
		var lockedID int64
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&lockedID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("lock account %d: %w", id, err)
		}
		locked[id] = true
	}
	return locked, nil
}
