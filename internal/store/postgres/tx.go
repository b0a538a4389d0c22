package postgres

import (
	"context"

	"github.com/snarg/rtc-engine/internal/store"
)

// Tx runs fn inside one database transaction. All writes fn performs via the
// Store handed to it commit together on return, or roll back on error
// (spec §4.1.6 per-notification atomicity boundary).
func (s *Store) Tx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	txStore := &txWrapper{conn: conn{q: tx}}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// txWrapper satisfies store.Store inside an open transaction. Its own Tx
// method just reuses the existing transaction rather than nesting one,
// matching memstore's same-call-reentrant behavior.
type txWrapper struct {
	conn
}

func (t *txWrapper) Tx(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}
