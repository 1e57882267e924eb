package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx is one unit of work against the store. Everything written through a Tx
// becomes visible to other readers at once, or not at all.
type Tx struct {
	tx *sql.Tx
	s  *Store
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back on every other exit path: an error from fn, a
// panic (which is re-raised after rollback) or cancellation of ctx.
//
// fn must not call Store methods: the store holds a single connection and
// they would wait on the transaction that is waiting on them.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback() // No-op if ctx already rolled it back
		}
	}()

	if err := fn(&Tx{tx: sqlTx, s: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
