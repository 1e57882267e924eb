package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/erpgate/internal/ir"
)

// Outcome reports what RecordIdempotency did.
type Outcome int

const (
	// Stored means this call inserted the record.
	Stored Outcome = iota
	// AlreadyExists means another writer holds a live record for the key.
	AlreadyExists
)

func (o Outcome) String() string {
	switch o {
	case Stored:
		return "stored"
	case AlreadyExists:
		return "already_exists"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// RecordResult is the result of RecordIdempotency. Existing holds the stored
// response when Outcome is AlreadyExists.
type RecordResult struct {
	Outcome  Outcome
	Existing []byte
}

// LookupIdempotency returns the cached response for key. A record older than
// the TTL is deleted and reported as a miss. A miss is not an error.
func (s *Store) LookupIdempotency(ctx context.Context, key string) ([]byte, bool, error) {
	rec, ok, err := readIdempotency(ctx, s.db, key)
	if err != nil {
		return nil, false, fmt.Errorf("lookup idempotency: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	if rec.Expired(s.now(), s.ttl) {
		// created_at guard: never delete a fresh record that replaced this one
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM idempotency_records WHERE key = ? AND created_at = ?`,
			key, toNanos(rec.CreatedAt))
		if err != nil {
			return nil, false, fmt.Errorf("lookup idempotency: delete expired: %w", err)
		}
		return nil, false, nil
	}
	return rec.Response, true, nil
}

// ReadIdempotency returns the raw record for key regardless of expiry.
func (s *Store) ReadIdempotency(ctx context.Context, key string) (ir.IdempotencyRecord, error) {
	rec, ok, err := readIdempotency(ctx, s.db, key)
	if err != nil {
		return ir.IdempotencyRecord{}, fmt.Errorf("read idempotency: %w", err)
	}
	if !ok {
		return ir.IdempotencyRecord{}, fmt.Errorf("read idempotency %q: %w", key, ErrNotFound)
	}
	return rec, nil
}

// RecordIdempotency stores response under key.
//
// The insert is attempted first. When the PRIMARY KEY rejects it, the
// existing row is re-read inside the same transaction and returned as
// AlreadyExists. An existing row that has outlived the TTL is absent to every
// reader, so it is replaced and the call reports Stored.
func (t *Tx) RecordIdempotency(ctx context.Context, key string, response []byte) (RecordResult, error) {
	if key == "" {
		return RecordResult{}, errors.New("record idempotency: empty key")
	}

	now := t.s.now()
	err := insertIdempotency(ctx, t.tx, key, response, now)
	if err == nil {
		return RecordResult{Outcome: Stored}, nil
	}
	if !isUniqueViolation(err) {
		return RecordResult{}, fmt.Errorf("record idempotency: %w", err)
	}

	existing, ok, err := readIdempotency(ctx, t.tx, key)
	if err != nil {
		return RecordResult{}, fmt.Errorf("record idempotency: re-read: %w", err)
	}
	if !ok {
		return RecordResult{}, fmt.Errorf("record idempotency: key %q conflicted but no row found", key)
	}

	if existing.Expired(now, t.s.ttl) {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM idempotency_records WHERE key = ?`, key); err != nil {
			return RecordResult{}, fmt.Errorf("record idempotency: replace expired: %w", err)
		}
		if err := insertIdempotency(ctx, t.tx, key, response, now); err != nil {
			return RecordResult{}, fmt.Errorf("record idempotency: replace expired: %w", err)
		}
		return RecordResult{Outcome: Stored}, nil
	}

	return RecordResult{Outcome: AlreadyExists, Existing: existing.Response}, nil
}

// PurgeIdempotencyBefore deletes records created before cutoff and returns
// how many were removed.
func (s *Store) PurgeIdempotencyBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE created_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge idempotency: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge idempotency: %w", err)
	}
	return n, nil
}

// CountIdempotency returns the number of stored records, expired or not.
func (s *Store) CountIdempotency(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM idempotency_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count idempotency: %w", err)
	}
	return n, nil
}

func insertIdempotency(ctx context.Context, q querier, key string, response []byte, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO idempotency_records (key, response, response_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, key, response, ir.ResponseFingerprint(response), toNanos(now))
	return err
}

func readIdempotency(ctx context.Context, q querier, key string) (ir.IdempotencyRecord, bool, error) {
	var (
		rec       ir.IdempotencyRecord
		createdAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT key, response, response_hash, created_at
		FROM idempotency_records
		WHERE key = ?
	`, key).Scan(&rec.Key, &rec.Response, &rec.ResponseHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return ir.IdempotencyRecord{}, false, err
	}
	rec.CreatedAt = fromNanos(createdAt)
	return rec, true, nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
