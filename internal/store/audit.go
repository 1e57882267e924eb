package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/erpgate/internal/ir"
)

// TruncationMarker ends every reason cut to fit the limit.
const TruncationMarker = "...[truncated]"

// AuditFilter selects ledger entries. Zero fields match everything.
type AuditFilter struct {
	EntityID       string
	SubIndex       *int
	CorrelationID  string
	IdempotencyKey string
	NeedsReview    bool // only entries flagged for review
	Limit          int
}

// AppendAudit appends one entry and returns its id. A zero Timestamp is
// stamped with the store clock. Reasons longer than the configured limit are
// truncated.
func (t *Tx) AppendAudit(ctx context.Context, entry ir.AuditEntry) (int64, error) {
	if err := validateEntry(entry); err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = t.s.now()
	}

	prev, err := marshalSnapshot(entry.Previous)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	next, err := marshalSnapshot(entry.Next)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_entries
		(recorded_at, actor, action, entity_id, sub_index, previous, next,
		 reason, correlation_id, idempotency_key, needs_review)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		toNanos(entry.Timestamp),
		entry.Actor,
		entry.Action,
		entry.Target.EntityID,
		nullInt(entry.Target.SubIndex),
		prev,
		next,
		TruncateReason(entry.Reason, t.s.reasonLimit),
		entry.CorrelationID,
		nullString(entry.IdempotencyKey),
		boolInt(entry.NeedsReview),
	)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append audit: last insert id: %w", err)
	}
	return id, nil
}

// AppendAudit appends one entry in its own transaction.
func (s *Store) AppendAudit(ctx context.Context, entry ir.AuditEntry) (int64, error) {
	var id int64
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.AppendAudit(ctx, entry)
		return err
	})
	return id, err
}

// ReadAudit returns the entry with the given id.
func (s *Store) ReadAudit(ctx context.Context, id int64) (ir.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, auditSelect+` WHERE id = ?`, id)
	if err != nil {
		return ir.AuditEntry{}, fmt.Errorf("read audit: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return ir.AuditEntry{}, fmt.Errorf("read audit: %w", err)
		}
		return ir.AuditEntry{}, fmt.Errorf("read audit %d: %w", id, ErrNotFound)
	}
	entry, err := scanAudit(rows)
	if err != nil {
		return ir.AuditEntry{}, fmt.Errorf("read audit: %w", err)
	}
	return entry, nil
}

// QueryAudit returns matching entries in append order (id ASC).
func (s *Store) QueryAudit(ctx context.Context, f AuditFilter) ([]ir.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.SubIndex != nil {
		where = append(where, "sub_index = ?")
		args = append(args, *f.SubIndex)
	}
	if f.CorrelationID != "" {
		where = append(where, "correlation_id = ?")
		args = append(args, f.CorrelationID)
	}
	if f.IdempotencyKey != "" {
		where = append(where, "idempotency_key = ?")
		args = append(args, f.IdempotencyKey)
	}
	if f.NeedsReview {
		where = append(where, "needs_review = 1")
	}

	query := auditSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []ir.AuditEntry
	for rows.Next() {
		e, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("query audit: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	return entries, nil
}

// CountAudit returns the number of ledger entries.
func (s *Store) CountAudit(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count audit: %w", err)
	}
	return n, nil
}

// PurgeAuditBefore deletes entries recorded before cutoff and returns how
// many were removed. It is the only way rows leave the ledger.
func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_entries WHERE recorded_at < ?`, toNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit: %w", err)
	}
	return n, nil
}

// TruncateReason cuts reason to at most limit runes. A cut reason ends with
// TruncationMarker and is exactly limit runes long. limit <= 0 disables the
// cap.
func TruncateReason(reason string, limit int) string {
	if limit <= 0 {
		return reason
	}
	runes := []rune(reason)
	if len(runes) <= limit {
		return reason
	}
	marker := []rune(TruncationMarker)
	if limit <= len(marker) {
		return string(marker[:limit])
	}
	return string(runes[:limit-len(marker)]) + TruncationMarker
}

const auditSelect = `
	SELECT id, recorded_at, actor, action, entity_id, sub_index, previous, next,
	       reason, correlation_id, idempotency_key, needs_review
	FROM audit_entries`

func scanAudit(rows *sql.Rows) (ir.AuditEntry, error) {
	var (
		e          ir.AuditEntry
		recordedAt int64
		subIndex   sql.NullInt64
		prev, next sql.NullString
		key        sql.NullString
		review     int
	)
	err := rows.Scan(&e.ID, &recordedAt, &e.Actor, &e.Action, &e.Target.EntityID, &subIndex,
		&prev, &next, &e.Reason, &e.CorrelationID, &key, &review)
	if err != nil {
		return ir.AuditEntry{}, err
	}

	e.Timestamp = fromNanos(recordedAt)
	if subIndex.Valid {
		n := int(subIndex.Int64)
		e.Target.SubIndex = &n
	}
	if e.Previous, err = unmarshalSnapshot(prev); err != nil {
		return ir.AuditEntry{}, err
	}
	if e.Next, err = unmarshalSnapshot(next); err != nil {
		return ir.AuditEntry{}, err
	}
	e.IdempotencyKey = key.String
	e.NeedsReview = review != 0
	return e, nil
}

func validateEntry(e ir.AuditEntry) error {
	switch {
	case e.Actor == "":
		return errors.New("actor is required")
	case e.Action == "":
		return errors.New("action is required")
	case e.Target.EntityID == "":
		return errors.New("target entity_id is required")
	case e.CorrelationID == "":
		return errors.New("correlation_id is required")
	}
	return nil
}
