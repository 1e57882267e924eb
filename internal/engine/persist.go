package engine

import (
	"bytes"
	"context"

	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/store"
)

type persisted struct {
	auditID  int64
	conflict bool
	existing []byte
}

// persist records the response under key (when present) and appends the
// audit entry in one transaction.
//
// The ERP has already been mutated, so the write runs detached from the
// caller's cancellation: an abandoned request still leaves its audit entry.
func (w *Workflow) persist(ctx context.Context, key string, raw []byte, entry ir.AuditEntry) (persisted, error) {
	ctx = context.WithoutCancel(ctx)

	var p persisted
	err := w.storage.WithTx(ctx, func(tx *store.Tx) error {
		if key != "" {
			rec, err := tx.RecordIdempotency(ctx, key, raw)
			if err != nil {
				return err
			}
			if rec.Outcome == store.AlreadyExists && !bytes.Equal(rec.Existing, raw) {
				p.conflict = true
				p.existing = rec.Existing
			}
		}

		entry.NeedsReview = p.conflict
		id, err := tx.AppendAudit(ctx, entry)
		if err != nil {
			return err
		}
		p.auditID = id
		return nil
	})
	if err != nil {
		return persisted{}, err
	}
	return p, nil
}
