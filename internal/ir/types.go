package ir

import (
	"fmt"
	"time"
)

// OperationKind identifies one of the mutations the pipeline performs
// against the ERP.
type OperationKind string

const (
	OpDateChange     OperationKind = "date_change"
	OpPriceChange    OperationKind = "price_change"
	OpQuantityChange OperationKind = "quantity_change"
	OpReceiptCreate  OperationKind = "receipt_create"
	OpReturnCreate   OperationKind = "return_create"
)

// ValidOperationKinds lists every supported operation kind.
var ValidOperationKinds = map[OperationKind]bool{
	OpDateChange:     true,
	OpPriceChange:    true,
	OpQuantityChange: true,
	OpReceiptCreate:  true,
	OpReturnCreate:   true,
}

// LifecycleApplied is the lifecycle event recorded for a mutation that
// reached the ERP.
const LifecycleApplied = "applied"

// Action returns the audit action for an operation kind and lifecycle event,
// e.g. "price_change.applied".
func Action(kind OperationKind, event string) string {
	return fmt.Sprintf("%s.%s", kind, event)
}

// Target identifies the ERP entity a mutation touched. SubIndex is the line
// number for order-line edits and nil for document-level operations.
type Target struct {
	EntityID string `json:"entity_id"`
	SubIndex *int   `json:"sub_index,omitempty"`
}

// LineTarget builds a Target for an order line.
func LineTarget(entityID string, line int) Target {
	return Target{EntityID: entityID, SubIndex: &line}
}

// String renders "PO-1/10" for lines and "PO-1" for documents.
func (t Target) String() string {
	if t.SubIndex == nil {
		return t.EntityID
	}
	return fmt.Sprintf("%s/%d", t.EntityID, *t.SubIndex)
}

// IRObject returns the payload form of the target.
func (t Target) IRObject() IRObject {
	obj := IRObject{"entity_id": IRString(t.EntityID)}
	if t.SubIndex != nil {
		obj["sub_index"] = IRInt(*t.SubIndex)
	}
	return obj
}

// AuditEntry is one immutable row of the audit ledger. It exists iff the ERP
// mutation it describes succeeded.
type AuditEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Actor          string    `json:"actor"`
	Action         string    `json:"action"`
	Target         Target    `json:"target"`
	Previous       IRObject  `json:"previous,omitempty"` // nil for document creation
	Next           IRObject  `json:"next,omitempty"`
	Reason         string    `json:"reason"`
	CorrelationID  string    `json:"correlation_id"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	NeedsReview    bool      `json:"needs_review"`
}

// IdempotencyRecord is a cached mutation response. At most one exists per key
// and it is never updated.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	Response     []byte    `json:"response"`      // canonical JSON
	ResponseHash string    `json:"response_hash"` // ResponseFingerprint(Response)
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the record is older than ttl at now. A ttl of zero
// or less never expires.
func (r IdempotencyRecord) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(r.CreatedAt) > ttl
}
