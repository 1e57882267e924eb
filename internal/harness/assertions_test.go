package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/store"
)

func testAudit() []ir.AuditEntry {
	return []ir.AuditEntry{
		{ID: 1, Actor: "buyer", Action: "price_change.applied", Target: ir.LineTarget("PO-1", 10)},
		{ID: 2, Actor: "clerk", Action: "receipt_create.applied", Target: ir.Target{EntityID: "PO-1"}, NeedsReview: true},
		{ID: 3, Actor: "buyer", Action: "price_change.applied", Target: ir.LineTarget("PO-1", 20)},
	}
}

func assertionContext(t *testing.T) *AssertionContext {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &AssertionContext{
		Ctx:   context.Background(),
		Store: st,
		ERP:   erp.NewMemory(),
		Audit: testAudit(),
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	actx := assertionContext(t)

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertAuditCount, Count: 3},
		{Type: AssertAuditCount, Action: "price_change.applied", Count: 2},
		{Type: AssertAuditContains, Action: "receipt_create.applied", Target: "PO-1"},
		{Type: AssertAuditContains, Action: "price_change.applied", Target: "PO-1/20"},
		{Type: AssertNeedsReviewCount, Count: 1},
		{Type: AssertIdempotencyCount, Count: 0},
		{Type: AssertERPWrites, Count: 0},
		{Type: AssertERPWrites, Op: erp.OpSetPrice, Count: 0},
	}, actx)

	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"audit count", Assertion{Type: AssertAuditCount, Count: 1}, "Expected: 1 audit entries"},
		{"audit count by action", Assertion{Type: AssertAuditCount, Action: "date_change.applied", Count: 1}, "0 date_change.applied entries"},
		{"audit contains", Assertion{Type: AssertAuditContains, Action: "price_change.applied", Target: "PO-1/30"}, "not found in ledger"},
		{"needs review", Assertion{Type: AssertNeedsReviewCount, Count: 0}, "1 entries flagged for review"},
		{"idempotency", Assertion{Type: AssertIdempotencyCount, Count: 2}, "0 idempotency records"},
		{"erp writes", Assertion{Type: AssertERPWrites, Op: erp.OpSetDate, Count: 1}, "0 set_date writes"},
		{"unknown", Assertion{Type: "final_state"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions([]Assertion{tt.assertion}, assertionContext(t))
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
		})
	}
}

func TestAssertionError_ListsLedger(t *testing.T) {
	err := &AssertionError{
		Type:     AssertNeedsReviewCount,
		Expected: "0 entries flagged for review",
		Actual:   "1 entries flagged for review",
		Audit:    testAudit(),
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: needs_review_count")
	assert.Contains(t, msg, "[2] receipt_create.applied PO-1 by clerk [needs review]")
	assert.Contains(t, msg, "[1] price_change.applied PO-1/10 by buyer\n")
}
