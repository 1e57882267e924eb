package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string          // Assertion type for categorization
	Expected string          // Human-readable expected outcome
	Actual   string          // Human-readable actual outcome
	Audit    []ir.AuditEntry // Ledger at the time of the failure
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Audit) > 0 {
		fmt.Fprintf(&buf, "\nAudit ledger:\n")
		for _, entry := range e.Audit {
			review := ""
			if entry.NeedsReview {
				review = " [needs review]"
			}
			fmt.Fprintf(&buf, "  [%d] %s %s by %s%s\n", entry.ID, entry.Action, entry.Target, entry.Actor, review)
		}
	}
	return buf.String()
}

// AssertionContext provides the state assertions are evaluated against.
type AssertionContext struct {
	Ctx   context.Context
	Store *store.Store
	ERP   *erp.Memory
	Audit []ir.AuditEntry
}

// EvaluateAssertions evaluates all assertions.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertERPWrites:
			err = assertERPWrites(actx, assertion)
		case AssertAuditCount:
			err = assertAuditCount(actx, assertion)
		case AssertAuditContains:
			err = assertAuditContains(actx, assertion)
		case AssertIdempotencyCount:
			err = assertIdempotencyCount(actx, assertion)
		case AssertNeedsReviewCount:
			err = assertNeedsReviewCount(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertERPWrites(actx *AssertionContext, a Assertion) error {
	if actx.ERP == nil {
		return fmt.Errorf("erp_writes requires an erp")
	}
	got := actx.ERP.Writes(a.Op)
	if got == a.Count {
		return nil
	}
	what := "erp writes"
	if a.Op != "" {
		what = a.Op + " writes"
	}
	return &AssertionError{
		Type:     AssertERPWrites,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Audit:    actx.Audit,
	}
}

// assertAuditCount counts ledger entries, optionally only those with
// a.Action.
func assertAuditCount(actx *AssertionContext, a Assertion) error {
	got := 0
	for _, e := range actx.Audit {
		if a.Action == "" || e.Action == a.Action {
			got++
		}
	}
	if got == a.Count {
		return nil
	}
	what := "audit entries"
	if a.Action != "" {
		what = a.Action + " entries"
	}
	return &AssertionError{
		Type:     AssertAuditCount,
		Expected: fmt.Sprintf("%d %s", a.Count, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
		Audit:    actx.Audit,
	}
}

func assertAuditContains(actx *AssertionContext, a Assertion) error {
	for _, e := range actx.Audit {
		if e.Action == a.Action && e.Target.String() == a.Target {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertAuditContains,
		Expected: fmt.Sprintf("entry %s on %s", a.Action, a.Target),
		Actual:   "not found in ledger",
		Audit:    actx.Audit,
	}
}

func assertIdempotencyCount(actx *AssertionContext, a Assertion) error {
	if actx.Store == nil {
		return fmt.Errorf("idempotency_count requires database context")
	}
	got, err := actx.Store.CountIdempotency(actx.Ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertIdempotencyCount,
			Expected: fmt.Sprintf("%d idempotency records", a.Count),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertIdempotencyCount,
		Expected: fmt.Sprintf("%d idempotency records", a.Count),
		Actual:   fmt.Sprintf("%d idempotency records", got),
		Audit:    actx.Audit,
	}
}

func assertNeedsReviewCount(actx *AssertionContext, a Assertion) error {
	got := 0
	for _, e := range actx.Audit {
		if e.NeedsReview {
			got++
		}
	}
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertNeedsReviewCount,
		Expected: fmt.Sprintf("%d entries flagged for review", a.Count),
		Actual:   fmt.Sprintf("%d entries flagged for review", got),
		Audit:    actx.Audit,
	}
}
