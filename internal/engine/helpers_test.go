package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/store"
	"github.com/roach88/erpgate/internal/testutil"
)

var today = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

// testEnv bundles a workflow with the collaborators tests inspect.
type testEnv struct {
	wf    *Workflow
	erp   *erp.Memory
	store *store.Store
	clock *testutil.FakeClock
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// seedERP loads the fixture every workflow test starts from:
//   - PO-1/10: open, price 100, qty 20, nothing received
//   - PO-1/20: open, price 50, qty 10, 5 received
//   - RCPT-0100: 4 units of PO-1/10
func seedERP() *erp.Memory {
	mem := erp.NewMemory()
	orderDate := day(2026, 10, 1)
	mem.PutOrderLine(erp.OrderLine{
		OrderID:      "PO-1",
		LineNo:       10,
		ItemID:       "ITEM-A",
		Status:       erp.StatusOpen,
		OrderDate:    &orderDate,
		PromisedDate: day(2026, 11, 1),
		UnitPrice:    100,
		Quantity:     20,
	})
	mem.PutOrderLine(erp.OrderLine{
		OrderID:          "PO-1",
		LineNo:           20,
		ItemID:           "ITEM-B",
		Status:           erp.StatusOpen,
		PromisedDate:     day(2026, 11, 1),
		UnitPrice:        50,
		Quantity:         10,
		ReceivedQuantity: 5,
	})
	mem.PutReceipt(erp.Receipt{
		ReceiptID:        "RCPT-0100",
		VendorShipmentNo: "SHIP-9",
		Lines:            []erp.ReceiptLine{{LineNo: 1, OrderID: "PO-1", OrderLineNo: 10, ItemID: "ITEM-A", Quantity: 4}},
	})
	return mem
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEnv wires a workflow over a seeded in-memory ERP and a fresh store.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clock := testutil.NewFakeClock(today)
	st, err := store.Open(filepath.Join(t.TempDir(), "erpgate.db"), store.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mem := seedERP()
	base := []Option{
		WithClock(clock),
		WithCorrelation(testutil.NewSequentialGenerator("")),
		WithLogger(quietLogger()),
	}
	return &testEnv{
		wf:    New(mem, st, append(base, opts...)...),
		erp:   mem,
		store: st,
		clock: clock,
	}
}

func (e *testEnv) auditEntries(t *testing.T) []ir.AuditEntry {
	t.Helper()
	entries, err := e.store.QueryAudit(context.Background(), store.AuditFilter{})
	require.NoError(t, err)
	return entries
}

func (e *testEnv) idempotencyCount(t *testing.T) int {
	t.Helper()
	n, err := e.store.CountIdempotency(context.Background())
	require.NoError(t, err)
	return n
}

// assertNoTrace checks that nothing reached the ERP or the store.
func (e *testEnv) assertNoTrace(t *testing.T) {
	t.Helper()
	require.Zero(t, e.erp.Writes(""), "erp writes")
	require.Empty(t, e.auditEntries(t), "audit entries")
	require.Zero(t, e.idempotencyCount(t), "idempotency records")
}

func priceCommand(price float64, key string) Command {
	return Command{
		Change:         PriceChange{OrderID: "PO-1", LineNo: 10, NewPrice: price},
		Actor:          "buyer@example.com",
		IdempotencyKey: key,
		Reason:         "supplier increase",
	}
}

// failingLookup makes every idempotency lookup fail.
type failingLookup struct {
	*store.Store
}

func (failingLookup) LookupIdempotency(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("database is locked")
}
