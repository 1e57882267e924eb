package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/erpgate/internal/engine"
	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/store"
)

// seedDatabase runs two commands through the workflow at the given instant
// and returns the database path:
//   - corr-1: keyed date change "move-po1" on PO-1/10
//   - corr-2: unkeyed price change on PO-2/1, 40 -> 42
func seedDatabase(t *testing.T, at time.Time) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "erpgate.db")
	clock := func() time.Time { return at }

	st, err := store.Open(path, store.WithClock(clock))
	require.NoError(t, err)
	defer st.Close()

	mem := erp.NewMemory()
	mem.PutOrderLine(erp.OrderLine{
		OrderID:      "PO-1",
		LineNo:       10,
		ItemID:       "ITEM-A",
		Status:       erp.StatusOpen,
		PromisedDate: erp.Day(at.AddDate(0, 0, 14)),
		UnitPrice:    100,
		Quantity:     20,
	})
	mem.PutOrderLine(erp.OrderLine{
		OrderID:      "PO-2",
		LineNo:       1,
		ItemID:       "ITEM-B",
		Status:       erp.StatusOpen,
		PromisedDate: erp.Day(at.AddDate(0, 0, 14)),
		UnitPrice:    40,
		Quantity:     5,
	})

	wf := engine.New(mem, st,
		engine.WithClock(engine.ClockFunc(clock)),
		engine.WithCorrelation(engine.NewFixedGenerator("corr-1", "corr-2")),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	ctx := context.Background()
	_, err = wf.Execute(ctx, engine.Command{
		Change:         engine.DateChange{OrderID: "PO-1", LineNo: 10, NewDate: erp.Day(at.AddDate(0, 0, 30))},
		Actor:          "planner@example.com",
		IdempotencyKey: "move-po1",
		Reason:         "vendor delay",
	})
	require.NoError(t, err)
	_, err = wf.Execute(ctx, engine.Command{
		Change: engine.PriceChange{OrderID: "PO-2", LineNo: 1, NewPrice: 42},
		Actor:  "buyer@example.com",
	})
	require.NoError(t, err)
	return path
}

// execute runs the full root command, config loading included.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
