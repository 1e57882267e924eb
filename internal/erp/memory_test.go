package erp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.PutOrderLine(OrderLine{
		OrderID:      "PO-1",
		LineNo:       10,
		ItemID:       "ITEM-A",
		Status:       StatusOpen,
		PromisedDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		UnitPrice:    100,
		Quantity:     20,
	})
	m.PutOrderLine(OrderLine{
		OrderID:  "PO-1",
		LineNo:   20,
		ItemID:   "ITEM-B",
		Status:   StatusOpen,
		Quantity: 5,
	})
	return m
}

func TestMemory_FetchOrderLine(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	l, err := m.FetchOrderLine(ctx, "PO-1", 10)
	require.NoError(t, err)
	assert.Equal(t, "ITEM-A", l.ItemID)
	assert.Equal(t, 1, m.Fetches())

	_, err = m.FetchOrderLine(ctx, "PO-1", 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "PO-1/99")
}

func TestMemory_FetchReceipt_NotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.FetchReceipt(context.Background(), "RCPT-9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestMemory_SetPrice(t *testing.T) {
	m := seededMemory(t)

	l, err := m.SetPrice(context.Background(), "PO-1", 10, 115)
	require.NoError(t, err)
	assert.Equal(t, 115.0, l.UnitPrice)
	assert.Equal(t, 1, m.Writes(OpSetPrice))

	stored, ok := m.OrderLine("PO-1", 10)
	require.True(t, ok)
	assert.Equal(t, 115.0, stored.UnitPrice)
}

func TestMemory_SetDate_TruncatesToDay(t *testing.T) {
	m := seededMemory(t)

	l, err := m.SetDate(context.Background(), "PO-1", 10, time.Date(2026, 11, 3, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-11-03", FormatDate(l.PromisedDate))
	assert.Equal(t, 0, l.PromisedDate.Hour())
}

func TestMemory_SetQuantity_MissingLine(t *testing.T) {
	m := seededMemory(t)

	_, err := m.SetQuantity(context.Background(), "PO-2", 10, 3)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 0, m.Writes(""))
}

func TestMemory_CreateReceipt(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	r, err := m.CreateReceipt(ctx, ReceiptRequest{Lines: []ReceiptLineRequest{
		{OrderID: "PO-1", LineNo: 10, Quantity: 4, VendorShipmentNo: "SHIP-1"},
		{OrderID: "PO-1", LineNo: 20, Quantity: 5, VendorShipmentNo: "SHIP-1"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "RCPT-0001", r.ReceiptID)
	assert.Equal(t, "SHIP-1", r.VendorShipmentNo)
	require.Len(t, r.Lines, 2)
	assert.Equal(t, 1, r.Lines[0].LineNo)
	assert.Equal(t, "ITEM-B", r.Lines[1].ItemID)

	l, _ := m.OrderLine("PO-1", 10)
	assert.Equal(t, 4.0, l.ReceivedQuantity)

	fetched, err := m.FetchReceipt(ctx, "RCPT-0001")
	require.NoError(t, err)
	assert.Equal(t, r, fetched)

	r2, err := m.CreateReceipt(ctx, ReceiptRequest{Lines: []ReceiptLineRequest{
		{OrderID: "PO-1", LineNo: 10, Quantity: 1, VendorShipmentNo: "SHIP-2"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "RCPT-0002", r2.ReceiptID)
}

func TestMemory_CreateReturn(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	m.PutReceipt(Receipt{ReceiptID: "RCPT-7", Lines: []ReceiptLine{{LineNo: 1, OrderID: "PO-1", OrderLineNo: 10, Quantity: 4}}})

	r, err := m.CreateReturn(ctx, ReturnRequest{ReceiptID: "RCPT-7", Lines: []ReturnLineRequest{{ReceiptLineNo: 1, Quantity: 2}}})
	require.NoError(t, err)
	assert.Equal(t, "RTN-0001", r.ReturnID)
	assert.Equal(t, []ReturnLine{{ReceiptLineNo: 1, Quantity: 2}}, r.Lines)

	_, err = m.CreateReturn(ctx, ReturnRequest{ReceiptID: "RCPT-8"})
	assert.True(t, IsNotFound(err))
	assert.Equal(t, 1, m.Writes(OpCreateReturn))
}

func TestMemory_FailNext(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()
	boom := errors.New("erp unavailable")
	m.FailNext(OpSetPrice, boom)

	_, err := m.SetPrice(ctx, "PO-1", 10, 120)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Writes(OpSetPrice))

	l, _ := m.OrderLine("PO-1", 10)
	assert.Equal(t, 100.0, l.UnitPrice, "failed write must not apply")

	_, err = m.SetPrice(ctx, "PO-1", 10, 120)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Writes(OpSetPrice))
}

func TestMemory_BeforeWrite(t *testing.T) {
	m := seededMemory(t)
	var seen []string
	m.BeforeWrite = func(op string) { seen = append(seen, op) }

	_, err := m.SetQuantity(context.Background(), "PO-1", 10, 25)
	require.NoError(t, err)
	_, err = m.FetchOrderLine(context.Background(), "PO-1", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{OpSetQuantity}, seen)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := seededMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SetPrice(ctx, "PO-1", 10, 101)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.Writes(""))
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	m := seededMemory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.CreateReceipt(ctx, ReceiptRequest{Lines: []ReceiptLineRequest{
				{OrderID: "PO-1", LineNo: 10, Quantity: 1, VendorShipmentNo: "S"},
			}})
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, m.Writes(OpCreateReceipt))
	l, _ := m.OrderLine("PO-1", 10)
	assert.Equal(t, 20.0, l.ReceivedQuantity)
}
