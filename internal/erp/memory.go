package erp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Write operation names reported to hooks and counters.
const (
	OpSetDate       = "set_date"
	OpSetPrice      = "set_price"
	OpSetQuantity   = "set_quantity"
	OpCreateReceipt = "create_receipt"
	OpCreateReturn  = "create_return"
)

// Memory is an in-process ERP. It backs the scenario harness and the CLI
// test command, and lets tests count writes, inject failures and run code at
// the moment a write reaches the ERP.
//
// Thread-safety: all methods are safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	lines    map[LineRef]OrderLine
	receipts map[string]Receipt
	returns  map[string]Return
	writes   map[string]int
	fetches  int
	failures map[string][]error
	receipt  int
	ret      int

	// BeforeWrite, when set, runs before every write is applied, outside the
	// lock. Tests use it to interleave a competing command.
	BeforeWrite func(op string)
}

// NewMemory creates an empty in-memory ERP.
func NewMemory() *Memory {
	return &Memory{
		lines:    make(map[LineRef]OrderLine),
		receipts: make(map[string]Receipt),
		returns:  make(map[string]Return),
		writes:   make(map[string]int),
		failures: make(map[string][]error),
	}
}

// PutOrderLine seeds or replaces an order line.
func (m *Memory) PutOrderLine(l OrderLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[l.Ref()] = l
}

// PutReceipt seeds or replaces a receipt.
func (m *Memory) PutReceipt(r Receipt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[r.ReceiptID] = r
}

// FailNext makes the next write of op return err. Calls queue up.
func (m *Memory) FailNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = append(m.failures[op], err)
}

// Writes returns how many writes of op succeeded. An empty op counts all.
func (m *Memory) Writes(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op != "" {
		return m.writes[op]
	}
	total := 0
	for _, n := range m.writes {
		total += n
	}
	return total
}

// Fetches returns how many reads were served.
func (m *Memory) Fetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

// OrderLine returns the current state of a line without counting a fetch.
func (m *Memory) OrderLine(orderID string, lineNo int) (OrderLine, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.lines[LineRef{orderID, lineNo}]
	return l, ok
}

func (m *Memory) FetchOrderLine(ctx context.Context, orderID string, lineNo int) (OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return OrderLine{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	l, ok := m.lines[LineRef{orderID, lineNo}]
	if !ok {
		return OrderLine{}, NotFound("order line", LineRef{orderID, lineNo}.String())
	}
	return l, nil
}

func (m *Memory) FetchReceipt(ctx context.Context, receiptID string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	r, ok := m.receipts[receiptID]
	if !ok {
		return Receipt{}, NotFound("receipt", receiptID)
	}
	return r, nil
}

func (m *Memory) SetDate(ctx context.Context, orderID string, lineNo int, date time.Time) (OrderLine, error) {
	return m.updateLine(ctx, OpSetDate, orderID, lineNo, func(l *OrderLine) {
		l.PromisedDate = Day(date)
	})
}

func (m *Memory) SetPrice(ctx context.Context, orderID string, lineNo int, price float64) (OrderLine, error) {
	return m.updateLine(ctx, OpSetPrice, orderID, lineNo, func(l *OrderLine) {
		l.UnitPrice = price
	})
}

func (m *Memory) SetQuantity(ctx context.Context, orderID string, lineNo int, quantity float64) (OrderLine, error) {
	return m.updateLine(ctx, OpSetQuantity, orderID, lineNo, func(l *OrderLine) {
		l.Quantity = quantity
	})
}

func (m *Memory) CreateReceipt(ctx context.Context, req ReceiptRequest) (Receipt, error) {
	if err := m.beginWrite(ctx, OpCreateReceipt); err != nil {
		return Receipt{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpCreateReceipt); err != nil {
		return Receipt{}, err
	}

	for _, rl := range req.Lines {
		if _, ok := m.lines[rl.Ref()]; !ok {
			return Receipt{}, NotFound("order line", rl.Ref().String())
		}
	}

	m.receipt++
	r := Receipt{
		ReceiptID:        fmt.Sprintf("RCPT-%04d", m.receipt),
		VendorShipmentNo: req.ShipmentNo(),
	}
	for i, rl := range req.Lines {
		key := rl.Ref()
		l := m.lines[key]
		l.ReceivedQuantity += rl.Quantity
		m.lines[key] = l
		r.Lines = append(r.Lines, ReceiptLine{
			LineNo:      i + 1,
			OrderID:     rl.OrderID,
			OrderLineNo: rl.LineNo,
			ItemID:      l.ItemID,
			Quantity:    rl.Quantity,
		})
	}
	m.receipts[r.ReceiptID] = r
	m.writes[OpCreateReceipt]++
	return r, nil
}

func (m *Memory) CreateReturn(ctx context.Context, req ReturnRequest) (Return, error) {
	if err := m.beginWrite(ctx, OpCreateReturn); err != nil {
		return Return{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(OpCreateReturn); err != nil {
		return Return{}, err
	}

	if _, ok := m.receipts[req.ReceiptID]; !ok {
		return Return{}, NotFound("receipt", req.ReceiptID)
	}

	m.ret++
	r := Return{
		ReturnID:  fmt.Sprintf("RTN-%04d", m.ret),
		ReceiptID: req.ReceiptID,
	}
	for _, rl := range req.Lines {
		r.Lines = append(r.Lines, ReturnLine{ReceiptLineNo: rl.ReceiptLineNo, Quantity: rl.Quantity})
	}
	m.returns[r.ReturnID] = r
	m.writes[OpCreateReturn]++
	return r, nil
}

func (m *Memory) updateLine(ctx context.Context, op, orderID string, lineNo int, apply func(*OrderLine)) (OrderLine, error) {
	if err := m.beginWrite(ctx, op); err != nil {
		return OrderLine{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(op); err != nil {
		return OrderLine{}, err
	}

	key := LineRef{orderID, lineNo}
	l, ok := m.lines[key]
	if !ok {
		return OrderLine{}, NotFound("order line", LineRef{orderID, lineNo}.String())
	}
	apply(&l)
	m.lines[key] = l
	m.writes[op]++
	return l, nil
}

func (m *Memory) beginWrite(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.BeforeWrite != nil {
		m.BeforeWrite(op)
	}
	return nil
}

// takeFailure pops a queued failure for op. Caller holds m.mu.
func (m *Memory) takeFailure(op string) error {
	queue := m.failures[op]
	if len(queue) == 0 {
		return nil
	}
	m.failures[op] = queue[1:]
	return queue[0]
}
