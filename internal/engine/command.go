package engine

import (
	"time"

	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/ir"
)

// Command is one mutating request. It lives for a single Execute call and is
// never persisted.
type Command struct {
	Change Change

	// Actor identifies who asked for the change. Required.
	Actor string

	// CorrelationID ties log lines and the audit entry together. Generated
	// when empty.
	CorrelationID string

	// IdempotencyKey is opt-in. Without it the command is never
	// deduplicated.
	IdempotencyKey string

	// Reason is free text recorded on the audit entry.
	Reason string
}

// Change is the proposed mutation. The set of implementations is closed:
// DateChange, PriceChange, QuantityChange, ReceiptCreation, ReturnCreation.
type Change interface {
	Kind() ir.OperationKind
	isChange()
}

// DateChange moves an order line's promised date.
type DateChange struct {
	OrderID string
	LineNo  int
	NewDate time.Time
}

// PriceChange sets an order line's unit price.
type PriceChange struct {
	OrderID  string
	LineNo   int
	NewPrice float64
}

// QuantityChange sets an order line's ordered quantity.
type QuantityChange struct {
	OrderID     string
	LineNo      int
	NewQuantity float64
}

// ReceiptCreation books a goods receipt.
type ReceiptCreation struct {
	Request erp.ReceiptRequest
}

// ReturnCreation raises a return against a receipt.
type ReturnCreation struct {
	Request erp.ReturnRequest
}

func (DateChange) Kind() ir.OperationKind      { return ir.OpDateChange }
func (PriceChange) Kind() ir.OperationKind     { return ir.OpPriceChange }
func (QuantityChange) Kind() ir.OperationKind  { return ir.OpQuantityChange }
func (ReceiptCreation) Kind() ir.OperationKind { return ir.OpReceiptCreate }
func (ReturnCreation) Kind() ir.OperationKind  { return ir.OpReturnCreate }

func (DateChange) isChange()      {}
func (PriceChange) isChange()     {}
func (QuantityChange) isChange()  {}
func (ReceiptCreation) isChange() {}
func (ReturnCreation) isChange()  {}
