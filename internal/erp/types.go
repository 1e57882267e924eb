package erp

import (
	"fmt"
	"time"

	"github.com/roach88/erpgate/internal/ir"
)

// DateLayout is the calendar-date format used in payloads and fixtures.
const DateLayout = "2006-01-02"

// Status is the lifecycle state of an order line as reported by the ERP.
type Status string

const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
	StatusInvoiced  Status = "invoiced"
)

// OrderLine is the snapshot of one purchase order line.
type OrderLine struct {
	OrderID          string     `json:"order_id" yaml:"order_id"`
	LineNo           int        `json:"line_no" yaml:"line_no"`
	ItemID           string     `json:"item_id" yaml:"item_id"`
	Status           Status     `json:"status" yaml:"status"`
	OrderDate        *time.Time `json:"order_date,omitempty" yaml:"order_date,omitempty"`
	PromisedDate     time.Time  `json:"promised_date" yaml:"promised_date"`
	UnitPrice        float64    `json:"unit_price" yaml:"unit_price"`
	Quantity         float64    `json:"quantity" yaml:"quantity"`
	ReceivedQuantity float64    `json:"received_quantity" yaml:"received_quantity"`
}

// Ref returns the line's reference.
func (l OrderLine) Ref() LineRef {
	return LineRef{OrderID: l.OrderID, LineNo: l.LineNo}
}

// Outstanding is the quantity still open for receipt.
func (l OrderLine) Outstanding() float64 {
	return l.Quantity - l.ReceivedQuantity
}

// IRObject returns the full payload representation of the line.
func (l OrderLine) IRObject() ir.IRObject {
	obj := ir.IRObject{
		"order_id":          ir.IRString(l.OrderID),
		"line_no":           ir.IRInt(l.LineNo),
		"item_id":           ir.IRString(l.ItemID),
		"status":            ir.IRString(l.Status),
		"promised_date":     ir.IRString(FormatDate(l.PromisedDate)),
		"unit_price":        ir.Number(l.UnitPrice),
		"quantity":          ir.Number(l.Quantity),
		"received_quantity": ir.Number(l.ReceivedQuantity),
	}
	if l.OrderDate != nil {
		obj["order_date"] = ir.IRString(FormatDate(*l.OrderDate))
	}
	return obj
}

// LineRef addresses one order line.
type LineRef struct {
	OrderID string
	LineNo  int
}

func (r LineRef) String() string {
	return fmt.Sprintf("%s/%d", r.OrderID, r.LineNo)
}

// Receipt is a goods receipt document.
type Receipt struct {
	ReceiptID        string        `json:"receipt_id" yaml:"receipt_id"`
	VendorShipmentNo string        `json:"vendor_shipment_no" yaml:"vendor_shipment_no"`
	Lines            []ReceiptLine `json:"lines" yaml:"lines"`
}

// Line returns the receipt line with the given number.
func (r Receipt) Line(lineNo int) (ReceiptLine, bool) {
	for _, l := range r.Lines {
		if l.LineNo == lineNo {
			return l, true
		}
	}
	return ReceiptLine{}, false
}

// IRObject returns the payload representation of the receipt.
func (r Receipt) IRObject() ir.IRObject {
	lines := make(ir.IRArray, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = ir.IRObject{
			"line_no":       ir.IRInt(l.LineNo),
			"order_id":      ir.IRString(l.OrderID),
			"order_line_no": ir.IRInt(l.OrderLineNo),
			"item_id":       ir.IRString(l.ItemID),
			"quantity":      ir.Number(l.Quantity),
		}
	}
	return ir.IRObject{
		"receipt_id":         ir.IRString(r.ReceiptID),
		"vendor_shipment_no": ir.IRString(r.VendorShipmentNo),
		"lines":              lines,
	}
}

// ReceiptLine is one received line, pointing back at its order line.
type ReceiptLine struct {
	LineNo      int     `json:"line_no" yaml:"line_no"`
	OrderID     string  `json:"order_id" yaml:"order_id"`
	OrderLineNo int     `json:"order_line_no" yaml:"order_line_no"`
	ItemID      string  `json:"item_id" yaml:"item_id"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
}

// Return is a return-to-vendor document raised against a receipt.
type Return struct {
	ReturnID  string       `json:"return_id"`
	ReceiptID string       `json:"receipt_id"`
	Lines     []ReturnLine `json:"lines"`
}

// IRObject returns the payload representation of the return.
func (r Return) IRObject() ir.IRObject {
	lines := make(ir.IRArray, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = ir.IRObject{
			"receipt_line_no": ir.IRInt(l.ReceiptLineNo),
			"quantity":        ir.Number(l.Quantity),
		}
	}
	return ir.IRObject{
		"return_id":  ir.IRString(r.ReturnID),
		"receipt_id": ir.IRString(r.ReceiptID),
		"lines":      lines,
	}
}

// ReturnLine is one returned quantity.
type ReturnLine struct {
	ReceiptLineNo int     `json:"receipt_line_no"`
	Quantity      float64 `json:"quantity"`
}

// ReceiptRequest asks the ERP to book a goods receipt.
type ReceiptRequest struct {
	Lines []ReceiptLineRequest `json:"lines" yaml:"lines"`
}

// ShipmentNo returns the single vendor shipment reference shared by all
// lines. Call it only on requests that passed validation.
func (r ReceiptRequest) ShipmentNo() string {
	for _, l := range r.Lines {
		if l.VendorShipmentNo != "" {
			return l.VendorShipmentNo
		}
	}
	return ""
}

// ReceiptLineRequest is one line of a ReceiptRequest.
type ReceiptLineRequest struct {
	OrderID          string  `json:"order_id" yaml:"order_id"`
	LineNo           int     `json:"line_no" yaml:"line_no"`
	Quantity         float64 `json:"quantity" yaml:"quantity"`
	VendorShipmentNo string  `json:"vendor_shipment_no" yaml:"vendor_shipment_no"`
}

// Ref returns the order line the request line receives against.
func (l ReceiptLineRequest) Ref() LineRef {
	return LineRef{OrderID: l.OrderID, LineNo: l.LineNo}
}

// ReturnRequest asks the ERP to raise a return against a receipt.
type ReturnRequest struct {
	ReceiptID string              `json:"receipt_id" yaml:"receipt_id"`
	Lines     []ReturnLineRequest `json:"lines" yaml:"lines"`
}

// ReturnLineRequest is one line of a ReturnRequest.
type ReturnLineRequest struct {
	ReceiptLineNo int     `json:"receipt_line_no" yaml:"receipt_line_no"`
	Quantity      float64 `json:"quantity" yaml:"quantity"`
}

// FormatDate renders a calendar date.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to its calendar date at midnight UTC so that dates taken
// from different time zones compare by day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
