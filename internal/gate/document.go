package gate

import (
	"strconv"
	"strings"

	"github.com/roach88/erpgate/internal/erp"
)

// tolerance absorbs float noise in quantity sums and change ratios.
const tolerance = 1e-9

// ReceiptShape checks the parts of a receipt request that need no ERP state.
// It runs before any snapshot is fetched.
func ReceiptShape(req erp.ReceiptRequest) Verdict {
	if len(req.Lines) == 0 {
		return Reject(CodeNoLines, "lines", "receipt has no lines")
	}

	var refs []string
	seen := make(map[string]bool)
	for _, l := range req.Lines {
		ref := strings.TrimSpace(l.VendorShipmentNo)
		if ref != "" && !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	switch len(refs) {
	case 0:
		return Reject(CodeShipmentRef, "vendor_shipment_no", "receipt has no vendor shipment reference")
	case 1:
	default:
		return Reject(CodeShipmentRef, "vendor_shipment_no",
			"receipt cites %d vendor shipment references (%s), expected one", len(refs), strings.Join(refs, ", "))
	}

	for i, l := range req.Lines {
		if l.OrderID == "" || l.LineNo <= 0 {
			return Reject(CodeUnknownLine, "line_no", "line %d: missing order line reference", i+1)
		}
		if !(l.Quantity > 0) {
			return Reject(CodeNonPositive, "quantity", "line %d: quantity must be positive, got %s",
				i+1, formatQty(l.Quantity))
		}
	}
	return Accept()
}

// Receipt validates a receipt request against the order lines it receives
// against. Quantities for the same order line are summed before the
// outstanding check.
func Receipt(req erp.ReceiptRequest, lines map[erp.LineRef]erp.OrderLine) Verdict {
	if v := ReceiptShape(req); v.Rejected() {
		return v
	}

	requested := make(map[erp.LineRef]float64)
	first := make(map[erp.LineRef]int)
	var order []erp.LineRef
	for i, l := range req.Lines {
		ref := l.Ref()
		if _, ok := requested[ref]; !ok {
			first[ref] = i
			order = append(order, ref)
		}
		requested[ref] += l.Quantity
	}

	for _, ref := range order {
		i := first[ref]
		line, ok := lines[ref]
		if !ok {
			return Reject(CodeUnknownLine, "line_no", "line %d: order line %s not found", i+1, ref)
		}
		switch line.Status {
		case erp.StatusClosed, erp.StatusCancelled:
			return Reject(CodeLineState, "status", "line %d: order line %s is %s", i+1, ref, line.Status)
		}
		if requested[ref] > line.Outstanding()+tolerance {
			return Reject(CodeOverReceipt, "quantity", "line %d: receiving %s exceeds the %s outstanding on %s",
				i+1, formatQty(requested[ref]), formatQty(line.Outstanding()), ref)
		}
	}
	return Accept()
}

// Return validates a return request against the receipt it returns from.
// Quantities for the same receipt line are summed before the received check.
func Return(req erp.ReturnRequest, receipt erp.Receipt) Verdict {
	if len(req.Lines) == 0 {
		return Reject(CodeNoLines, "lines", "return has no lines")
	}

	returned := make(map[int]float64)
	for i, l := range req.Lines {
		rl, ok := receipt.Line(l.ReceiptLineNo)
		if !ok {
			return Reject(CodeUnknownLine, "line_no", "line %d: receipt %s has no line %d",
				i+1, receipt.ReceiptID, l.ReceiptLineNo)
		}
		if !(l.Quantity > 0) {
			return Reject(CodeNonPositive, "quantity", "line %d: quantity must be positive, got %s",
				i+1, formatQty(l.Quantity))
		}
		returned[l.ReceiptLineNo] += l.Quantity
		if returned[l.ReceiptLineNo] > rl.Quantity+tolerance {
			return Reject(CodeOverReturn, "quantity", "line %d: returning %s exceeds the %s received on receipt line %d",
				i+1, formatQty(returned[l.ReceiptLineNo]), formatQty(rl.Quantity), l.ReceiptLineNo)
		}
	}
	return Accept()
}

func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
