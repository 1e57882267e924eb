package gate

import (
	"time"

	"github.com/roach88/erpgate/internal/erp"
)

// DateChange validates moving a line's promised date to newDate. Dates are
// compared as calendar days.
func DateChange(line erp.OrderLine, newDate, today time.Time) Verdict {
	switch line.Status {
	case erp.StatusClosed, erp.StatusCancelled:
		return Reject(CodeLineState, "status", "order line %s is %s", line.Ref(), line.Status)
	}

	day := erp.Day(newDate)
	if day.Before(erp.Day(today)) {
		return Reject(CodeDatePast, "new_date", "date %s is before today (%s)",
			erp.FormatDate(day), erp.FormatDate(today))
	}
	if line.OrderDate != nil && day.Before(erp.Day(*line.OrderDate)) {
		return Reject(CodeDateBeforeOrder, "new_date", "date %s is before the order date (%s)",
			erp.FormatDate(day), erp.FormatDate(*line.OrderDate))
	}
	return Accept()
}

// PriceChange validates setting a line's unit price. The change is material
// when it moves the price by more than threshold.
func PriceChange(line erp.OrderLine, newPrice, threshold float64) Verdict {
	switch line.Status {
	case erp.StatusClosed, erp.StatusCancelled, erp.StatusInvoiced:
		return Reject(CodeLineState, "status", "order line %s is %s", line.Ref(), line.Status)
	}
	if line.ReceivedQuantity > 0 {
		return Reject(CodeReceived, "received_quantity",
			"price cannot change after receipt (%s received)", formatQty(line.ReceivedQuantity))
	}
	if !(newPrice > 0) {
		return Reject(CodeNonPositive, "new_price", "price must be positive, got %s", formatQty(newPrice))
	}
	return assess(line.UnitPrice, newPrice, threshold)
}

// QuantityChange validates setting a line's ordered quantity. The change is
// material when it moves the quantity by more than threshold.
func QuantityChange(line erp.OrderLine, newQty, threshold float64) Verdict {
	switch line.Status {
	case erp.StatusClosed, erp.StatusCancelled:
		return Reject(CodeLineState, "status", "order line %s is %s", line.Ref(), line.Status)
	}
	if newQty < line.ReceivedQuantity {
		return Reject(CodeBelowReceived, "new_quantity", "quantity %s is below the %s already received",
			formatQty(newQty), formatQty(line.ReceivedQuantity))
	}
	if !(newQty > 0) {
		return Reject(CodeNonPositive, "new_quantity", "quantity must be positive, got %s", formatQty(newQty))
	}
	return assess(line.Quantity, newQty, threshold)
}
