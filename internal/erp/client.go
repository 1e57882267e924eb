package erp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when the ERP has no entity,
// line or receipt under the requested identifier.
var ErrNotFound = errors.New("not found")

// Client is the ERP surface the mutation pipeline consumes. Transport and
// wire format belong to the implementation, as do timeouts: a timed-out call
// is reported like any other failure.
//
// Every write returns the resulting snapshot.
type Client interface {
	FetchOrderLine(ctx context.Context, orderID string, lineNo int) (OrderLine, error)
	FetchReceipt(ctx context.Context, receiptID string) (Receipt, error)

	SetDate(ctx context.Context, orderID string, lineNo int, date time.Time) (OrderLine, error)
	SetPrice(ctx context.Context, orderID string, lineNo int, price float64) (OrderLine, error)
	SetQuantity(ctx context.Context, orderID string, lineNo int, quantity float64) (OrderLine, error)
	CreateReceipt(ctx context.Context, req ReceiptRequest) (Receipt, error)
	CreateReturn(ctx context.Context, req ReturnRequest) (Return, error)
}

// NotFound builds an ErrNotFound for an entity kind and identifier.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
