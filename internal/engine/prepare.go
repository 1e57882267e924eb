package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/erpgate/internal/advisor"
	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/gate"
	"github.com/roach88/erpgate/internal/ir"
)

// mutation is a validated change ready to be applied to the ERP.
type mutation struct {
	kind     ir.OperationKind
	target   ir.Target
	previous ir.IRObject
	verdict  gate.Verdict

	// review is set when the change should go to the advisor.
	review *advisor.MaterialChange

	// entity and entityID name what apply writes to, for NotFoundError.
	entity   string
	entityID string
	erpOp    string
	apply    func(ctx context.Context) (next, entity ir.IRObject, err error)
}

// prepare fetches the snapshot for cmd and runs the matching validator.
// Nothing is written.
func (w *Workflow) prepare(ctx context.Context, cmd Command) (*mutation, error) {
	switch c := cmd.Change.(type) {
	case DateChange:
		return w.prepareDate(ctx, c)
	case PriceChange:
		return w.preparePrice(ctx, cmd, c)
	case QuantityChange:
		return w.prepareQuantity(ctx, c)
	case ReceiptCreation:
		return w.prepareReceipt(ctx, c)
	case ReturnCreation:
		return w.prepareReturn(ctx, c)
	default:
		return nil, &ValidationError{Field: "change", Reason: fmt.Sprintf("unsupported change %T", cmd.Change)}
	}
}

func (w *Workflow) prepareDate(ctx context.Context, c DateChange) (*mutation, error) {
	if c.NewDate.IsZero() {
		return nil, &ValidationError{Field: "new_date", Reason: "new date is required"}
	}
	line, err := w.fetchLine(ctx, c.OrderID, c.LineNo)
	if err != nil {
		return nil, err
	}
	v := gate.DateChange(line, c.NewDate, w.clock.Now())
	if v.Rejected() {
		return nil, rejection(v)
	}

	ref := line.Ref()
	return &mutation{
		kind:     ir.OpDateChange,
		target:   ir.LineTarget(ref.OrderID, ref.LineNo),
		previous: ir.IRObject{"promised_date": ir.IRString(erp.FormatDate(line.PromisedDate))},
		verdict:  v,
		entity:   "order line",
		entityID: ref.String(),
		erpOp:    erp.OpSetDate,
		apply: func(ctx context.Context) (ir.IRObject, ir.IRObject, error) {
			updated, err := w.erp.SetDate(ctx, ref.OrderID, ref.LineNo, c.NewDate)
			if err != nil {
				return nil, nil, err
			}
			return ir.IRObject{"promised_date": ir.IRString(erp.FormatDate(updated.PromisedDate))}, updated.IRObject(), nil
		},
	}, nil
}

func (w *Workflow) preparePrice(ctx context.Context, cmd Command, c PriceChange) (*mutation, error) {
	line, err := w.fetchLine(ctx, c.OrderID, c.LineNo)
	if err != nil {
		return nil, err
	}
	v := gate.PriceChange(line, c.NewPrice, w.priceThreshold)
	if v.Rejected() {
		return nil, rejection(v)
	}

	ref := line.Ref()
	m := &mutation{
		kind:     ir.OpPriceChange,
		target:   ir.LineTarget(ref.OrderID, ref.LineNo),
		previous: ir.IRObject{"unit_price": ir.Number(line.UnitPrice)},
		verdict:  v,
		entity:   "order line",
		entityID: ref.String(),
		erpOp:    erp.OpSetPrice,
		apply: func(ctx context.Context) (ir.IRObject, ir.IRObject, error) {
			updated, err := w.erp.SetPrice(ctx, ref.OrderID, ref.LineNo, c.NewPrice)
			if err != nil {
				return nil, nil, err
			}
			return ir.IRObject{"unit_price": ir.Number(updated.UnitPrice)}, updated.IRObject(), nil
		},
	}
	if v.Material {
		m.review = &advisor.MaterialChange{
			Operation:   ir.OpPriceChange,
			Target:      m.target,
			Field:       "unit_price",
			Current:     line.UnitPrice,
			Proposed:    c.NewPrice,
			ChangeRatio: v.ChangeRatio,
			Actor:       cmd.Actor,
			Reason:      cmd.Reason,
		}
	}
	return m, nil
}

// prepareQuantity flags material changes but never sends them to the advisor.
func (w *Workflow) prepareQuantity(ctx context.Context, c QuantityChange) (*mutation, error) {
	line, err := w.fetchLine(ctx, c.OrderID, c.LineNo)
	if err != nil {
		return nil, err
	}
	v := gate.QuantityChange(line, c.NewQuantity, w.quantityThreshold)
	if v.Rejected() {
		return nil, rejection(v)
	}

	ref := line.Ref()
	return &mutation{
		kind:     ir.OpQuantityChange,
		target:   ir.LineTarget(ref.OrderID, ref.LineNo),
		previous: ir.IRObject{"quantity": ir.Number(line.Quantity)},
		verdict:  v,
		entity:   "order line",
		entityID: ref.String(),
		erpOp:    erp.OpSetQuantity,
		apply: func(ctx context.Context) (ir.IRObject, ir.IRObject, error) {
			updated, err := w.erp.SetQuantity(ctx, ref.OrderID, ref.LineNo, c.NewQuantity)
			if err != nil {
				return nil, nil, err
			}
			return ir.IRObject{"quantity": ir.Number(updated.Quantity)}, updated.IRObject(), nil
		},
	}, nil
}

// prepareReceipt checks the request shape before reading anything from the
// ERP, then fetches every distinct order line once.
func (w *Workflow) prepareReceipt(ctx context.Context, c ReceiptCreation) (*mutation, error) {
	req := c.Request
	if v := gate.ReceiptShape(req); v.Rejected() {
		return nil, rejection(v)
	}

	lines := make(map[erp.LineRef]erp.OrderLine)
	for _, rl := range req.Lines {
		ref := rl.Ref()
		if _, ok := lines[ref]; ok {
			continue
		}
		line, err := w.fetchLine(ctx, ref.OrderID, ref.LineNo)
		if err != nil {
			return nil, err
		}
		lines[ref] = line
	}

	v := gate.Receipt(req, lines)
	if v.Rejected() {
		return nil, rejection(v)
	}

	first := req.Lines[0].OrderID
	return &mutation{
		kind:     ir.OpReceiptCreate,
		target:   ir.Target{EntityID: first},
		verdict:  v,
		entity:   "order",
		entityID: first,
		erpOp:    erp.OpCreateReceipt,
		apply: func(ctx context.Context) (ir.IRObject, ir.IRObject, error) {
			receipt, err := w.erp.CreateReceipt(ctx, req)
			if err != nil {
				return nil, nil, err
			}
			doc := receipt.IRObject()
			return doc, doc, nil
		},
	}, nil
}

func (w *Workflow) prepareReturn(ctx context.Context, c ReturnCreation) (*mutation, error) {
	req := c.Request
	if strings.TrimSpace(req.ReceiptID) == "" {
		return nil, &ValidationError{Field: "receipt_id", Reason: "receipt id is required"}
	}

	receipt, err := w.erp.FetchReceipt(ctx, req.ReceiptID)
	if err != nil {
		return nil, fetchError(err, "receipt", req.ReceiptID)
	}

	v := gate.Return(req, receipt)
	if v.Rejected() {
		return nil, rejection(v)
	}

	return &mutation{
		kind:     ir.OpReturnCreate,
		target:   ir.Target{EntityID: receipt.ReceiptID},
		verdict:  v,
		entity:   "receipt",
		entityID: receipt.ReceiptID,
		erpOp:    erp.OpCreateReturn,
		apply: func(ctx context.Context) (ir.IRObject, ir.IRObject, error) {
			ret, err := w.erp.CreateReturn(ctx, req)
			if err != nil {
				return nil, nil, err
			}
			doc := ret.IRObject()
			return doc, doc, nil
		},
	}, nil
}

func (w *Workflow) fetchLine(ctx context.Context, orderID string, lineNo int) (erp.OrderLine, error) {
	if strings.TrimSpace(orderID) == "" {
		return erp.OrderLine{}, &ValidationError{Field: "order_id", Reason: "order id is required"}
	}
	if lineNo <= 0 {
		return erp.OrderLine{}, &ValidationError{Field: "line_no", Reason: fmt.Sprintf("line number must be positive, got %d", lineNo)}
	}
	line, err := w.erp.FetchOrderLine(ctx, orderID, lineNo)
	if err != nil {
		return erp.OrderLine{}, fetchError(err, "order line", erp.LineRef{OrderID: orderID, LineNo: lineNo}.String())
	}
	return line, nil
}

func fetchError(err error, entity, id string) error {
	if erp.IsNotFound(err) {
		return &NotFoundError{Entity: entity, ID: id, Err: err}
	}
	return &ExternalServiceError{Op: "fetch " + entity, Err: err}
}

func rejection(v gate.Verdict) error {
	return &ValidationError{Field: v.Field, Reason: v.Reason, Rule: v.Code}
}
