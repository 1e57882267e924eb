package engine

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/erpgate/internal/advisor"
	"github.com/roach88/erpgate/internal/ir"
)

// Result is the outcome of a completed command. Fresh and replayed results
// are decoded from the same canonical response bytes, so they compare equal
// field for field apart from the execution metadata at the bottom.
type Result struct {
	Operation ir.OperationKind
	Target    ir.Target
	// Previous is the changed field(s) before the mutation. Nil for document
	// creation.
	Previous ir.IRObject
	// Next is the changed field(s) after the mutation, or the created
	// document.
	Next ir.IRObject
	// Entity is the mutated entity's full new representation.
	Entity   ir.IRObject
	Material bool

	// Raw is the canonical response as cached under the idempotency key.
	Raw []byte

	// Execution metadata, not part of Raw.
	Replayed      bool
	AuditID       int64 // 0 when Replayed
	CorrelationID string
	Analysis      *advisor.Analysis
}

// response is the cached payload. It excludes correlation id and advisor
// output so that equal outcomes serialise to equal bytes.
type response struct {
	operation ir.OperationKind
	target    ir.Target
	previous  ir.IRObject
	next      ir.IRObject
	entity    ir.IRObject
	material  bool
}

func (r response) encode() ([]byte, error) {
	obj := ir.IRObject{
		"operation": ir.IRString(r.operation),
		"target":    r.target.IRObject(),
		"next":      r.next,
		"entity":    r.entity,
		"material":  ir.IRBool(r.material),
	}
	if r.previous != nil {
		obj["previous"] = r.previous
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// decodeResult parses canonical response bytes.
func decodeResult(raw []byte) (*Result, error) {
	var obj ir.IRObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	op, ok := obj["operation"].(ir.IRString)
	if !ok || !ir.ValidOperationKinds[ir.OperationKind(op)] {
		return nil, fmt.Errorf("decode response: bad operation %v", obj["operation"])
	}
	target, err := decodeTarget(obj["target"])
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	material, _ := obj["material"].(ir.IRBool)

	res := &Result{
		Operation: ir.OperationKind(op),
		Target:    target,
		Material:  bool(material),
		Raw:       raw,
	}
	res.Previous, _ = obj["previous"].(ir.IRObject)
	res.Next, _ = obj["next"].(ir.IRObject)
	res.Entity, _ = obj["entity"].(ir.IRObject)
	if res.Next == nil || res.Entity == nil {
		return nil, fmt.Errorf("decode response: missing next or entity")
	}
	return res, nil
}

func decodeTarget(v ir.IRValue) (ir.Target, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.Target{}, fmt.Errorf("target is %T, want object", v)
	}
	id, ok := obj["entity_id"].(ir.IRString)
	if !ok || id == "" {
		return ir.Target{}, fmt.Errorf("target has no entity_id")
	}
	t := ir.Target{EntityID: string(id)}
	if sub, ok := obj["sub_index"].(ir.IRInt); ok {
		t = ir.LineTarget(t.EntityID, int(sub))
	}
	return t, nil
}
