package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/erpgate/internal/engine"
	"github.com/roach88/erpgate/internal/erp"
)

// Scenario is a scripted run of the mutation pipeline against a seeded
// in-memory ERP, followed by assertions on the ERP and the store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Today is the calendar date the scenario runs on (YYYY-MM-DD). The clock
	// starts at 12:00 UTC that day.
	Today string `yaml:"today"`

	// TTL overrides the idempotency record lifetime. Unset keeps the store
	// default (24h, or idempotency_ttl when run from the CLI); zero or
	// negative disables expiry.
	TTL *time.Duration `yaml:"ttl,omitempty"`

	// Advisor selects the advisor: "none" (default), "ok" or "fail".
	Advisor string `yaml:"advisor,omitempty"`

	// ERP seeds the in-memory ERP.
	ERP ERPSeed `yaml:"erp"`

	// Commands run in order.
	Commands []Step `yaml:"commands"`

	// Assertions validate the final ERP and store state.
	Assertions []Assertion `yaml:"assertions"`
}

// Advisor modes.
const (
	AdvisorNone = "none"
	AdvisorOK   = "ok"
	AdvisorFail = "fail"
)

// ERPSeed is the initial ERP content.
type ERPSeed struct {
	OrderLines []OrderLineSeed `yaml:"order_lines"`
	Receipts   []erp.Receipt   `yaml:"receipts,omitempty"`
}

// OrderLineSeed describes one order line with calendar dates as strings.
type OrderLineSeed struct {
	OrderID          string     `yaml:"order_id"`
	LineNo           int        `yaml:"line_no"`
	ItemID           string     `yaml:"item_id,omitempty"`
	Status           erp.Status `yaml:"status,omitempty"`
	OrderDate        string     `yaml:"order_date,omitempty"`
	PromisedDate     string     `yaml:"promised_date"`
	UnitPrice        float64    `yaml:"unit_price"`
	Quantity         float64    `yaml:"quantity"`
	ReceivedQuantity float64    `yaml:"received_quantity,omitempty"`
}

func (s OrderLineSeed) orderLine() (erp.OrderLine, error) {
	promised, err := time.Parse(erp.DateLayout, s.PromisedDate)
	if err != nil {
		return erp.OrderLine{}, fmt.Errorf("promised_date: %w", err)
	}
	line := erp.OrderLine{
		OrderID:          s.OrderID,
		LineNo:           s.LineNo,
		ItemID:           s.ItemID,
		Status:           s.Status,
		PromisedDate:     promised,
		UnitPrice:        s.UnitPrice,
		Quantity:         s.Quantity,
		ReceivedQuantity: s.ReceivedQuantity,
	}
	if line.Status == "" {
		line.Status = erp.StatusOpen
	}
	if s.OrderDate != "" {
		ordered, err := time.Parse(erp.DateLayout, s.OrderDate)
		if err != nil {
			return erp.OrderLine{}, fmt.Errorf("order_date: %w", err)
		}
		line.OrderDate = &ordered
	}
	return line, nil
}

// Step is one command. Exactly one change block must be set.
type Step struct {
	Actor         string `yaml:"actor"`
	Key           string `yaml:"key,omitempty"`
	Reason        string `yaml:"reason,omitempty"`
	CorrelationID string `yaml:"correlation_id,omitempty"`

	DateChange     *DateStep           `yaml:"date_change,omitempty"`
	PriceChange    *PriceStep          `yaml:"price_change,omitempty"`
	QuantityChange *QuantityStep       `yaml:"quantity_change,omitempty"`
	Receipt        *erp.ReceiptRequest `yaml:"receipt,omitempty"`
	Return         *erp.ReturnRequest  `yaml:"return,omitempty"`

	// Advance moves the clock forward before the command runs.
	Advance time.Duration `yaml:"advance,omitempty"`

	// FailERP makes the named ERP write (e.g. "set_price") fail once.
	FailERP string `yaml:"fail_erp,omitempty"`

	// Expect checks the command's outcome. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// DateStep is a date_change block.
type DateStep struct {
	OrderID string `yaml:"order_id"`
	LineNo  int    `yaml:"line_no"`
	NewDate string `yaml:"new_date"`
}

// PriceStep is a price_change block.
type PriceStep struct {
	OrderID  string  `yaml:"order_id"`
	LineNo   int     `yaml:"line_no"`
	NewPrice float64 `yaml:"new_price"`
}

// QuantityStep is a quantity_change block.
type QuantityStep struct {
	OrderID     string  `yaml:"order_id"`
	LineNo      int     `yaml:"line_no"`
	NewQuantity float64 `yaml:"new_quantity"`
}

// Expect is the expected outcome of a command.
type Expect struct {
	// Outcome is ok, validation, not_found, external or conflict.
	Outcome string `yaml:"outcome"`
	// Field, when set, must equal the ValidationError field.
	Field string `yaml:"field,omitempty"`
	// Replayed, when set, must equal Result.Replayed.
	Replayed *bool `yaml:"replayed,omitempty"`
	// Material, when set, must equal Result.Material.
	Material *bool `yaml:"material,omitempty"`
}

var validOutcomes = map[string]bool{
	"ok": true, "validation": true, "not_found": true, "external": true, "conflict": true,
}

var validERPOps = map[string]bool{
	erp.OpSetDate: true, erp.OpSetPrice: true, erp.OpSetQuantity: true,
	erp.OpCreateReceipt: true, erp.OpCreateReturn: true,
}

// Command builds the engine command for the step.
func (s Step) Command() (engine.Command, error) {
	cmd := engine.Command{
		Actor:          s.Actor,
		CorrelationID:  s.CorrelationID,
		IdempotencyKey: s.Key,
		Reason:         s.Reason,
	}
	switch {
	case s.DateChange != nil:
		date, err := time.Parse(erp.DateLayout, s.DateChange.NewDate)
		if err != nil {
			return engine.Command{}, fmt.Errorf("date_change.new_date: %w", err)
		}
		cmd.Change = engine.DateChange{OrderID: s.DateChange.OrderID, LineNo: s.DateChange.LineNo, NewDate: date}
	case s.PriceChange != nil:
		cmd.Change = engine.PriceChange{OrderID: s.PriceChange.OrderID, LineNo: s.PriceChange.LineNo, NewPrice: s.PriceChange.NewPrice}
	case s.QuantityChange != nil:
		cmd.Change = engine.QuantityChange{OrderID: s.QuantityChange.OrderID, LineNo: s.QuantityChange.LineNo, NewQuantity: s.QuantityChange.NewQuantity}
	case s.Receipt != nil:
		cmd.Change = engine.ReceiptCreation{Request: *s.Receipt}
	case s.Return != nil:
		cmd.Change = engine.ReturnCreation{Request: *s.Return}
	default:
		return engine.Command{}, fmt.Errorf("no change block")
	}
	return cmd, nil
}

func (s Step) changeCount() int {
	n := 0
	for _, set := range []bool{
		s.DateChange != nil, s.PriceChange != nil, s.QuantityChange != nil, s.Receipt != nil, s.Return != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op filters erp_writes to one ERP write operation. Empty counts all.
	Op string `yaml:"op,omitempty"`

	// Action filters audit_count and is required by audit_contains.
	Action string `yaml:"action,omitempty"`

	// Target is required by audit_contains, e.g. "PO-1/10" or "RCPT-0001".
	Target string `yaml:"target,omitempty"`

	// Count is the expected number.
	Count int `yaml:"count"`
}

// Assertion type constants.
const (
	AssertERPWrites        = "erp_writes"
	AssertAuditCount       = "audit_count"
	AssertAuditContains    = "audit_contains"
	AssertIdempotencyCount = "idempotency_count"
	AssertNeedsReviewCount = "needs_review_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := time.Parse(erp.DateLayout, s.Today); err != nil {
		return fmt.Errorf("today must be a YYYY-MM-DD date, got %q", s.Today)
	}
	switch s.Advisor {
	case "", AdvisorNone, AdvisorOK, AdvisorFail:
	default:
		return fmt.Errorf("unknown advisor mode %q", s.Advisor)
	}
	if len(s.Commands) == 0 {
		return fmt.Errorf("commands list is required and must be non-empty")
	}

	for i, line := range s.ERP.OrderLines {
		if line.OrderID == "" || line.LineNo <= 0 {
			return fmt.Errorf("erp.order_lines[%d]: order_id and a positive line_no are required", i)
		}
		if _, err := line.orderLine(); err != nil {
			return fmt.Errorf("erp.order_lines[%d]: %w", i, err)
		}
	}
	for i, r := range s.ERP.Receipts {
		if r.ReceiptID == "" {
			return fmt.Errorf("erp.receipts[%d]: receipt_id is required", i)
		}
	}

	for i, step := range s.Commands {
		if n := step.changeCount(); n != 1 {
			return fmt.Errorf("commands[%d]: exactly one change block is required, found %d", i, n)
		}
		if _, err := step.Command(); err != nil {
			return fmt.Errorf("commands[%d]: %w", i, err)
		}
		if step.FailERP != "" && !validERPOps[step.FailERP] {
			return fmt.Errorf("commands[%d]: unknown fail_erp operation %q", i, step.FailERP)
		}
		if step.Advance < 0 {
			return fmt.Errorf("commands[%d]: advance must not be negative", i)
		}
		if step.Expect != nil && !validOutcomes[step.Expect.Outcome] {
			return fmt.Errorf("commands[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}

	switch a.Type {
	case AssertERPWrites:
		if a.Op != "" && !validERPOps[a.Op] {
			return fmt.Errorf("assertions[%d]: unknown erp operation %q", index, a.Op)
		}
	case AssertAuditContains:
		if a.Action == "" || strings.TrimSpace(a.Target) == "" {
			return fmt.Errorf("assertions[%d]: action and target are required for audit_contains", index)
		}
	case AssertAuditCount, AssertIdempotencyCount, AssertNeedsReviewCount:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
