package harness

import "github.com/roach88/erpgate/internal/ir"

// StepEvent records what one command did.
type StepEvent struct {
	Step          int    `json:"step"` // 1-based
	Operation     string `json:"operation"`
	Key           string `json:"key,omitempty"`
	Outcome       string `json:"outcome"`
	Field         string `json:"field,omitempty"`
	Replayed      bool   `json:"replayed"`
	Material      bool   `json:"material"`
	AuditID       int64  `json:"audit_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
	Error         string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Steps has one event per command, in order.
	Steps []StepEvent `json:"steps"`

	// Audit is the final audit ledger, oldest first.
	Audit []ir.AuditEntry `json:"audit"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step event.
func (r *Result) AddStep(e StepEvent) {
	r.Steps = append(r.Steps, e)
}
