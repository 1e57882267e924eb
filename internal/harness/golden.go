package harness

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/erpgate/internal/ir"
)

// Snapshot captures the observable outcome of a scenario: what each command
// returned and the audit ledger it left behind.
type Snapshot struct {
	ScenarioName string
	Steps        []StepEvent
	Audit        []ir.AuditEntry
}

// Canonical renders the snapshot as canonical JSON. Error texts are left
// out; outcomes and fields carry the same information in a stable form.
func (s *Snapshot) Canonical() ([]byte, error) {
	steps := make([]any, len(s.Steps))
	for i, e := range s.Steps {
		m := map[string]any{
			"step":      e.Step,
			"operation": e.Operation,
			"outcome":   e.Outcome,
			"replayed":  e.Replayed,
			"material":  e.Material,
		}
		if e.Key != "" {
			m["key"] = e.Key
		}
		if e.Field != "" {
			m["field"] = e.Field
		}
		if e.AuditID != 0 {
			m["audit_id"] = e.AuditID
		}
		if e.CorrelationID != "" {
			m["correlation_id"] = e.CorrelationID
		}
		steps[i] = m
	}

	audit := make([]any, len(s.Audit))
	for i, e := range s.Audit {
		m := map[string]any{
			"id":             e.ID,
			"timestamp":      e.Timestamp.UTC().Format(time.RFC3339Nano),
			"actor":          e.Actor,
			"action":         e.Action,
			"target":         e.Target.IRObject(),
			"next":           e.Next,
			"correlation_id": e.CorrelationID,
			"needs_review":   e.NeedsReview,
		}
		if e.Previous != nil {
			m["previous"] = e.Previous
		}
		if e.Reason != "" {
			m["reason"] = e.Reason
		}
		if e.IdempotencyKey != "" {
			m["idempotency_key"] = e.IdempotencyKey
		}
		audit[i] = m
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"audit":         audit,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Steps:        result.Steps,
		Audit:        result.Audit,
	}
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
