package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/erpgate/internal/advisor"
	"github.com/roach88/erpgate/internal/engine"
	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/metrics"
	"github.com/roach88/erpgate/internal/store"
	"github.com/roach88/erpgate/internal/testutil"
)

// ScenarioAdvisorSummary is the analysis returned by the "ok" advisor.
const ScenarioAdvisorSummary = "reviewed by scenario advisor"

// errInjected is returned by ERP writes named in fail_erp.
var errInjected = errors.New("injected erp failure")

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and correlation ids.
type Harness struct {
	store  *store.Store
	erp    *erp.Memory
	wf     *engine.Workflow
	clock  *testutil.FakeClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and seed the in-memory ERP
// 2. Run each command through the workflow at 12:00:00 UTC + (step-1)s
// 3. Check each expect clause
// 4. Evaluate assertions and read back the audit ledger
//
// Options inject deployment settings; the scenario's clock, TTL, advisor
// and correlation ids are applied after them and win.
func Run(scenario *Scenario, opts ...RunOption) (*Result, error) {
	var settings runSettings
	for _, opt := range opts {
		opt(&settings)
	}

	today, err := time.Parse(erp.DateLayout, scenario.Today)
	if err != nil {
		return nil, fmt.Errorf("parse today: %w", err)
	}
	clock := testutil.NewFakeClock(today.Add(12 * time.Hour))

	storeOpts := append(settings.storeOpts, store.WithClock(clock.Now))
	if scenario.TTL != nil {
		storeOpts = append(storeOpts, store.WithIdempotencyTTL(*scenario.TTL))
	}
	st, err := store.Open(":memory:", storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	mem, err := seed(scenario.ERP)
	if err != nil {
		return nil, fmt.Errorf("failed to seed erp: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	wfOpts := append(settings.workflowOpts,
		engine.WithClock(clock),
		engine.WithCorrelation(testutil.NewSequentialGenerator("corr")),
		engine.WithLogger(logger),
	)
	if a := scenarioAdvisor(scenario.Advisor); a != nil {
		wfOpts = append(wfOpts, engine.WithAdvisor(a))
	}

	h := &Harness{
		store:  st,
		erp:    mem,
		wf:     engine.New(mem, st, wfOpts...),
		clock:  clock,
		logger: logger,
	}

	ctx := context.Background()
	result := NewResult()
	if err := h.executeCommands(ctx, scenario.Commands, result); err != nil {
		return nil, fmt.Errorf("failed to execute commands: %w", err)
	}

	audit, err := st.QueryAudit(ctx, store.AuditFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read audit ledger: %w", err)
	}
	result.Audit = audit

	actx := &AssertionContext{
		Ctx:   ctx,
		Store: st,
		ERP:   mem,
		Audit: audit,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}
	return result, nil
}

// RunOption configures Run.
type RunOption func(*runSettings)

type runSettings struct {
	storeOpts    []store.Option
	workflowOpts []engine.Option
}

// WithStoreOptions applies opts to the scenario's in-memory store, e.g. a
// reason length limit.
func WithStoreOptions(opts ...store.Option) RunOption {
	return func(s *runSettings) {
		s.storeOpts = append(s.storeOpts, opts...)
	}
}

// WithWorkflowOptions applies opts to the scenario's workflow, e.g.
// materiality thresholds.
func WithWorkflowOptions(opts ...engine.Option) RunOption {
	return func(s *runSettings) {
		s.workflowOpts = append(s.workflowOpts, opts...)
	}
}

func seed(s ERPSeed) (*erp.Memory, error) {
	mem := erp.NewMemory()
	for i, ls := range s.OrderLines {
		line, err := ls.orderLine()
		if err != nil {
			return nil, fmt.Errorf("order line %d: %w", i, err)
		}
		mem.PutOrderLine(line)
	}
	for _, r := range s.Receipts {
		mem.PutReceipt(r)
	}
	return mem, nil
}

func scenarioAdvisor(mode string) advisor.Advisor {
	switch mode {
	case AdvisorOK:
		return advisor.Static{Analysis: advisor.Analysis{Summary: ScenarioAdvisorSummary}}
	case AdvisorFail:
		return advisor.Noop{}
	default:
		return nil
	}
}

// executeCommands runs every step and checks its expect clause. Only
// harness faults are returned; command failures land in the result.
func (h *Harness) executeCommands(ctx context.Context, steps []Step, result *Result) error {
	for i, step := range steps {
		if i > 0 {
			h.clock.Advance(time.Second)
		}
		if step.Advance > 0 {
			h.clock.Advance(step.Advance)
		}
		if step.FailERP != "" {
			h.erp.FailNext(step.FailERP, errInjected)
		}

		cmd, err := step.Command()
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}

		res, err := h.wf.Execute(ctx, cmd)
		event := StepEvent{
			Step:      i + 1,
			Operation: string(cmd.Change.Kind()),
			Key:       step.Key,
			Outcome:   outcomeOf(err),
		}
		if err != nil {
			event.Error = err.Error()
			var ve *engine.ValidationError
			if errors.As(err, &ve) {
				event.Field = ve.Field
			}
		} else {
			event.Replayed = res.Replayed
			event.Material = res.Material
			event.AuditID = res.AuditID
			event.CorrelationID = res.CorrelationID
		}
		if event.CorrelationID == "" {
			event.CorrelationID = cmd.CorrelationID
		}
		result.AddStep(event)

		for _, msg := range checkExpect(event, step.Expect) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", event.Step, event.Operation, msg))
		}

		h.logger.Info("scenario step completed",
			"step", event.Step,
			"operation", event.Operation,
			"outcome", event.Outcome,
			"replayed", event.Replayed,
		)
	}
	return nil
}

func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeOK
	}
	switch engine.CodeOf(err) {
	case engine.CodeValidation:
		return metrics.OutcomeValidation
	case engine.CodeNotFound:
		return metrics.OutcomeNotFound
	case engine.CodeConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeExternal
	}
}

func checkExpect(e StepEvent, want *Expect) []string {
	if want == nil {
		want = &Expect{Outcome: metrics.OutcomeOK}
	}

	var msgs []string
	if e.Outcome != want.Outcome {
		msg := fmt.Sprintf("expected outcome %s, got %s", want.Outcome, e.Outcome)
		if e.Error != "" {
			msg += ": " + e.Error
		}
		msgs = append(msgs, msg)
	}
	if want.Field != "" && e.Field != want.Field {
		msgs = append(msgs, fmt.Sprintf("expected field %q, got %q", want.Field, e.Field))
	}
	if want.Replayed != nil && e.Replayed != *want.Replayed {
		msgs = append(msgs, fmt.Sprintf("expected replayed=%t, got %t", *want.Replayed, e.Replayed))
	}
	if want.Material != nil && e.Material != *want.Material {
		msgs = append(msgs, fmt.Sprintf("expected material=%t, got %t", *want.Material, e.Material))
	}
	return msgs
}
