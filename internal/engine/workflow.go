package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/erpgate/internal/advisor"
	"github.com/roach88/erpgate/internal/erp"
	"github.com/roach88/erpgate/internal/gate"
	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/metrics"
	"github.com/roach88/erpgate/internal/store"
)

// DefaultAdvisorTimeout bounds one advisor review.
const DefaultAdvisorTimeout = 5 * time.Second

// Storage is the durable side of the workflow: the idempotency cache and the
// unit of work that records the response together with the audit entry.
// Implemented by *store.Store.
type Storage interface {
	LookupIdempotency(ctx context.Context, key string) ([]byte, bool, error)
	WithTx(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Workflow runs commands through the idempotent mutation pipeline:
//
//	Received -> CacheCheck -> Hit -> Completed
//	                       -> Miss -> Validating -> Rejected
//	                                             -> Mutating -> ExternalFailure
//	                                                         -> Persisting -> Completed
//
// Thread-safety: Execute is safe for concurrent use. No lock guards an
// idempotency key; the PRIMARY KEY in Storage decides which of two racing
// commands owns it. Both racers may reach the ERP before either persists, so
// delivery is at least once inside that window: the loser replays the stored
// response when its own matches, otherwise it gets a ConflictError and its
// audit row is flagged needs_review.
type Workflow struct {
	erp     erp.Client
	storage Storage

	advisor           advisor.Advisor
	advisorTimeout    time.Duration
	clock             Clock
	correlation       CorrelationGenerator
	priceThreshold    float64
	quantityThreshold float64
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithAdvisor sets the advisor consulted on material price changes.
// Without one, material changes are only logged.
func WithAdvisor(a advisor.Advisor) Option {
	return func(w *Workflow) {
		w.advisor = a
	}
}

// WithAdvisorTimeout bounds each advisor review. Zero or negative means no
// bound beyond the caller's context.
func WithAdvisorTimeout(d time.Duration) Option {
	return func(w *Workflow) {
		w.advisorTimeout = d
	}
}

// WithClock sets the source of audit timestamps and of "today".
func WithClock(c Clock) Option {
	return func(w *Workflow) {
		w.clock = c
	}
}

// WithCorrelation sets the generator for missing correlation ids.
func WithCorrelation(g CorrelationGenerator) Option {
	return func(w *Workflow) {
		w.correlation = g
	}
}

// WithThresholds sets the materiality thresholds as fractions of the current
// value. Defaults: gate.DefaultPriceThreshold, gate.DefaultQuantityThreshold.
func WithThresholds(price, quantity float64) Option {
	return func(w *Workflow) {
		w.priceThreshold = price
		w.quantityThreshold = quantity
	}
}

// WithMetrics records command outcomes and advisor failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = l
	}
}

// New creates a Workflow over an ERP client and its storage.
func New(client erp.Client, storage Storage, opts ...Option) *Workflow {
	w := &Workflow{
		erp:               client,
		storage:           storage,
		advisorTimeout:    DefaultAdvisorTimeout,
		clock:             SystemClock{},
		correlation:       UUIDv7Generator{},
		priceThreshold:    gate.DefaultPriceThreshold,
		quantityThreshold: gate.DefaultQuantityThreshold,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Execute runs one command to completion. It returns a Result or exactly one
// of ValidationError, NotFoundError, ExternalServiceError or ConflictError.
func (w *Workflow) Execute(ctx context.Context, cmd Command) (*Result, error) {
	begin := time.Now()
	res, err := w.execute(ctx, cmd)

	operation := "unknown"
	if cmd.Change != nil {
		operation = string(cmd.Change.Kind())
	}
	w.metrics.ObserveCommand(operation, outcome(res, err), time.Since(begin))
	return res, err
}

func (w *Workflow) execute(ctx context.Context, cmd Command) (*Result, error) {
	// Received
	if cmd.Change == nil {
		return nil, &ValidationError{Field: "change", Reason: "command has no change"}
	}
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, &ValidationError{Field: "actor", Reason: "actor is required"}
	}
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = w.correlation.Generate()
	}
	kind := cmd.Change.Kind()
	logger := w.logger.With("operation", string(kind), "correlation_id", cmd.CorrelationID)

	// CacheCheck
	if key := cmd.IdempotencyKey; key != "" {
		cached, found, err := w.storage.LookupIdempotency(ctx, key)
		switch {
		case err != nil:
			logger.Warn("idempotency lookup failed, executing as a miss", "key", key, "error", err)
		case found:
			res, err := decodeResult(cached)
			if err != nil {
				return nil, &ExternalServiceError{Op: "decode cached response", Err: err}
			}
			res.Replayed = true
			res.CorrelationID = cmd.CorrelationID
			logger.Info("idempotent replay", "key", key)
			return res, nil
		}
	}

	// Validating
	m, err := w.prepare(ctx, cmd)
	if err != nil {
		logger.Info("command rejected", "error", err)
		return nil, err
	}

	analysis := w.advise(ctx, m, logger)

	// Mutating
	next, entity, err := m.apply(ctx)
	if err != nil {
		logger.Warn("erp mutation failed", "erp_op", m.erpOp, "error", err)
		if erp.IsNotFound(err) {
			return nil, &NotFoundError{Entity: m.entity, ID: m.entityID, Err: err}
		}
		return nil, &ExternalServiceError{Op: m.erpOp, Err: err}
	}

	// Persisting
	raw, err := response{
		operation: m.kind,
		target:    m.target,
		previous:  m.previous,
		next:      next,
		entity:    entity,
		material:  m.verdict.Material,
	}.encode()
	if err != nil {
		logger.Error("erp mutation applied but response could not be encoded", "error", err)
		return nil, &ExternalServiceError{Op: "encode response", Err: err}
	}

	entry := ir.AuditEntry{
		Timestamp:      w.clock.Now(),
		Actor:          cmd.Actor,
		Action:         ir.Action(m.kind, ir.LifecycleApplied),
		Target:         m.target,
		Previous:       m.previous,
		Next:           next,
		Reason:         composeReason(cmd.Reason, analysis),
		CorrelationID:  cmd.CorrelationID,
		IdempotencyKey: cmd.IdempotencyKey,
	}

	p, err := w.persist(ctx, cmd.IdempotencyKey, raw, entry)
	if err != nil {
		logger.Error("erp mutation applied but not recorded; a retry may apply it again",
			"key", cmd.IdempotencyKey, "target", m.target.String(), "error", err)
		return nil, &ExternalServiceError{Op: "persist", Err: err}
	}
	if p.conflict {
		logger.Warn("idempotency key holds a different response, audit entry flagged for review",
			"key", cmd.IdempotencyKey, "audit_id", p.auditID)
		return nil, &ConflictError{Key: cmd.IdempotencyKey, Existing: p.existing, AuditID: p.auditID}
	}

	// Completed
	res, err := decodeResult(raw)
	if err != nil {
		return nil, &ExternalServiceError{Op: "decode response", Err: err}
	}
	res.AuditID = p.auditID
	res.CorrelationID = cmd.CorrelationID
	res.Analysis = analysis
	logger.Info("mutation applied", "target", m.target.String(), "audit_id", p.auditID, "material", m.verdict.Material)
	return res, nil
}

// advise consults the advisor for changes that ask for it. Failures are
// logged and counted, never returned.
func (w *Workflow) advise(ctx context.Context, m *mutation, logger *slog.Logger) (analysis *advisor.Analysis) {
	if !m.verdict.Material {
		return nil
	}
	if m.review == nil {
		logger.Info("material change", "target", m.target.String(), "change_ratio", m.verdict.ChangeRatio)
		return nil
	}
	if w.advisor == nil {
		logger.Info("material change, no advisor configured", "change", m.review.String())
		return nil
	}

	if w.advisorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.advisorTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("advisor panicked", "panic", fmt.Sprint(r))
			w.metrics.AdvisorFailed()
			analysis = nil
		}
	}()

	a, err := w.advisor.Review(ctx, *m.review)
	if err != nil {
		logger.Warn("advisor review failed, continuing without analysis", "change", m.review.String(), "error", err)
		w.metrics.AdvisorFailed()
		return nil
	}
	logger.Info("advisor reviewed material change", "change", m.review.String())
	return &a
}

// composeReason appends advisor output to the caller's reason. The store
// truncates the result.
func composeReason(reason string, analysis *advisor.Analysis) string {
	if analysis == nil {
		return reason
	}
	extra := analysis.Context()
	switch {
	case extra == "":
		return reason
	case reason == "":
		return extra
	default:
		return reason + " | " + extra
	}
}

func outcome(res *Result, err error) string {
	if err == nil {
		if res != nil && res.Replayed {
			return metrics.OutcomeReplayed
		}
		return metrics.OutcomeOK
	}
	switch CodeOf(err) {
	case CodeValidation:
		return metrics.OutcomeValidation
	case CodeNotFound:
		return metrics.OutcomeNotFound
	case CodeConflict:
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeExternal
	}
}
