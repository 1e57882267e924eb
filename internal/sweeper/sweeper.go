// Package sweeper removes expired idempotency records and audit entries past
// their retention period.
//
// The sweeper never runs on its own. Invoke Sweep from `erpgate sweep` or an
// external scheduler such as cron.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/erpgate/internal/metrics"
)

// DefaultAuditRetentionDays is how long audit entries are kept by default.
const DefaultAuditRetentionDays = 365

// Purger deletes rows older than a cutoff. Implemented by *store.Store.
type Purger interface {
	PurgeIdempotencyBefore(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Report counts what one Sweep removed.
type Report struct {
	IdempotencyPurged int64     `json:"idempotency_purged"`
	AuditPurged       int64     `json:"audit_purged"`
	SweptAt           time.Time `json:"swept_at"`
}

// Sweeper applies the retention policy to a store.
type Sweeper struct {
	store         Purger
	ttl           time.Duration
	retentionDays int
	now           func() time.Time
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithIdempotencyTTL sets how long cached responses live. Zero or negative
// keeps them forever.
func WithIdempotencyTTL(d time.Duration) Option {
	return func(s *Sweeper) {
		s.ttl = d
	}
}

// WithAuditRetentionDays sets how many days audit entries are kept. Zero or
// negative keeps them forever.
func WithAuditRetentionDays(days int) Option {
	return func(s *Sweeper) {
		s.retentionDays = days
	}
}

// WithClock sets the time source the cutoffs are computed from.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithMetrics counts swept records.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = l
	}
}

// New creates a Sweeper over store. The TTL defaults to 24h and retention to
// DefaultAuditRetentionDays.
func New(store Purger, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:         store,
		ttl:           24 * time.Hour,
		retentionDays: DefaultAuditRetentionDays,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PurgeExpiredIdempotency removes records older than the TTL.
func (s *Sweeper) PurgeExpiredIdempotency(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	n, err := s.store.PurgeIdempotencyBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep idempotency records: %w", err)
	}
	s.metrics.Swept(metrics.KindIdempotency, n)
	return n, nil
}

// PurgeOldAudit removes audit entries recorded more than the retention
// period ago.
func (s *Sweeper) PurgeOldAudit(ctx context.Context) (int64, error) {
	if s.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.PurgeAuditBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep audit entries: %w", err)
	}
	s.metrics.Swept(metrics.KindAudit, n)
	return n, nil
}

// Sweep runs both purges. The audit purge still runs when the idempotency
// purge fails; the first error is returned with the partial report.
func (s *Sweeper) Sweep(ctx context.Context) (Report, error) {
	report := Report{SweptAt: s.now()}

	var firstErr error
	n, err := s.PurgeExpiredIdempotency(ctx)
	if err != nil {
		s.logger.Error("idempotency sweep failed", "error", err)
		firstErr = err
	}
	report.IdempotencyPurged = n

	n, err = s.PurgeOldAudit(ctx)
	if err != nil {
		s.logger.Error("audit sweep failed", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	report.AuditPurged = n

	s.logger.Info("sweep finished",
		"idempotency_purged", report.IdempotencyPurged,
		"audit_purged", report.AuditPurged,
		"ttl", s.ttl,
		"audit_retention_days", s.retentionDays)
	return report, firstErr
}
