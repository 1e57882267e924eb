package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/erpgate/internal/metrics"
	"github.com/roach88/erpgate/internal/sweeper"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	Database    string
	MetricsFile string
}

// SweepResult is the JSON payload of the sweep command.
type SweepResult struct {
	IdempotencyPurged int64     `json:"idempotency_purged"`
	AuditPurged       int64     `json:"audit_purged"`
	SweptAt           time.Time `json:"swept_at"`
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired idempotency records and old audit entries",
		Long: `Run the retention sweeper once.

Idempotency records older than idempotency_ttl and audit entries older
than audit_retention_days are deleted. A zero or negative setting turns
that purge off. Meant to be run from cron.

When a metrics file is configured (metrics_file, ERPGATE_METRICS_FILE or
--metrics-file) the swept counters are written there in the Prometheus
text format.

Examples:
  erpgate sweep --db ./erpgate.db
  erpgate sweep --config ./erpgate.yaml --metrics-file /var/lib/node_exporter/erpgate.prom`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "write metrics to this textfile (default from config)")

	return cmd
}

func runSweep(ctx context.Context, opts *SweepOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.settings()

	st, err := openExisting(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register metrics", err)
	}

	sweepOpts := append(cfg.SweeperOptions(),
		sweeper.WithMetrics(m),
		sweeper.WithLogger(slog.Default()),
	)
	report, sweepErr := sweeper.New(st, sweepOpts...).Sweep(ctx)

	metricsFile := opts.MetricsFile
	if metricsFile == "" {
		metricsFile = cfg.MetricsFile
	}
	if metricsFile != "" {
		if err := metrics.WriteTextfile(metricsFile, reg); err != nil {
			slog.Error("failed to write metrics", "path", metricsFile, "error", err)
		}
	}

	if sweepErr != nil {
		return WrapExitError(ExitCommandError, "sweep failed", sweepErr)
	}

	result := SweepResult{
		IdempotencyPurged: report.IdempotencyPurged,
		AuditPurged:       report.AuditPurged,
		SweptAt:           report.SweptAt.UTC(),
	}
	if opts.Format == "json" {
		f := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return f.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Swept %d idempotency records and %d audit entries\n",
		result.IdempotencyPurged, result.AuditPurged)
	return nil
}
