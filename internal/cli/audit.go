package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/erpgate/internal/ir"
	"github.com/roach88/erpgate/internal/store"
)

// AuditOptions holds flags for the audit command.
type AuditOptions struct {
	*RootOptions
	Database      string
	EntityID      string
	Line          int
	CorrelationID string
	Key           string
	NeedsReview   bool
	Limit         int
}

// AuditResult is the JSON payload of the audit command.
type AuditResult struct {
	Entries []ir.AuditEntry `json:"entries"`
	Count   int             `json:"count"`
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AuditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List audit ledger entries",
		Long: `List entries of the audit ledger in append order.

Filters combine with AND. --line only applies together with --entity.

Examples:
  erpgate audit --db ./erpgate.db
  erpgate audit --db ./erpgate.db --entity PO-1 --line 10
  erpgate audit --db ./erpgate.db --correlation 0192f0c4-...
  erpgate audit --db ./erpgate.db --needs-review --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.EntityID, "entity", "", "filter by entity id (order or receipt)")
	cmd.Flags().IntVar(&opts.Line, "line", 0, "filter by order line number")
	cmd.Flags().StringVar(&opts.CorrelationID, "correlation", "", "filter by correlation id")
	cmd.Flags().StringVar(&opts.Key, "key", "", "filter by idempotency key")
	cmd.Flags().BoolVar(&opts.NeedsReview, "needs-review", false, "only entries flagged for review")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of entries (0 = all)")

	return cmd
}

func runAudit(ctx context.Context, opts *AuditOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if cmd.Flags().Changed("line") && opts.EntityID == "" {
		return NewExitError(ExitCommandError, "--line requires --entity")
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	st, err := openExisting(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	filter := store.AuditFilter{
		EntityID:       opts.EntityID,
		CorrelationID:  opts.CorrelationID,
		IdempotencyKey: opts.Key,
		NeedsReview:    opts.NeedsReview,
		Limit:          opts.Limit,
	}
	if cmd.Flags().Changed("line") {
		line := opts.Line
		filter.SubIndex = &line
	}

	entries, err := st.QueryAudit(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query audit ledger", err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		if entries == nil {
			entries = []ir.AuditEntry{}
		}
		f := &OutputFormatter{Format: "json", Writer: w}
		return f.Success(AuditResult{Entries: entries, Count: len(entries)})
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No audit entries found.")
		return nil
	}
	for _, e := range entries {
		printAuditEntry(w, e)
	}
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
	return nil
}

// openExisting opens the store at the --db path or the configured database.
// A missing file is a command error rather than a fresh empty database.
func openExisting(opts *RootOptions, flag string) (*store.Store, error) {
	path := opts.database(flag)
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(path, opts.settings().StoreOptions()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func printAuditEntry(w io.Writer, e ir.AuditEntry) {
	fmt.Fprintf(w, "[%d] %s %s %s by %s\n",
		e.ID, e.Timestamp.UTC().Format(time.RFC3339), e.Action, e.Target, e.Actor)
	fmt.Fprintf(w, "  correlation: %s\n", e.CorrelationID)
	if e.IdempotencyKey != "" {
		fmt.Fprintf(w, "  key: %s\n", e.IdempotencyKey)
	}
	if e.Previous != nil {
		fmt.Fprintf(w, "  previous: %s\n", snapshotText(e.Previous))
	}
	if e.Next != nil {
		fmt.Fprintf(w, "  next: %s\n", snapshotText(e.Next))
	}
	if e.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", e.Reason)
	}
	if e.NeedsReview {
		fmt.Fprintln(w, "  NEEDS REVIEW")
	}
}

func snapshotText(obj ir.IRObject) string {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
