package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/erpgate/internal/store"
)

// LookupOptions holds flags for the lookup command.
type LookupOptions struct {
	*RootOptions
	Database string
}

// LookupResult is the JSON payload of the lookup command.
type LookupResult struct {
	Key          string          `json:"key"`
	CreatedAt    time.Time       `json:"created_at"`
	ResponseHash string          `json:"response_hash"`
	Expired      bool            `json:"expired"`
	Response     json.RawMessage `json:"response"`
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LookupOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <idempotency-key>",
		Short: "Show the cached response for an idempotency key",
		Long: `Show the response cached under an idempotency key.

Records past the configured idempotency_ttl are shown but marked expired;
the pipeline treats them as absent.

Exit codes:
  0 - Record found
  1 - No record for the key
  2 - Command error

Examples:
  erpgate lookup --db ./erpgate.db move-po7
  erpgate lookup --db ./erpgate.db move-po7 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runLookup(ctx context.Context, opts *LookupOptions, key string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openExisting(opts.RootOptions, opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	rec, err := st.ReadIdempotency(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		if err := f.Error("E_NOT_FOUND", fmt.Sprintf("no cached response for key %q", key), nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("no cached response for key %q", key))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read idempotency record", err)
	}

	result := LookupResult{
		Key:          rec.Key,
		CreatedAt:    rec.CreatedAt.UTC(),
		ResponseHash: rec.ResponseHash,
		Expired:      rec.Expired(st.Now(), st.IdempotencyTTL()),
		Response:     json.RawMessage(rec.Response),
	}

	if opts.Format == "json" {
		return f.Success(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "key:      %s\n", result.Key)
	fmt.Fprintf(w, "created:  %s\n", result.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "hash:     %s\n", result.ResponseHash)
	if result.Expired {
		fmt.Fprintln(w, "expired:  yes")
	}
	fmt.Fprintf(w, "response: %s\n", rec.Response)
	return nil
}
