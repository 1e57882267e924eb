// Command erpgate runs pipeline scenarios and inspects and sweeps the
// idempotency and audit database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/erpgate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "erpgate: %v\n", err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
