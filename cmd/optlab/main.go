// Command optlab builds NSE option snapshots and backtests hedged strangles.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"nse-options-lab/internal/cli"
	"nse-options-lab/internal/logging"
)

func main() {
	// A missing .env is normal; PG_DSN and OPTLAB_* may come from the shell.
	_ = godotenv.Load()

	logger := logging.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := cli.NewRootCmd(logger)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
