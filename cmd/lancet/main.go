// File: cmd/lancet/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/lancet/cmd"
	"github.com/xkilldash9x/lancet/internal/observability"
)

// Exit codes form the CI contract: 0 for a clean scan, 1 when findings reach
// the failure threshold, 2 for operational errors.
const (
	exitClean            = 0
	exitFindings         = 1
	exitOperationalError = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// Listen for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	err := cmd.Execute(ctx)
	switch {
	case err == nil:
		return exitClean
	case errors.Is(err, cmd.ErrFindingsAboveThreshold):
		return exitFindings
	default:
		return exitOperationalError
	}
}
