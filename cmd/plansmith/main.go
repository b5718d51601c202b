package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/plansmith/internal/cmd"
	"github.com/felixgeelhaar/plansmith/internal/exitcode"
)

func main() {
	// Interrupts cancel the running pipeline, which ends in Cancelled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		exitcode.Exit(exitcode.Success)
	}

	code := exitcode.DetermineExitCode(err)
	switch code {
	case exitcode.Cancelled:
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user")
	case exitcode.PartialPlan:
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	exitcode.Exit(code)
}
