package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"qrbadge/internal/cli"
)

// main stays thin: the cli package owns flag parsing, execution and the
// exit-code mapping.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	result, err := cli.Run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "qrbadge:", err)
	}
	os.Exit(result.ExitCode)
}
