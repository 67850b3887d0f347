// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/dccon-cli/cmd"
)

// osExit allows tests to intercept the exit code.
var osExit = os.Exit

// main is the entry point for the dccon CLI application.
func main() {
	// Cancel in-flight discovery and evaluation on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			osExit(0)
			return
		}
		osExit(1)
	}
}
