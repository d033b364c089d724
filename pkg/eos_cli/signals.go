// pkg/eos_cli/signals.go

package eos_cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// withInterrupt cancels the returned context on SIGINT or SIGTERM so that
// running subprocesses are killed instead of orphaned.
func withInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
