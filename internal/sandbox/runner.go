// Package sandbox manages isolated filesystem workspaces for speculative or
// risky operations, separate from the primary working tree.
package sandbox

import (
	"context"
	"time"
)

// Result captures output of a command.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner executes shell commands for sandbox operations. Implementations
// should isolate execution from the host where possible.
type Runner interface {
	// RunCmd runs a command in the given working directory with a timeout.
	// - ctx: base context for cancellation
	// - dir: working directory on disk
	// - name: executable name, e.g. "/bin/sh"
	// - args: arguments
	// - timeout: optional timeout (<=0 uses default)
	RunCmd(ctx context.Context, dir, name string, args []string, timeout time.Duration) (Result, error)
}
