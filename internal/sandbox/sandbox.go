// Package sandbox runs agent-supplied Python code in an isolated remote
// environment.
package sandbox

import "context"

// Output is the captured result of one code execution.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes untrusted Python code under a hard time limit.
type Runner interface {
	Run(ctx context.Context, code string) (Output, error)
}
