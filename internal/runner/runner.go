// Package runner defines the boundary between the scheduler engine and
// whatever actually performs a task's work.
package runner

import "context"

// Payload is the opaque work description handed to a runner.
type Payload struct {
	// Task is the scheduled task's name, for attribution.
	Task string
	// Agent identifies the kind of worker to spawn.
	Agent string
	// Message is the instruction content for that worker.
	Message string
}

// Result is the runner's report for one run.
type Result struct {
	OK      bool
	Message string
}

// Runner executes one payload. Cancelling ctx must cause prompt (not
// necessarily instant) return; the engine records a cancelled run as failed
// with the returned or context error as its message.
type Runner interface {
	Run(ctx context.Context, p Payload) (Result, error)
}

// Func adapts a function to the Runner interface.
type Func func(ctx context.Context, p Payload) (Result, error)

func (f Func) Run(ctx context.Context, p Payload) (Result, error) { return f(ctx, p) }

// Nop is a runner that succeeds immediately without doing anything. Used
// when the host has no agent command configured.
func Nop() Runner {
	return Func(func(ctx context.Context, p Payload) (Result, error) {
		return Result{OK: true, Message: "no-op"}, nil
	})
}
