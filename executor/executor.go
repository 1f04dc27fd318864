package executor

import (
	"context"

	"github.com/pyrite-run/pyrite/tools"
)

// Result is the normalized outcome of one Execute call, identical
// across backends.
type Result struct {
	// Output is the produced value: the final-answer payload when
	// IsFinalAnswer is set, otherwise the value of the last expression
	// statement (nil when the submission ends on a non-expression).
	Output any

	// Logs is the text the submission printed, in order. Populated
	// even when Execute returns an error, so partial progress is never
	// dropped.
	Logs string

	// IsFinalAnswer reports whether the designated final-answer tool
	// ended the submission.
	IsFinalAnswer bool
}

// Executor is one execution session.
//
// Contract:
// - Concurrency: a session must not receive concurrent Execute calls;
//   the contract offers no internal locking. Callers running several
//   submissions in parallel must use one session each.
// - Context: methods must honor cancellation/deadlines; a canceled
//   remote round-trip is reported as an infrastructure error with
//   whatever log was captured.
// - Errors: Execute returns its Result alongside a non-nil error so
//   captured logs survive failures. Infrastructure failures are
//   *InfraError and are never retried by this layer.
// - Lifecycle: Cleanup must be idempotent and is expected on every
//   exit path, including error exit.
type Executor interface {
	// SendTools installs named callables into the session. Re-sending
	// a tool already installed under the same name is a no-op.
	SendTools(ctx context.Context, defs []tools.Tool) error

	// SendVariables merges a snapshot of named values into session
	// state. An empty snapshot is a no-op.
	SendVariables(ctx context.Context, vars map[string]any) error

	// Execute runs one submission against the current session state.
	Execute(ctx context.Context, code string) (Result, error)

	// InstallPackages ensures third-party packages are present in the
	// session before first use of the tools that need them.
	InstallPackages(ctx context.Context, packages []string) error

	// Cleanup releases the session's resources.
	Cleanup() error
}

// Factory creates executor instances by name.
type Factory func(name string) (Executor, error)
