// Package executor defines the backend-agnostic contract for running
// restricted code: one interface every backend implements, the
// normalized result triple, the error taxonomy, and a registry for
// building backends by kind.
//
// # Architecture
//
// A session is created once, receives tools and variables, runs many
// Execute calls, and is torn down once. The in-process backend
// (executor/local) wraps the interp evaluator directly; the remote
// backends adapt a sandbox runtime behind the same five operations.
// The caller always gets the same triple back: the produced output,
// the captured log text, and whether the designated final-answer tool
// ended the submission.
//
// # Errors
//
// Code-level failures (the submitted code raised, hit a quota, used a
// forbidden construct) wrap ErrCodeExecution and carry the partial log
// in the Result returned alongside them. Infrastructure failures
// (session failed to start, unreachable, timed out, malformed
// response) are *InfraError, matching ErrInfrastructure; this layer
// never retries them — the orchestration layer decides whether to
// retry or recreate the session.
package executor
