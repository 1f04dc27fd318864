package executor

import (
	"errors"
	"fmt"
)

// Common errors for executor operations.
var (
	// ErrCodeExecution marks failures raised by the submitted code
	// itself: exceptions, quota hits, forbidden constructs.
	ErrCodeExecution = errors.New("code execution failed")

	// ErrInfrastructure marks sandbox failures outside the submitted
	// code: session failed to start, unreachable, timed out, malformed
	// response. Never retried by this layer.
	ErrInfrastructure = errors.New("sandbox infrastructure failure")

	// ErrConfiguration is returned for invalid executor configuration.
	ErrConfiguration = errors.New("invalid executor configuration")

	// ErrSessionClosed is returned when a session is used after
	// Cleanup.
	ErrSessionClosed = errors.New("session closed")

	// ErrKindNotFound is returned when no factory is registered for a
	// backend kind.
	ErrKindNotFound = errors.New("executor kind not registered")
)

// InfraError is an infrastructure failure with the operation that hit
// it. It matches ErrInfrastructure under errors.Is.
type InfraError struct {
	// Op names the failing operation ("create kernel", "connect",
	// "execute", ...).
	Op  string
	Err error
}

func (e *InfraError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfraError) Unwrap() error { return e.Err }

func (e *InfraError) Is(target error) bool { return target == ErrInfrastructure }

// CodeError wraps a code-level failure as reported by a sandbox: the
// exception name, its message, and any traceback text the runtime
// produced. It matches ErrCodeExecution under errors.Is.
type CodeError struct {
	Name      string
	Message   string
	Traceback string
}

func (e *CodeError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *CodeError) Is(target error) bool { return target == ErrCodeExecution }
