package interp

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrUnsupported indicates a construct outside the restricted
	// language subset.
	ErrUnsupported = errors.New("unsupported construct")

	// ErrUnauthorizedImport indicates an import rejected by the gate.
	ErrUnauthorizedImport = errors.New("unauthorized import")

	// ErrForbiddenAccess indicates access to a forbidden dunder name or
	// deny-listed callable.
	ErrForbiddenAccess = errors.New("forbidden access")

	// ErrQuotaExceeded indicates the operation or iteration ceiling was
	// reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrUndefinedName indicates a name that resolves nowhere.
	ErrUndefinedName = errors.New("undefined name")
)

// Error is the interpreter-level error: any disallowed or unsupported
// construct encountered during evaluation. It carries the offending
// source fragment and the node kind that produced it.
type Error struct {
	// Message describes the error.
	Message string

	// Fragment is the offending source text, when available.
	Fragment string

	// Node is the syntax node kind being evaluated ("call", "import",
	// "while", ...). Empty when the error predates evaluation.
	Node string

	// Line is the 1-based source line. Zero when unknown.
	Line int

	// Err is the sentinel category, if any.
	Err error
}

// Error returns the message with source context when available.
func (e *Error) Error() string {
	msg := e.Message
	if e.Line > 0 {
		msg = fmt.Sprintf("%s (line %d)", msg, e.Line)
	}
	if e.Fragment != "" {
		msg = fmt.Sprintf("%s\n  in: %s", msg, e.Fragment)
	}
	return msg
}

// Unwrap returns the sentinel category for use with errors.Is.
func (e *Error) Unwrap() error {
	return e.Err
}

// Raised is an exception raised by evaluated code (or by a runtime
// operation that maps onto one of the builtin exception types). Unlike
// [Error], a Raised error is catchable by the code's own try/except
// handlers.
type Raised struct {
	// Value is the exception instance (*Instance of an exception class).
	Value *Instance
}

// Error formats the exception the way a traceback headline would.
func (r *Raised) Error() string {
	return formatException(r.Value)
}

// Class returns the exception class of the raised value.
func (r *Raised) Class() *Class {
	if r.Value == nil {
		return nil
	}
	return r.Value.Class
}

func formatException(inst *Instance) string {
	if inst == nil {
		return "Exception"
	}
	msg := instanceMessage(inst)
	if msg == "" {
		return inst.Class.Name
	}
	return inst.Class.Name + ": " + msg
}
