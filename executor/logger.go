package executor

// Logger is an optional interface for observability during execution.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging must be best-effort; Logf should not panic.
// - Ownership: format/args are read-only.
type Logger interface {
	// Logf logs a formatted message.
	Logf(format string, args ...any)
}

// NopLogger discards everything. Backends use it when no logger is
// configured so call sites skip nil checks.
type NopLogger struct{}

func (NopLogger) Logf(string, ...any) {}

var _ Logger = NopLogger{}
