package interp

// HostFunc is a Go callable exposed to evaluated code. Args carries
// the positional arguments in call order; kwargs may be nil.
//
// Contract:
// - Errors: returning *Raised surfaces as a catchable exception in the
//   evaluated code; any other error aborts the submission.
// - Ownership: args and kwargs are caller-owned snapshots.
type HostFunc func(args []any, kwargs map[string]any) (any, error)

// NewHostTool wraps a HostFunc as a static-tool callable. Values it
// returns pass the same import-gate and deny-list checks as module
// attributes.
func NewHostTool(name string, fn HostFunc) *Builtin {
	return &Builtin{
		Name: name,
		Fn: func(_ *evaluator, args []any, kwargs map[string]any) (any, error) {
			return fn(args, kwargs)
		},
	}
}
