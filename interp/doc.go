// Package interp evaluates a restricted subset of Python-like source
// under a capability security policy.
//
// # Architecture
//
// Source text flows through three stages: an indentation-aware lexer,
// a recursive-descent parser producing a closed AST union, and a
// tree-walking evaluator dispatching over that union. The evaluator
// threads an explicit per-run context (operation counters, the print
// log, the method-call stack) through every node rather than hiding
// counters in the variable namespace.
//
// # Security model
//
// Three mechanisms restrict what evaluated code can reach:
//
//   - imports must satisfy a [policy.Gate] allow-list, and imported
//     modules are wrapped in filtered proxies that recursively re-wrap
//     nested modules
//   - dunder attribute access is rejected outside a short allow-list
//     (__init__, __call__, __str__, __repr__)
//   - total operations and per-while-loop iterations are capped by
//     hard quotas with deterministic failure messages
//
// Values returned by host callables are additionally re-checked
// against the gate and the deny-list. This is a best-effort
// mitigation over a dynamic language, not a verified isolation
// boundary.
//
// # Errors
//
// Two error kinds leave the evaluator. [Error] covers disallowed or
// unsupported constructs (bad syntax, unauthorized imports, forbidden
// dunders, quota exhaustion, undefined names) and is never catchable
// by the evaluated code's own try/except. [Raised] carries an
// exception instance raised at runtime and is catchable. The
// designated final-answer tool completes the whole submission through
// a third, non-error channel reported as RunResult.IsFinalAnswer.
package interp
