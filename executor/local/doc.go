// Package local provides the in-process executor backend. It wraps
// the interp evaluator directly: SendTools and SendVariables mutate
// the session's tool table and environment, Execute parses and
// evaluates the submission, and the final-answer signal becomes
// IsFinalAnswer on the result.
//
// The in-process backend is a capability restriction over the
// evaluated language, not an isolation boundary. Code that must be
// treated as hostile belongs in one of the out-of-process backends.
package local
