// Package tools defines the callables a caller hands to an execution
// session: name, description, MCP-compatible schema metadata, a Go
// handler for in-process execution, and declared source for backends
// that must recreate the tool inside a separate process.
//
// # Architecture
//
// A Tool is pure data plus a handler. The in-process backend installs
// the handler directly as a static tool; remote backends ignore the
// handler and ship the rendered Source instead (see RemoteSources).
// The final-answer tool is special in both worlds: in-process it ends
// the submission through the evaluator's completion signal, remotely
// it is wrapped to raise FinalAnswerException carrying a base64 JSON
// payload that every backend recognizes by name.
package tools
