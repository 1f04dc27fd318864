// Package wasm provides an execution backend over a WebAssembly
// interpreter hosted by a locked-down subprocess. The subprocess runs
// an embedded server script inside a restricted JavaScript runtime
// (network access limited to the loopback listener), lazily loads the
// WASM-compiled interpreter on first request, and serves
// POST / {code, packages[]} -> {result, stdout, error{name,message,stack}}.
// Packages accumulate per session and install lazily on first use.
package wasm
