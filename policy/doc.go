// Package policy decides which module paths and host callables are
// reachable from evaluated code.
//
// The package has two parts:
//
//   - [Gate]: a prefix trie over dotted import paths built once per
//     session from a flat list of authorized path patterns. A pattern is
//     an exact path ("math"), a dotted prefix whose subtree is opened
//     with a wildcard ("numpy.*"), or the bare wildcard "*" which
//     authorizes everything.
//
//   - [DenyList]: a fixed set of qualified callable names (process,
//     filesystem, and eval/exec class primitives) that must never become
//     callable from evaluated code unless the exact callable was
//     explicitly installed as a static tool.
//
// The gate is checked at every import statement and again, defensively,
// against values flowing back from permitted calls. That second pass is a
// best-effort mitigation over a dynamic language, not a verified
// capability system; out-of-process sandboxes provide the real isolation
// boundary.
package policy
