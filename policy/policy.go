package policy

import "strings"

// Wildcard authorizes every path below the node it appears at. A bare
// "*" pattern authorizes all imports.
const Wildcard = "*"

// Gate is a prefix trie over dotted import paths.
//
// Contract:
// - Concurrency: Gate is immutable after construction and safe for
//   concurrent use.
// - Nil/zero: a nil or empty Gate authorizes nothing.
type Gate struct {
	root *node
}

type node struct {
	children map[string]*node
	// terminal marks a node that was the last segment of a pattern, so
	// the exact path (and, for ancestors of it, nothing more) matches.
	terminal bool
}

// NewGate builds a gate from a flat list of authorized path patterns.
// Duplicate and overlapping patterns are merged.
func NewGate(authorized []string) *Gate {
	root := &node{children: map[string]*node{}}
	for _, pattern := range authorized {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		cur := root
		for seg := range strings.SplitSeq(pattern, ".") {
			next, ok := cur.children[seg]
			if !ok {
				next = &node{children: map[string]*node{}}
				cur.children[seg] = next
			}
			cur = next
		}
		cur.terminal = true
	}
	return &Gate{root: root}
}

// Authorized reports whether the dotted path is reachable under the
// gate. A path matches if it equals a pattern, if a wildcard child is
// reached at any point along it, or if it is an ancestor of an
// authorized subtree (importing "a" is allowed when "a.b" is).
func (g *Gate) Authorized(path string) bool {
	if g == nil || g.root == nil || path == "" {
		return false
	}
	cur := g.root
	for seg := range strings.SplitSeq(path, ".") {
		if _, ok := cur.children[Wildcard]; ok {
			return true
		}
		next, ok := cur.children[seg]
		if !ok {
			return false
		}
		cur = next
	}
	// The whole path was consumed without hitting a missing segment: it
	// is either a pattern itself or an ancestor of an authorized subtree.
	return true
}
