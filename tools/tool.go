package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Errors for tool definitions.
var (
	ErrInvalidTool   = errors.New("invalid tool definition")
	ErrMissingSource = errors.New("tool has no source for remote execution")
)

// HandlerFunc is the function signature for tool handlers.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Tool is a named callable supplied to an execution session.
//
// Contract:
// - Concurrency: handlers must be safe for concurrent use.
// - Context: handlers must honor cancellation and return ctx.Err() when canceled.
// - Ownership: args are read-only; returned values are caller-owned.
type Tool struct {
	Name        string
	Description string

	// Parameters lists argument names in declaration order. Evaluated
	// code may pass them positionally; they are bound to these names
	// before the handler runs.
	Parameters []string

	// InputSchema is the JSON schema for the tool's arguments, in the
	// MCP inputSchema shape.
	InputSchema map[string]any

	Annotations *mcp.ToolAnnotations

	// Source is the tool's implementation in the restricted language,
	// used by out-of-process backends to recreate the tool in the
	// sandbox. Empty for tools that only run in-process.
	Source string

	// Packages lists third-party packages the tool needs installed in
	// a sandbox session before first use.
	Packages []string

	// Handler runs the tool in-process. Nil for tools that only exist
	// as Source.
	Handler HandlerFunc
}

// Validate checks the definition is usable by at least one backend.
func (t Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTool)
	}
	if t.Handler == nil && t.Source == "" {
		return fmt.Errorf("%w: %s has neither handler nor source", ErrInvalidTool, t.Name)
	}
	return nil
}

// MCPTool converts the definition to an MCP tool descriptor.
func (t Tool) MCPTool() mcp.Tool {
	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.InputSchema,
		Annotations: t.Annotations,
	}
}

// BindArgs maps a positional/keyword call onto the tool's declared
// parameter names. Keyword arguments win on conflict detection: a name
// bound both ways is an error.
func (t Tool) BindArgs(args []any, kwargs map[string]any) (map[string]any, error) {
	if len(args) > len(t.Parameters) {
		return nil, fmt.Errorf("%w: %s takes at most %d positional arguments (got %d)",
			ErrInvalidTool, t.Name, len(t.Parameters), len(args))
	}
	bound := make(map[string]any, len(args)+len(kwargs))
	for i, v := range args {
		bound[t.Parameters[i]] = v
	}
	for k, v := range kwargs {
		if _, dup := bound[k]; dup {
			return nil, fmt.Errorf("%w: %s got multiple values for argument '%s'",
				ErrInvalidTool, t.Name, k)
		}
		bound[k] = v
	}
	return bound, nil
}

// Packages aggregates, deduplicated in first-seen order, the packages
// required by a set of tools.
func Packages(defs []Tool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range defs {
		for _, pkg := range t.Packages {
			if !seen[pkg] {
				seen[pkg] = true
				out = append(out, pkg)
			}
		}
	}
	return out
}
