package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// finalAnswerShim raises FinalAnswerException with the base64 JSON
// payload as its message. Shipped to every remote sandbox ahead of the
// tool sources so the wrapped final-answer tool is defined before any
// tool source can reference it.
const finalAnswerShim = `import base64 as _fa_base64
import json as _fa_json

class FinalAnswerException(Exception):
    def __init__(self, value):
        self.value = value
        super().__init__(_fa_base64.b64encode(_fa_json.dumps(value).encode()).decode())

def final_answer(answer):
    raise FinalAnswerException(answer)
`

// RemoteSources renders the setup code a remote sandbox runs once per
// session: the final-answer shim followed by each tool's declared
// source. The designated final-answer tool is replaced by the shim
// rather than rendered, so calling it in the sandbox raises
// FinalAnswerException instead of returning.
func RemoteSources(defs []Tool) (string, error) {
	var b strings.Builder
	b.WriteString(finalAnswerShim)
	for _, t := range defs {
		if t.Name == FinalAnswerName {
			continue
		}
		if t.Source == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingSource, t.Name)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimRight(t.Source, "\n"))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// VariableAssignments renders a variable snapshot as assignment
// statements the sandbox evaluates to merge state. Values must be
// JSON-serializable; JSON literals for null/true/false are rewritten
// to their language spellings.
func VariableAssignments(vars map[string]any) (string, error) {
	if len(vars) == 0 {
		return "", nil
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	// Deterministic order keeps session setup reproducible.
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		lit, err := pyLiteral(vars[name])
		if err != nil {
			return "", fmt.Errorf("serializing variable %s: %w", name, err)
		}
		fmt.Fprintf(&b, "%s = %s\n", name, lit)
	}
	return b.String(), nil
}

func pyLiteral(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(data)
	switch s {
	case "null":
		return "None", nil
	case "true":
		return "True", nil
	case "false":
		return "False", nil
	}
	if strings.ContainsAny(s, "ntf") && (strings.Contains(s, "null") ||
		strings.Contains(s, "true") || strings.Contains(s, "false")) {
		// Nested literals inside containers: round-trip through the
		// sandbox's JSON parser instead of rewriting tokens, which
		// would corrupt strings containing those words.
		return fmt.Sprintf("__import__('json').loads(%s)", pyString(s)), nil
	}
	return s, nil
}

func pyString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
