package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	handler := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }
	tests := []struct {
		name    string
		tool    Tool
		wantErr bool
	}{
		{"handler only", Tool{Name: "t", Handler: handler}, false},
		{"source only", Tool{Name: "t", Source: "def t():\n    pass"}, false},
		{"missing name", Tool{Handler: handler}, true},
		{"neither handler nor source", Tool{Name: "t"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTool) {
				t.Errorf("error should wrap ErrInvalidTool, got %v", err)
			}
		})
	}
}

func TestBindArgs(t *testing.T) {
	tool := Tool{Name: "search", Parameters: []string{"query", "limit"}}

	got, err := tool.BindArgs([]any{"cats"}, map[string]any{"limit": 5})
	if err != nil {
		t.Fatal(err)
	}
	if got["query"] != "cats" || got["limit"] != 5 {
		t.Errorf("bound = %v", got)
	}

	if _, err := tool.BindArgs([]any{"a", "b", "c"}, nil); err == nil {
		t.Error("too many positional args should fail")
	}
	if _, err := tool.BindArgs([]any{"a"}, map[string]any{"query": "b"}); err == nil {
		t.Error("duplicate binding should fail")
	}
}

func TestMCPTool(t *testing.T) {
	tool := Tool{
		Name:        "search",
		Description: "searches",
		InputSchema: map[string]any{"type": "object"},
	}
	mt := tool.MCPTool()
	if mt.Name != "search" || mt.Description != "searches" {
		t.Errorf("conversion lost fields: %+v", mt)
	}
}

func TestPackages(t *testing.T) {
	defs := []Tool{
		{Name: "a", Packages: []string{"requests", "numpy"}},
		{Name: "b", Packages: []string{"numpy", "pandas"}},
	}
	got := Packages(defs)
	want := []string{"requests", "numpy", "pandas"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Packages()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFinalAnswerRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"string", "paris"},
		{"number", 42.0},
		{"list", []any{1.0, "two", nil}},
		{"map", map[string]any{"answer": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeFinalAnswer(tt.value)
			if err != nil {
				t.Fatal(err)
			}
			got := DecodeFinalAnswer(encoded)
			if !equalJSON(got, tt.value) {
				t.Errorf("round trip = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestDecodeFinalAnswerRawFallback(t *testing.T) {
	// A hand-raised FinalAnswerException with a plain message must
	// still surface the message, not an error.
	if got := DecodeFinalAnswer("not base64!"); got != "not base64!" {
		t.Errorf("got %v", got)
	}
}

func TestRemoteSources(t *testing.T) {
	defs := []Tool{
		FinalAnswer(),
		{Name: "greet", Source: "def greet(name):\n    return 'hi ' + name"},
	}
	src, err := RemoteSources(defs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(src, "class FinalAnswerException(Exception):") {
		t.Error("shim missing")
	}
	if !strings.Contains(src, "def greet(name):") {
		t.Error("tool source missing")
	}
	if strings.Count(src, "def final_answer") != 1 {
		t.Error("final answer tool must be rendered once, as the shim")
	}
}

func TestRemoteSourcesMissingSource(t *testing.T) {
	handler := func(_ context.Context, _ map[string]any) (any, error) { return nil, nil }
	_, err := RemoteSources([]Tool{{Name: "local_only", Handler: handler}})
	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("err = %v, want ErrMissingSource", err)
	}
}

func TestVariableAssignments(t *testing.T) {
	code, err := VariableAssignments(map[string]any{
		"count": 3,
		"name":  "ada",
		"flag":  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := "count = 3\nflag = True\nname = \"ada\"\n"
	if code != want {
		t.Errorf("code = %q, want %q", code, want)
	}

	empty, err := VariableAssignments(nil)
	if err != nil || empty != "" {
		t.Errorf("empty snapshot: code=%q err=%v", empty, err)
	}
}

func equalJSON(a, b any) bool {
	switch av := a.(type) {
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !equalJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k := range av {
			if !equalJSON(av[k], bv[k]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
