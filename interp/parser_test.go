package interp

import (
	"errors"
	"testing"
)

func TestParseStatementShapes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string // top-level statement kinds
	}{
		{"assignment", "x = 1", []string{"assign"}},
		{"multi assign", "x = y = 1", []string{"assign"}},
		{"aug assign", "x += 1", []string{"augassign"}},
		{"semicolons", "a = 1; b = 2", []string{"assign", "assign"}},
		{"if elif else", "if a:\n    pass\nelif b:\n    pass\nelse:\n    pass", []string{"if"}},
		{"func def", "def f(a, b=1, *args, **kw):\n    return a", []string{"functiondef"}},
		{"class def", "class C(Base):\n    pass", []string{"classdef"}},
		{"try finally", "try:\n    pass\nfinally:\n    pass", []string{"try"}},
		{"with as", "with ctx() as c:\n    pass", []string{"with"}},
		{"import list", "import math, json as j", []string{"import"}},
		{"from import", "from a.b import c, d as e", []string{"importfrom"}},
		{"inline suite", "if x: y = 1", []string{"if"}},
		{"continuation", "x = (1 +\n     2)", []string{"assign"}},
		{"blank lines", "\n\nx = 1\n\n", []string{"assign"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if len(stmts) != len(tt.want) {
				t.Fatalf("got %d statements, want %d", len(stmts), len(tt.want))
			}
			for i, stmt := range stmts {
				if stmt.Kind() != tt.want[i] {
					t.Errorf("stmt[%d] kind = %s, want %s", i, stmt.Kind(), tt.want[i])
				}
			}
		})
	}
}

func TestParseBlankLinesBetweenBlocks(t *testing.T) {
	src := `def a():
    return 1

# a separating comment

def b():
    if True:
        return 2

    return 3
x = 1`
	stmts, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []string{"functiondef", "functiondef", "assign"}
	if len(stmts) != len(want) {
		t.Fatalf("got %d statements, want %d", len(stmts), len(want))
	}
	for i, stmt := range stmts {
		if stmt.Kind() != want[i] {
			t.Errorf("stmt[%d] kind = %s, want %s", i, stmt.Kind(), want[i])
		}
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed paren", "x = (1 + 2"},
		{"bad indent", "if x:\npass"},
		{"dedent mismatch", "if x:\n        a = 1\n    b = 2"},
		{"yield unsupported", "yield 1"},
		{"global unsupported", "global x"},
		{"try without except", "try:\n    pass"},
		{"default before positional", "def f(a=1, b):\n    pass"},
		{"assign to literal", "1 = x"},
		{"lone star", "x = *y"},
		{"bad fstring", `x = f"{1 +}"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.src)
			}
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("err = %v, want unsupported-category error", err)
			}
		})
	}
}

func TestParseChainedComparison(t *testing.T) {
	stmts, err := Parse("a < b <= c")
	if err != nil {
		t.Fatal(err)
	}
	cmp, ok := stmts[0].(*ExprStmt).Value.(*CompareExpr)
	if !ok {
		t.Fatalf("not a comparison: %T", stmts[0].(*ExprStmt).Value)
	}
	if len(cmp.Ops) != 2 || cmp.Ops[0] != "<" || cmp.Ops[1] != "<=" {
		t.Errorf("ops = %v", cmp.Ops)
	}
}

func TestParseCallKeywords(t *testing.T) {
	stmts, err := Parse("f(1, x, key=2, *rest, **extra)")
	if err != nil {
		t.Fatal(err)
	}
	call := stmts[0].(*ExprStmt).Value.(*CallExpr)
	if len(call.Args) != 3 { // 1, x, *rest
		t.Errorf("args = %d, want 3", len(call.Args))
	}
	if len(call.Keywords) != 2 { // key=2, **extra
		t.Errorf("keywords = %d, want 2", len(call.Keywords))
	}
	if call.Keywords[1].Name != "" {
		t.Errorf("** keyword should have empty name, got %q", call.Keywords[1].Name)
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		src  string
		want any
	}{
		{"42", int64(42)},
		{"0x1f", int64(31)},
		{"0b101", int64(5)},
		{"0o17", int64(15)},
		{"1_000_000", int64(1000000)},
		{"3.5", 3.5},
		{"1e3", 1000.0},
		{".5", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmts, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			var got any
			switch lit := stmts[0].(*ExprStmt).Value.(type) {
			case *IntLit:
				got = lit.Value
			case *FloatLit:
				got = lit.Value
			default:
				t.Fatalf("unexpected literal %T", lit)
			}
			if got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"escapes", `"a\tb\n"`, "a\tb\n"},
		{"raw", `r"a\tb"`, `a\tb`},
		{"triple", "'''line1\nline2'''", "line1\nline2"},
		{"adjacent concat", `"foo" 'bar'`, "foobar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			lit, ok := stmts[0].(*ExprStmt).Value.(*StringLit)
			if !ok {
				t.Fatalf("unexpected %T", stmts[0].(*ExprStmt).Value)
			}
			if lit.Value != tt.want {
				t.Errorf("value = %q, want %q", lit.Value, tt.want)
			}
		})
	}
}
