package policy

import "testing"

func TestGate_ExactPath(t *testing.T) {
	g := NewGate([]string{"math", "collections.abc"})

	tests := []struct {
		path string
		want bool
	}{
		{"math", true},
		{"collections.abc", true},
		{"collections", true}, // ancestor of an authorized subtree
		{"collections.abc.Set", false},
		{"os", false},
		{"mathx", false},
		{"math.sqrt", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := g.Authorized(tt.path); got != tt.want {
			t.Errorf("Authorized(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGate_WildcardSubtree(t *testing.T) {
	g := NewGate([]string{"numpy.*"})

	tests := []struct {
		path string
		want bool
	}{
		{"numpy", true},
		{"numpy.random", true},
		{"numpy.random.default_rng", true},
		{"numpyx", false},
		{"pandas", false},
	}
	for _, tt := range tests {
		if got := g.Authorized(tt.path); got != tt.want {
			t.Errorf("Authorized(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestGate_BareWildcard(t *testing.T) {
	g := NewGate([]string{"*"})
	for _, path := range []string{"os", "os.path", "anything.at.all"} {
		if !g.Authorized(path) {
			t.Errorf("Authorized(%q) = false, want true under bare wildcard", path)
		}
	}
}

func TestGate_Empty(t *testing.T) {
	if NewGate(nil).Authorized("math") {
		t.Error("empty gate authorized a path")
	}
	var g *Gate
	if g.Authorized("math") {
		t.Error("nil gate authorized a path")
	}
}

func TestGate_MergesOverlappingPatterns(t *testing.T) {
	g := NewGate([]string{"a.b", "a.b.c", "a.b"})
	if !g.Authorized("a.b.c") {
		t.Error("expected a.b.c authorized")
	}
	if !g.Authorized("a.b") {
		t.Error("expected a.b authorized")
	}
	if g.Authorized("a.c") {
		t.Error("a.c should not be authorized")
	}
}

func TestDenyList(t *testing.T) {
	d := DefaultDenyList()
	for _, name := range []string{"os.system", "builtins.eval", "subprocess.Popen"} {
		if !d.Denied(name) {
			t.Errorf("Denied(%q) = false, want true", name)
		}
	}
	if d.Denied("math.sqrt") {
		t.Error("math.sqrt should not be denied")
	}
	var nilList *DenyList
	if nilList.Denied("os.system") {
		t.Error("nil deny list denied a name")
	}
}
