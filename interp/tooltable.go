package interp

// ToolTable holds two callable namespaces: static tools supplied by
// the host, whose name bindings evaluated code can never overwrite,
// and custom tools created by the evaluated code itself, freely
// redefinable.
type ToolTable struct {
	static      map[string]*Builtin
	custom      map[string]any
	finalAnswer string
}

func NewToolTable() *ToolTable {
	return &ToolTable{
		static: make(map[string]*Builtin),
		custom: make(map[string]any),
	}
}

func (t *ToolTable) AddStatic(name string, fn *Builtin) {
	t.static[name] = fn
}

func (t *ToolTable) IsStatic(name string) bool {
	_, ok := t.static[name]
	return ok
}

func (t *ToolTable) Static(name string) (*Builtin, bool) {
	fn, ok := t.static[name]
	return fn, ok
}

func (t *ToolTable) SetCustom(name string, value any) {
	t.custom[name] = value
}

func (t *ToolTable) Custom(name string) (any, bool) {
	v, ok := t.custom[name]
	return v, ok
}

// SetFinalAnswer designates the static tool whose call completes the
// whole submission instead of returning normally.
func (t *ToolTable) SetFinalAnswer(name string) {
	t.finalAnswer = name
}

func (t *ToolTable) FinalAnswerName() string { return t.finalAnswer }

func (t *ToolTable) Names() []string {
	out := make([]string, 0, len(t.static)+len(t.custom))
	for name := range t.static {
		out = append(out, name)
	}
	for name := range t.custom {
		out = append(out, name)
	}
	return out
}
