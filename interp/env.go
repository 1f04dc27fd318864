package interp

// Env is a flat variable scope. Function bodies and comprehensions run
// in a shallow copy of the enclosing scope, so assignments inside them
// never leak out; top-level code shares one Env across Run calls.
type Env struct {
	vars map[string]any
}

func NewEnv() *Env {
	return &Env{vars: make(map[string]any)}
}

func (e *Env) Get(name string) (any, bool) {
	v, ok := e.vars[name]
	return v, ok
}

func (e *Env) Set(name string, value any) {
	e.vars[name] = value
}

func (e *Env) Delete(name string) bool {
	if _, ok := e.vars[name]; !ok {
		return false
	}
	delete(e.vars, name)
	return true
}

// Snapshot returns a shallow copy. Mutable values stay shared, names
// do not.
func (e *Env) Snapshot() *Env {
	out := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return &Env{vars: out}
}

// Names returns the bound names, useful for did-you-mean suggestions.
func (e *Env) Names() []string {
	out := make([]string, 0, len(e.vars))
	for k := range e.vars {
		out = append(out, k)
	}
	return out
}

// Export copies the bindings into a plain map for callers outside the
// interpreter.
func (e *Env) Export() map[string]any {
	out := make(map[string]any, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}
