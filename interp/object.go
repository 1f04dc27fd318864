package interp

import (
	"fmt"
	"strings"
)

// Function is a user-defined function or lambda. Env is a shallow
// snapshot of the defining scope, giving closures by-value capture.
type Function struct {
	Name     string
	Params   ParamSpec
	Defaults []any // evaluated once at definition time
	Body     []Stmt
	Lambda   *LambdaExpr // non-nil for lambdas; Body is then unused
	Env      *Env
	Class    *Class // owning class for methods, nil otherwise
}

// Builtin is a callable provided by the host. Kwargs may be nil.
type Builtin struct {
	Name string
	Fn   func(ev *evaluator, args []any, kwargs map[string]any) (any, error)
}

// Class is a user-defined class or one of the built-in exception
// types.
type Class struct {
	Name  string
	Bases []*Class
	Attrs map[string]any
	// Exception marks built-in exception classes, whose construction
	// records positional args without running user code.
	Exception bool
}

// isSubclass walks the base chain.
func (c *Class) isSubclass(of *Class) bool {
	if c == of {
		return true
	}
	for _, base := range c.Bases {
		if base.isSubclass(of) {
			return true
		}
	}
	return false
}

// lookup resolves a class attribute along the inheritance chain,
// depth-first left-to-right.
func (c *Class) lookup(name string) (any, *Class, bool) {
	if v, ok := c.Attrs[name]; ok {
		return v, c, true
	}
	for _, base := range c.Bases {
		if v, owner, ok := base.lookup(name); ok {
			return v, owner, true
		}
	}
	return nil, nil, false
}

// Instance is an object created from a Class.
type Instance struct {
	Class *Class
	Attrs map[string]any
}

func newInstance(c *Class) *Instance {
	return &Instance{Class: c, Attrs: make(map[string]any)}
}

// BoundMethod pairs a receiver with a callable attribute.
type BoundMethod struct {
	Recv any
	Fn   any // *Function or *Builtin
}

func (m BoundMethod) Name() string {
	switch fn := m.Fn.(type) {
	case *Function:
		return fn.Name
	case *Builtin:
		return fn.Name
	}
	return "?"
}

// allowedDunders are the only double-underscore attributes reachable
// from executed code.
var allowedDunders = map[string]bool{
	"__init__": true,
	"__call__": true,
	"__str__":  true,
	"__repr__": true,
}

func forbiddenDunder(name string) bool {
	return strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") && !allowedDunders[name]
}

// exceptionArgs returns the args tuple stored on an exception
// instance.
func exceptionArgs(inst *Instance) Tuple {
	if v, ok := inst.Attrs["args"]; ok {
		if t, ok := v.(Tuple); ok {
			return t
		}
	}
	return nil
}

// instanceMessage renders the message part of an exception: str() of a
// single arg, the args tuple otherwise.
func instanceMessage(inst *Instance) string {
	args := exceptionArgs(inst)
	switch len(args) {
	case 0:
		return ""
	case 1:
		return strValue(args[0])
	default:
		return reprValue(args)
	}
}

// instanceRepr is the fallback repr for instances whose __repr__ the
// caller cannot invoke (log formatting paths).
func instanceRepr(inst *Instance) string {
	if inst.Class.isSubclass(exceptionBase()) {
		return fmt.Sprintf("%s(%s)", inst.Class.Name, reprArgs(exceptionArgs(inst)))
	}
	return fmt.Sprintf("<%s object>", inst.Class.Name)
}

func instanceStr(inst *Instance) string {
	if inst.Class.isSubclass(exceptionBase()) {
		return instanceMessage(inst)
	}
	return instanceRepr(inst)
}

func reprArgs(args Tuple) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = reprValue(a)
	}
	return strings.Join(parts, ", ")
}
