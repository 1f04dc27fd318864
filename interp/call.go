package interp

import (
	"fmt"
)

func (ev *evaluator) evalCall(e *CallExpr, env *Env) (any, error) {
	callee, err := ev.evalExpr(e.Func, env)
	if err != nil {
		return nil, err
	}
	args, err := ev.evalElements(e.Args, env)
	if err != nil {
		return nil, err
	}
	var kwargs map[string]any
	for _, kw := range e.Keywords {
		value, err := ev.evalExpr(kw.Value, env)
		if err != nil {
			return nil, err
		}
		if kwargs == nil {
			kwargs = make(map[string]any)
		}
		if kw.Name != "" {
			kwargs[kw.Name] = value
			continue
		}
		// ** unpacking: keys must be strings.
		src, ok := value.(*Dict)
		if !ok {
			return nil, raiseType("TypeError", "argument after ** must be a mapping, not %s", typeName(value))
		}
		for i, k := range src.Keys() {
			name, ok := k.(string)
			if !ok {
				return nil, raiseType("TypeError", "keywords must be strings")
			}
			kwargs[name] = src.Values()[i]
		}
	}
	return ev.callCallable(callee, args, kwargs, e, e.Src)
}

// callCallable dispatches a call on any callable value. node and src
// give error context and may be nil/empty for evaluator-internal
// calls.
func (ev *evaluator) callCallable(callee any, args []any, kwargs map[string]any, node Node, src string) (any, error) {
	if err := ev.stepCall(node); err != nil {
		return nil, err
	}
	switch fn := callee.(type) {
	case *Builtin:
		result, err := fn.Fn(ev, args, kwargs)
		if err != nil {
			return nil, ev.withContext(err, node, src)
		}
		if err := ev.vetValue(result, node); err != nil {
			return nil, err
		}
		if name := ev.in.tools.FinalAnswerName(); name != "" {
			if static, ok := ev.in.tools.Static(name); ok && static == fn {
				return nil, &finalAnswerSignal{value: result}
			}
		}
		return result, nil
	case *Function:
		return ev.callFunction(fn, args, kwargs, node, src)
	case BoundMethod:
		return ev.callCallable(fn.Fn, append([]any{fn.Recv}, args...), kwargs, node, src)
	case *Class:
		return ev.instantiate(fn, args, kwargs, node)
	case *Instance:
		call, _, found := fn.Class.lookup("__call__")
		if !found {
			return nil, raiseType("TypeError", "'%s' object is not callable", fn.Class.Name)
		}
		return ev.callCallable(call, append([]any{fn}, args...), kwargs, node, src)
	default:
		return nil, raiseType("TypeError", "'%s' object is not callable", typeName(callee))
	}
}

func (ev *evaluator) stepCall(node Node) error {
	if node == nil {
		ev.ops++
		return nil
	}
	return ev.step(node)
}

// withContext attaches the call-site source fragment to interpreter
// errors that have none.
func (ev *evaluator) withContext(err error, node Node, src string) error {
	ierr, ok := err.(*Error)
	if !ok || ierr.Fragment != "" || src == "" {
		return err
	}
	ierr.Fragment = src
	if node != nil && ierr.Line == 0 {
		ierr.Line = node.Pos()
		ierr.Node = node.Kind()
	}
	return err
}

func (ev *evaluator) callFunction(fn *Function, args []any, kwargs map[string]any, node Node, src string) (any, error) {
	fnEnv, err := ev.bindArgs(fn, args, kwargs)
	if err != nil {
		return nil, err
	}
	if fn.Lambda != nil {
		return ev.evalExpr(fn.Lambda.Body, fnEnv)
	}
	pushed := false
	if fn.Class != nil && len(args) > 0 {
		if self, ok := args[0].(*Instance); ok {
			ev.frames = append(ev.frames, frame{self: self, class: fn.Class})
			pushed = true
		}
	}
	ev.retValue = nil
	ctrl, err := ev.execBlock(fn.Body, fnEnv)
	if pushed {
		ev.frames = ev.frames[:len(ev.frames)-1]
	}
	if err != nil {
		return nil, err
	}
	switch ctrl {
	case ctrlReturn:
		v := ev.retValue
		ev.retValue = nil
		return v, nil
	case ctrlNone:
		return nil, nil
	default:
		return nil, &Error{
			Message: fmt.Sprintf("'%s' outside loop", ctrl),
			Node:    "call",
			Err:     ErrUnsupported,
		}
	}
}

// bindArgs resolves positional and keyword arguments against the
// parameter spec, producing the function's execution scope from its
// definition-time snapshot.
func (ev *evaluator) bindArgs(fn *Function, args []any, kwargs map[string]any) (*Env, error) {
	env := fn.Env.Snapshot()
	nParams := len(fn.Params.Names)
	nRequired := nParams - len(fn.Defaults)

	bound := make(map[string]bool, nParams)
	for i, name := range fn.Params.Names {
		if i < len(args) {
			env.Set(name, args[i])
			bound[name] = true
		}
	}
	if len(args) > nParams {
		if fn.Params.VarArg == "" {
			return nil, raiseType("TypeError", "%s() takes %d positional arguments but %d were given", fn.Name, nParams, len(args))
		}
		env.Set(fn.Params.VarArg, Tuple(append([]any(nil), args[nParams:]...)))
	} else if fn.Params.VarArg != "" {
		env.Set(fn.Params.VarArg, Tuple{})
	}

	var extraKw *Dict
	if fn.Params.KwArg != "" {
		extraKw = NewDict()
		env.Set(fn.Params.KwArg, extraKw)
	}
	for name, value := range kwargs {
		if paramIndex(fn.Params.Names, name) >= 0 {
			if bound[name] {
				return nil, raiseType("TypeError", "%s() got multiple values for argument '%s'", fn.Name, name)
			}
			env.Set(name, value)
			bound[name] = true
			continue
		}
		if extraKw != nil {
			_ = extraKw.Set(name, value)
			continue
		}
		return nil, raiseType("TypeError", "%s() got an unexpected keyword argument '%s'", fn.Name, name)
	}

	for i, name := range fn.Params.Names {
		if bound[name] {
			continue
		}
		if i >= nRequired {
			env.Set(name, fn.Defaults[i-nRequired])
			continue
		}
		return nil, raiseType("TypeError", "%s() missing required argument: '%s'", fn.Name, name)
	}
	return env, nil
}

func paramIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// instantiate creates an instance of cls and runs its initializer.
// Exception classes without a user __init__ record their positional
// args.
func (ev *evaluator) instantiate(cls *Class, args []any, kwargs map[string]any, node Node) (*Instance, error) {
	inst := newInstance(cls)
	if init, _, found := cls.lookup("__init__"); found {
		if _, err := ev.callCallable(init, append([]any{inst}, args...), kwargs, node, ""); err != nil {
			return nil, err
		}
		return inst, nil
	}
	if cls.isSubclass(exceptionBase()) {
		inst.Attrs["args"] = Tuple(append([]any(nil), args...))
		return inst, nil
	}
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, raiseType("TypeError", "%s() takes no arguments", cls.Name)
	}
	return inst, nil
}

// superObject is the value super() evaluates to: attribute lookups
// start at the base classes of the method's defining class.
type superObject struct {
	inst *Instance
	cls  *Class
}

func (ev *evaluator) superValue() (any, error) {
	if len(ev.frames) == 0 {
		return nil, raiseType("RuntimeError", "super(): no arguments and no enclosing method")
	}
	top := ev.frames[len(ev.frames)-1]
	return &superObject{inst: top.self, cls: top.class}, nil
}

func (ev *evaluator) superAttr(sup *superObject, name string) (any, error) {
	for _, base := range sup.cls.Bases {
		if v, _, ok := base.lookup(name); ok {
			if fn, isFn := v.(*Function); isFn {
				return BoundMethod{Recv: sup.inst, Fn: fn}, nil
			}
			return v, nil
		}
	}
	// A plain Exception base: super().__init__(...) records args.
	if name == "__init__" && sup.cls.isSubclass(exceptionBase()) {
		inst := sup.inst
		return &Builtin{Name: "__init__", Fn: func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			inst.Attrs["args"] = Tuple(append([]any(nil), args...))
			return nil, nil
		}}, nil
	}
	return nil, raiseType("AttributeError", "'super' object has no attribute '%s'", name)
}

// vetValue re-checks values produced by host callables against the
// import gate and deny-list. A permitted call may legally return a
// module or callable that must not become reachable. Best-effort
// mitigation, not a capability proof.
func (ev *evaluator) vetValue(v any, node Node) error {
	switch x := v.(type) {
	case *Module:
		if !ev.in.gate.Authorized(x.Name) {
			return &Error{
				Message: fmt.Sprintf("forbidden return value: module '%s' is not an authorized import", x.Name),
				Node:    nodeKind(node),
				Line:    nodePos(node),
				Err:     ErrForbiddenAccess,
			}
		}
	case *Dict:
		// A dict masquerading as a module namespace.
		nameVal, ok, _ := x.Get("__name__")
		if !ok {
			nameVal, ok, _ = x.Get("__spec__")
		}
		if ok {
			if name, isStr := nameVal.(string); isStr && !ev.in.gate.Authorized(name) {
				return &Error{
					Message: fmt.Sprintf("forbidden return value: namespace of unauthorized module '%s'", name),
					Node:    nodeKind(node),
					Line:    nodePos(node),
					Err:     ErrForbiddenAccess,
				}
			}
		}
	case *Builtin:
		if ev.in.deny.Denied(x.Name) && !ev.isStaticTool(x) {
			return &Error{
				Message: fmt.Sprintf("forbidden return value: callable '%s' is on the deny-list", x.Name),
				Node:    nodeKind(node),
				Line:    nodePos(node),
				Err:     ErrForbiddenAccess,
			}
		}
	}
	return nil
}

func (ev *evaluator) isStaticTool(b *Builtin) bool {
	static, ok := ev.in.tools.Static(b.Name)
	return ok && static == b
}

func nodeKind(node Node) string {
	if node == nil {
		return "call"
	}
	return node.Kind()
}

func nodePos(node Node) int {
	if node == nil {
		return 0
	}
	return node.Pos()
}
