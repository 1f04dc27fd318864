package interp

import (
	"errors"
	"fmt"
	"strings"
)

func (ev *evaluator) execBlock(stmts []Stmt, env *Env) (control, error) {
	for _, stmt := range stmts {
		ctrl, err := ev.execStmt(stmt, env)
		if err != nil {
			return ctrlNone, err
		}
		if ctrl != ctrlNone {
			return ctrl, nil
		}
	}
	return ctrlNone, nil
}

func (ev *evaluator) execStmt(stmt Stmt, env *Env) (control, error) {
	if err := ev.step(stmt); err != nil {
		return ctrlNone, err
	}
	switch st := stmt.(type) {
	case *ExprStmt:
		v, err := ev.evalExpr(st.Value, env)
		if err != nil {
			return ctrlNone, err
		}
		ev.lastExpr = v
		return ctrlNone, nil
	case *AssignStmt:
		value, err := ev.evalExpr(st.Value, env)
		if err != nil {
			return ctrlNone, err
		}
		for _, target := range st.Targets {
			if err := ev.assign(target, value, env); err != nil {
				return ctrlNone, err
			}
		}
		return ctrlNone, nil
	case *AugAssignStmt:
		return ctrlNone, ev.execAugAssign(st, env)
	case *IfStmt:
		cond, err := ev.evalExpr(st.Cond, env)
		if err != nil {
			return ctrlNone, err
		}
		if truthy(cond) {
			return ev.execBlock(st.Body, env)
		}
		return ev.execBlock(st.Else, env)
	case *ForStmt:
		return ev.execFor(st, env)
	case *WhileStmt:
		return ev.execWhile(st, env)
	case *BreakStmt:
		return ctrlBreak, nil
	case *ContinueStmt:
		return ctrlContinue, nil
	case *PassStmt:
		return ctrlNone, nil
	case *ReturnStmt:
		ev.retValue = nil
		if st.Value != nil {
			v, err := ev.evalExpr(st.Value, env)
			if err != nil {
				return ctrlNone, err
			}
			ev.retValue = v
		}
		return ctrlReturn, nil
	case *RaiseStmt:
		return ctrlNone, ev.execRaise(st, env)
	case *AssertStmt:
		return ctrlNone, ev.execAssert(st, env)
	case *TryStmt:
		return ev.execTry(st, env)
	case *WithStmt:
		return ev.execWith(st, env)
	case *FuncDefStmt:
		return ctrlNone, ev.execFuncDef(st, env)
	case *ClassDefStmt:
		return ctrlNone, ev.execClassDef(st, env)
	case *ImportStmt:
		return ctrlNone, ev.execImport(st, env)
	case *ImportFromStmt:
		return ctrlNone, ev.execImportFrom(st, env)
	case *DeleteStmt:
		return ctrlNone, ev.execDelete(st, env)
	default:
		return ctrlNone, &Error{
			Message: fmt.Sprintf("statement kind '%s' is not supported", stmt.Kind()),
			Node:    stmt.Kind(),
			Line:    stmt.Pos(),
			Err:     ErrUnsupported,
		}
	}
}

// assign binds value to target, handling names, destructuring,
// attributes and subscripts.
func (ev *evaluator) assign(target Expr, value any, env *Env) error {
	switch t := target.(type) {
	case *NameExpr:
		return ev.assignName(t.Name, value, env, t)
	case *TupleExpr:
		return ev.destructure(t.Elts, value, env, t)
	case *ListExpr:
		return ev.destructure(t.Elts, value, env, t)
	case *AttrExpr:
		obj, err := ev.evalExpr(t.Value, env)
		if err != nil {
			return err
		}
		return ev.setAttr(obj, t.Attr, value, t)
	case *SubscriptExpr:
		obj, err := ev.evalExpr(t.Value, env)
		if err != nil {
			return err
		}
		index, err := ev.evalExpr(t.Index, env)
		if err != nil {
			return err
		}
		return setIndex(obj, index, value)
	case *StarredExpr:
		return &Error{
			Message: "starred assignment target must be in a list or tuple",
			Node:    target.Kind(),
			Line:    target.Pos(),
			Err:     ErrUnsupported,
		}
	default:
		return &Error{
			Message: fmt.Sprintf("cannot assign to %s", target.Kind()),
			Node:    target.Kind(),
			Line:    target.Pos(),
			Err:     ErrUnsupported,
		}
	}
}

func (ev *evaluator) assignName(name string, value any, env *Env, node Node) error {
	if ev.in.tools.IsStatic(name) {
		return &Error{
			Message: fmt.Sprintf("cannot assign to name '%s': doing this would erase the existing tool", name),
			Node:    node.Kind(),
			Line:    node.Pos(),
			Err:     ErrForbiddenAccess,
		}
	}
	env.Set(name, value)
	if rec := ev.classRecord(); rec != nil {
		rec[name] = value
	}
	return nil
}

func (ev *evaluator) classRecord() map[string]any {
	if len(ev.classStack) == 0 {
		return nil
	}
	return ev.classStack[len(ev.classStack)-1]
}

// destructure unpacks value across targets, honoring one starred
// target.
func (ev *evaluator) destructure(targets []Expr, value any, env *Env, node Node) error {
	items, err := iterate(value)
	if err != nil {
		return raiseType("TypeError", "cannot unpack non-iterable %s object", typeName(value))
	}
	starIdx := -1
	for i, t := range targets {
		if _, ok := t.(*StarredExpr); ok {
			if starIdx >= 0 {
				return &Error{
					Message: "multiple starred targets in assignment",
					Node:    node.Kind(),
					Line:    node.Pos(),
					Err:     ErrUnsupported,
				}
			}
			starIdx = i
		}
	}
	if starIdx < 0 {
		if len(items) != len(targets) {
			if len(items) < len(targets) {
				return raiseType("ValueError", "not enough values to unpack (expected %d, got %d)", len(targets), len(items))
			}
			return raiseType("ValueError", "too many values to unpack (expected %d)", len(targets))
		}
		for i, t := range targets {
			if err := ev.assign(t, items[i], env); err != nil {
				return err
			}
		}
		return nil
	}
	minLen := len(targets) - 1
	if len(items) < minLen {
		return raiseType("ValueError", "not enough values to unpack (expected at least %d, got %d)", minLen, len(items))
	}
	for i := 0; i < starIdx; i++ {
		if err := ev.assign(targets[i], items[i], env); err != nil {
			return err
		}
	}
	starCount := len(items) - minLen
	star := targets[starIdx].(*StarredExpr)
	if err := ev.assign(star.Value, NewList(items[starIdx:starIdx+starCount]...), env); err != nil {
		return err
	}
	for i := starIdx + 1; i < len(targets); i++ {
		if err := ev.assign(targets[i], items[starCount+i-1], env); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) execAugAssign(st *AugAssignStmt, env *Env) error {
	current, err := ev.evalExpr(st.Target, env)
	if err != nil {
		return err
	}
	operand, err := ev.evalExpr(st.Value, env)
	if err != nil {
		return err
	}
	result, err := augBinaryOp(st.Op, current, operand)
	if err != nil {
		return wrapOpErr(err, st)
	}
	return ev.assign(st.Target, result, env)
}

func (ev *evaluator) execFor(st *ForStmt, env *Env) (control, error) {
	iterable, err := ev.evalExpr(st.Iter, env)
	if err != nil {
		return ctrlNone, err
	}
	items, err := iterate(iterable)
	if err != nil {
		return ctrlNone, raiseType("TypeError", "'%s' object is not iterable", typeName(iterable))
	}
	broke := false
	for _, item := range items {
		if err := ev.step(st); err != nil {
			return ctrlNone, err
		}
		if err := ev.assign(st.Target, item, env); err != nil {
			return ctrlNone, err
		}
		ctrl, err := ev.execBlock(st.Body, env)
		if err != nil {
			return ctrlNone, err
		}
		switch ctrl {
		case ctrlBreak:
			broke = true
		case ctrlContinue, ctrlNone:
		default:
			return ctrl, nil
		}
		if broke {
			break
		}
	}
	if !broke && len(st.Else) > 0 {
		return ev.execBlock(st.Else, env)
	}
	return ctrlNone, nil
}

func (ev *evaluator) execWhile(st *WhileStmt, env *Env) (control, error) {
	var iterations int64
	broke := false
	for {
		cond, err := ev.evalExpr(st.Cond, env)
		if err != nil {
			return ctrlNone, err
		}
		if !truthy(cond) {
			break
		}
		iterations++
		if ev.in.maxWhile > 0 && iterations > ev.in.maxWhile {
			return ctrlNone, &Error{
				Message: fmt.Sprintf("maximum number of %d iterations in while loop exceeded", ev.in.maxWhile),
				Node:    st.Kind(),
				Line:    st.Pos(),
				Err:     ErrQuotaExceeded,
			}
		}
		if err := ev.step(st); err != nil {
			return ctrlNone, err
		}
		ctrl, err := ev.execBlock(st.Body, env)
		if err != nil {
			return ctrlNone, err
		}
		switch ctrl {
		case ctrlBreak:
			broke = true
		case ctrlContinue, ctrlNone:
		default:
			return ctrl, nil
		}
		if broke {
			break
		}
	}
	if !broke && len(st.Else) > 0 {
		return ev.execBlock(st.Else, env)
	}
	return ctrlNone, nil
}

func (ev *evaluator) execRaise(st *RaiseStmt, env *Env) error {
	if st.Exc == nil {
		if len(ev.raisedStack) == 0 {
			return raiseType("RuntimeError", "No active exception to reraise")
		}
		return &Raised{Value: ev.raisedStack[len(ev.raisedStack)-1]}
	}
	exc, err := ev.evalExpr(st.Exc, env)
	if err != nil {
		return err
	}
	if st.Cause != nil {
		if _, err := ev.evalExpr(st.Cause, env); err != nil {
			return err
		}
	}
	switch x := exc.(type) {
	case *Instance:
		return &Raised{Value: x}
	case *Class:
		inst, err := ev.instantiate(x, nil, nil, st)
		if err != nil {
			return err
		}
		return &Raised{Value: inst}
	default:
		return raiseType("TypeError", "exceptions must derive from BaseException")
	}
}

func (ev *evaluator) execAssert(st *AssertStmt, env *Env) error {
	cond, err := ev.evalExpr(st.Cond, env)
	if err != nil {
		return err
	}
	if truthy(cond) {
		return nil
	}
	if st.Msg == nil {
		return raiseType("AssertionError", "")
	}
	msg, err := ev.evalExpr(st.Msg, env)
	if err != nil {
		return err
	}
	return raiseType("AssertionError", "%s", strValue(msg))
}

func (ev *evaluator) execTry(st *TryStmt, env *Env) (control, error) {
	ctrl, err := ev.execBlock(st.Body, env)

	if err != nil {
		if raised, ok := errAsRaised(err); ok {
			handled := false
			ctrl, err, handled = ev.runHandlers(st, raised, env)
			if !handled {
				err = &Raised{Value: raised}
			}
		}
		// Interpreter errors and the final-answer signal pass except
		// clauses untouched; only finally intervenes.
	} else if ctrl == ctrlNone && len(st.Else) > 0 {
		ctrl, err = ev.execBlock(st.Else, env)
	}

	if len(st.Finally) > 0 {
		fctrl, ferr := ev.execBlock(st.Finally, env)
		if ferr != nil {
			return ctrlNone, ferr
		}
		if fctrl != ctrlNone {
			return fctrl, nil
		}
	}
	return ctrl, err
}

// runHandlers tries each except clause against the raised instance.
// The third result reports whether any clause matched.
func (ev *evaluator) runHandlers(st *TryStmt, raised *Instance, env *Env) (control, error, bool) {
	for _, h := range st.Handlers {
		matched := h.Type == nil
		if !matched {
			typ, err := ev.evalExpr(h.Type, env)
			if err != nil {
				return ctrlNone, err, true
			}
			matched, err = excMatches(raised, typ)
			if err != nil {
				return ctrlNone, err, true
			}
		}
		if !matched {
			continue
		}
		if h.Name != "" {
			if err := ev.assignName(h.Name, raised, env, st); err != nil {
				return ctrlNone, err, true
			}
		}
		ev.raisedStack = append(ev.raisedStack, raised)
		ctrl, err := ev.execBlock(h.Body, env)
		ev.raisedStack = ev.raisedStack[:len(ev.raisedStack)-1]
		if h.Name != "" {
			env.Delete(h.Name)
		}
		return ctrl, err, true
	}
	return ctrlNone, nil, false
}

func errAsRaised(err error) (*Instance, bool) {
	var raised *Raised
	if errors.As(err, &raised) {
		return raised.Value, true
	}
	return nil, false
}

func excMatches(raised *Instance, typ any) (bool, error) {
	switch t := typ.(type) {
	case *Class:
		return raised.Class.isSubclass(t), nil
	case Tuple:
		for _, elem := range t {
			ok, err := excMatches(raised, elem)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, raiseType("TypeError", "catching classes that do not inherit from BaseException is not allowed")
	}
}

// execWith supports single-item with statements. Context manager
// protocol methods are invoked by the evaluator itself; evaluated code
// still cannot reach them by name.
func (ev *evaluator) execWith(st *WithStmt, env *Env) (control, error) {
	mgr, err := ev.evalExpr(st.Expr, env)
	if err != nil {
		return ctrlNone, err
	}
	bound := mgr
	var exit any
	if inst, ok := mgr.(*Instance); ok {
		if enter, _, found := inst.Class.lookup("__enter__"); found {
			v, err := ev.callCallable(enter, []any{inst}, nil, st, "")
			if err != nil {
				return ctrlNone, err
			}
			bound = v
		}
		if fn, _, found := inst.Class.lookup("__exit__"); found {
			exit = BoundMethod{Recv: inst, Fn: fn}
		}
	}
	if st.Name != "" {
		if err := ev.assignName(st.Name, bound, env, st); err != nil {
			return ctrlNone, err
		}
	}
	ctrl, err := ev.execBlock(st.Body, env)
	if exit != nil {
		if _, exitErr := ev.callCallable(exit, []any{nil, nil, nil}, nil, st, ""); exitErr != nil && err == nil {
			return ctrlNone, exitErr
		}
	}
	return ctrl, err
}

func (ev *evaluator) execFuncDef(st *FuncDefStmt, env *Env) error {
	defaults, err := ev.evalDefaults(st.Params, env)
	if err != nil {
		return err
	}
	fn := &Function{
		Name:     st.Name,
		Params:   st.Params,
		Defaults: defaults,
		Body:     st.Body,
		Env:      env.Snapshot(),
	}
	if err := ev.assignName(st.Name, fn, env, st); err != nil {
		return err
	}
	// Methods belong to their class namespace, not the tool table.
	if ev.classRecord() == nil {
		ev.in.tools.SetCustom(st.Name, fn)
	}
	return nil
}

func (ev *evaluator) evalDefaults(params ParamSpec, env *Env) ([]any, error) {
	out := make([]any, 0, len(params.Defaults))
	for _, d := range params.Defaults {
		v, err := ev.evalExpr(d, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ev *evaluator) execClassDef(st *ClassDefStmt, env *Env) error {
	cls := &Class{Name: st.Name, Attrs: make(map[string]any)}
	for _, baseExpr := range st.Bases {
		base, err := ev.evalExpr(baseExpr, env)
		if err != nil {
			return err
		}
		baseCls, ok := base.(*Class)
		if !ok {
			return raiseType("TypeError", "class base must be a class, not '%s'", typeName(base))
		}
		cls.Bases = append(cls.Bases, baseCls)
	}
	// The class body runs in a snapshot scope; assignments are
	// recorded into the class namespace as they happen.
	record := make(map[string]any)
	ev.classStack = append(ev.classStack, record)
	bodyEnv := env.Snapshot()
	ctrl, err := ev.execBlock(st.Body, bodyEnv)
	ev.classStack = ev.classStack[:len(ev.classStack)-1]
	if err != nil {
		return err
	}
	if ctrl != ctrlNone {
		return &Error{
			Message: fmt.Sprintf("'%s' inside class body", ctrl),
			Node:    st.Kind(),
			Line:    st.Pos(),
			Err:     ErrUnsupported,
		}
	}
	for name, value := range record {
		if fn, ok := value.(*Function); ok {
			fn.Class = cls
		}
		cls.Attrs[name] = value
	}
	if err := ev.assignName(st.Name, cls, env, st); err != nil {
		return err
	}
	if ev.classRecord() == nil {
		ev.in.tools.SetCustom(st.Name, cls)
	}
	return nil
}

func (ev *evaluator) execImport(st *ImportStmt, env *Env) error {
	for _, name := range st.Names {
		if !ev.in.gate.Authorized(name.Path) {
			return ev.unauthorizedImport(name.Path, st)
		}
		mod, err := ev.in.modules.Load(name.Path, ev.in.gate)
		if err != nil {
			return &Raised{Value: importErrorInstance(name.Path)}
		}
		bind := name.Alias
		if bind == "" {
			bind = name.Path
		}
		if err := ev.assignName(bind, mod, env, st); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) execImportFrom(st *ImportFromStmt, env *Env) error {
	if !ev.in.gate.Authorized(st.Module) {
		// A qualified pattern like "os.path" authorizes
		// `from os import path` even when bare "os" is not allowed.
		allAuthorized := len(st.Names) > 0
		for _, name := range st.Names {
			if name.Path == "*" || !ev.in.gate.Authorized(st.Module+"."+name.Path) {
				allAuthorized = false
				break
			}
		}
		if !allAuthorized {
			return ev.unauthorizedImport(st.Module, st)
		}
	}
	mod, err := ev.in.modules.Load(st.Module, ev.in.gate)
	if err != nil {
		return &Raised{Value: importErrorInstance(st.Module)}
	}
	for _, name := range st.Names {
		if name.Path == "*" {
			for _, attr := range mod.AttrNames() {
				if strings.HasPrefix(attr, "_") {
					continue
				}
				v, _ := mod.Attr(attr)
				if err := ev.assignName(attr, v, env, st); err != nil {
					return err
				}
			}
			continue
		}
		v, ok := mod.Attr(name.Path)
		if !ok {
			return &Raised{Value: importErrorInstance(st.Module + "." + name.Path)}
		}
		bind := name.Alias
		if bind == "" {
			bind = name.Path
		}
		if err := ev.assignName(bind, v, env, st); err != nil {
			return err
		}
	}
	return nil
}

func (ev *evaluator) unauthorizedImport(path string, node Node) error {
	return &Error{
		Message: fmt.Sprintf("import of %s is not allowed: authorize it explicitly to use it", path),
		Node:    node.Kind(),
		Line:    node.Pos(),
		Err:     ErrUnauthorizedImport,
	}
}

func (ev *evaluator) execDelete(st *DeleteStmt, env *Env) error {
	for _, target := range st.Targets {
		switch t := target.(type) {
		case *NameExpr:
			if ev.in.tools.IsStatic(t.Name) {
				return &Error{
					Message: fmt.Sprintf("cannot delete static tool '%s'", t.Name),
					Node:    t.Kind(),
					Line:    t.Pos(),
					Err:     ErrForbiddenAccess,
				}
			}
			if !env.Delete(t.Name) {
				return raiseType("NameError", "name '%s' is not defined", t.Name)
			}
		case *SubscriptExpr:
			obj, err := ev.evalExpr(t.Value, env)
			if err != nil {
				return err
			}
			index, err := ev.evalExpr(t.Index, env)
			if err != nil {
				return err
			}
			if err := delIndex(obj, index); err != nil {
				return err
			}
		case *AttrExpr:
			obj, err := ev.evalExpr(t.Value, env)
			if err != nil {
				return err
			}
			inst, ok := obj.(*Instance)
			if !ok {
				return raiseType("AttributeError", "cannot delete attribute '%s' of '%s'", t.Attr, typeName(obj))
			}
			if forbiddenDunder(t.Attr) {
				return ev.forbiddenAttr(t.Attr, t)
			}
			delete(inst.Attrs, t.Attr)
		default:
			return &Error{
				Message: fmt.Sprintf("cannot delete %s", target.Kind()),
				Node:    target.Kind(),
				Line:    target.Pos(),
				Err:     ErrUnsupported,
			}
		}
	}
	return nil
}
