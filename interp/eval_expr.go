package interp

import (
	"fmt"
)

func (ev *evaluator) evalExpr(expr Expr, env *Env) (any, error) {
	if err := ev.step(expr); err != nil {
		return nil, err
	}
	switch e := expr.(type) {
	case *IntLit:
		return e.Value, nil
	case *FloatLit:
		return e.Value, nil
	case *StringLit:
		return e.Value, nil
	case *BoolLit:
		return e.Value, nil
	case *NoneLit:
		return nil, nil
	case *NameExpr:
		return ev.resolveName(e.Name, env, e)
	case *FStringExpr:
		return ev.evalFString(e, env)
	case *ListExpr:
		items, err := ev.evalElements(e.Elts, env)
		if err != nil {
			return nil, err
		}
		return &List{Items: items}, nil
	case *TupleExpr:
		items, err := ev.evalElements(e.Elts, env)
		if err != nil {
			return nil, err
		}
		return Tuple(items), nil
	case *SetExpr:
		items, err := ev.evalElements(e.Elts, env)
		if err != nil {
			return nil, err
		}
		set := NewSet()
		for _, item := range items {
			if err := set.Add(item); err != nil {
				return nil, raiseType("TypeError", "%s", err.Error())
			}
		}
		return set, nil
	case *DictExpr:
		return ev.evalDict(e, env)
	case *UnaryExpr:
		operand, err := ev.evalExpr(e.Operand, env)
		if err != nil {
			return nil, err
		}
		v, err := unaryOp(e.Op, operand)
		if err != nil {
			return nil, wrapOpErr(err, e)
		}
		return v, nil
	case *BinaryExpr:
		left, err := ev.evalExpr(e.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalExpr(e.Right, env)
		if err != nil {
			return nil, err
		}
		v, err := binaryOp(e.Op, left, right)
		if err != nil {
			return nil, wrapOpErr(err, e)
		}
		return v, nil
	case *BoolOpExpr:
		var last any
		for i, sub := range e.Values {
			v, err := ev.evalExpr(sub, env)
			if err != nil {
				return nil, err
			}
			last = v
			if i == len(e.Values)-1 {
				break
			}
			if e.Op == "and" && !truthy(v) {
				return v, nil
			}
			if e.Op == "or" && truthy(v) {
				return v, nil
			}
		}
		return last, nil
	case *CompareExpr:
		return ev.evalCompare(e, env)
	case *CondExpr:
		cond, err := ev.evalExpr(e.Cond, env)
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return ev.evalExpr(e.Then, env)
		}
		return ev.evalExpr(e.Else, env)
	case *CallExpr:
		return ev.evalCall(e, env)
	case *AttrExpr:
		obj, err := ev.evalExpr(e.Value, env)
		if err != nil {
			return nil, err
		}
		return ev.getAttr(obj, e.Attr, e)
	case *SubscriptExpr:
		return ev.evalSubscript(e, env)
	case *LambdaExpr:
		defaults, err := ev.evalDefaults(e.Params, env)
		if err != nil {
			return nil, err
		}
		return &Function{
			Name:     "<lambda>",
			Params:   e.Params,
			Defaults: defaults,
			Lambda:   e,
			Env:      env.Snapshot(),
		}, nil
	case *CompExpr:
		return ev.evalComp(e, env)
	case *StarredExpr:
		return nil, &Error{
			Message: "starred expression outside call or assignment",
			Node:    e.Kind(),
			Line:    e.Pos(),
			Err:     ErrUnsupported,
		}
	default:
		return nil, &Error{
			Message: fmt.Sprintf("expression kind '%s' is not supported", expr.Kind()),
			Node:    expr.Kind(),
			Line:    expr.Pos(),
			Err:     ErrUnsupported,
		}
	}
}

// evalElements evaluates a display's elements, splicing starred
// iterables in place.
func (ev *evaluator) evalElements(elts []Expr, env *Env) ([]any, error) {
	out := make([]any, 0, len(elts))
	for _, elt := range elts {
		if star, ok := elt.(*StarredExpr); ok {
			v, err := ev.evalExpr(star.Value, env)
			if err != nil {
				return nil, err
			}
			items, err := iterate(v)
			if err != nil {
				return nil, raiseType("TypeError", "value after * must be an iterable, not %s", typeName(v))
			}
			out = append(out, items...)
			continue
		}
		v, err := ev.evalExpr(elt, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (ev *evaluator) evalDict(e *DictExpr, env *Env) (any, error) {
	dict := NewDict()
	for i, keyExpr := range e.Keys {
		if keyExpr == nil {
			// ** unpacking.
			v, err := ev.evalExpr(e.Values[i], env)
			if err != nil {
				return nil, err
			}
			src, ok := v.(*Dict)
			if !ok {
				return nil, raiseType("TypeError", "argument after ** must be a mapping, not %s", typeName(v))
			}
			for j, k := range src.Keys() {
				if err := dict.Set(k, src.Values()[j]); err != nil {
					return nil, raiseType("TypeError", "%s", err.Error())
				}
			}
			continue
		}
		key, err := ev.evalExpr(keyExpr, env)
		if err != nil {
			return nil, err
		}
		value, err := ev.evalExpr(e.Values[i], env)
		if err != nil {
			return nil, err
		}
		if err := dict.Set(key, value); err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
	}
	return dict, nil
}

// evalCompare evaluates a chained comparison pairwise, stopping at the
// first false link without evaluating anything past it.
func (ev *evaluator) evalCompare(e *CompareExpr, env *Env) (any, error) {
	left, err := ev.evalExpr(e.Left, env)
	if err != nil {
		return nil, err
	}
	for i, op := range e.Ops {
		right, err := ev.evalExpr(e.Comparators[i], env)
		if err != nil {
			return nil, err
		}
		ok, err := compareOp(op, left, right)
		if err != nil {
			return nil, wrapOpErr(err, e)
		}
		if !ok {
			return false, nil
		}
		left = right
	}
	return true, nil
}

func (ev *evaluator) evalFString(e *FStringExpr, env *Env) (any, error) {
	var sb []byte
	for _, part := range e.Parts {
		if part.Value == nil {
			sb = append(sb, part.Literal...)
			continue
		}
		v, err := ev.evalExpr(part.Value, env)
		if err != nil {
			return nil, err
		}
		var text string
		switch part.Conversion {
		case "r":
			text = reprValue(v)
		default:
			text = ev.str(v)
		}
		if part.Format != "" {
			formatted, err := formatSpec(v, part.Format)
			if err != nil {
				return nil, raiseType("ValueError", "%s", err.Error())
			}
			text = formatted
		}
		sb = append(sb, text...)
	}
	return string(sb), nil
}

// str renders a value via its __str__ when one is defined.
func (ev *evaluator) str(v any) string {
	if inst, ok := v.(*Instance); ok {
		if fn, _, found := inst.Class.lookup("__str__"); found {
			if out, err := ev.callCallable(fn, []any{inst}, nil, nil, ""); err == nil {
				if s, ok := out.(string); ok {
					return s
				}
			}
		}
	}
	return strValue(v)
}

// repr renders a value via its __repr__ when one is defined.
func (ev *evaluator) repr(v any) string {
	if inst, ok := v.(*Instance); ok {
		if fn, _, found := inst.Class.lookup("__repr__"); found {
			if out, err := ev.callCallable(fn, []any{inst}, nil, nil, ""); err == nil {
				if s, ok := out.(string); ok {
					return s
				}
			}
		}
	}
	return reprValue(v)
}

// getAttr resolves obj.name, enforcing the dunder allow-list for all
// access originating from evaluated code.
func (ev *evaluator) getAttr(obj any, name string, node Node) (any, error) {
	if forbiddenDunder(name) {
		return nil, ev.forbiddenAttr(name, node)
	}
	switch x := obj.(type) {
	case *Instance:
		if v, ok := x.Attrs[name]; ok {
			return v, nil
		}
		if v, _, ok := x.Class.lookup(name); ok {
			if fn, isFn := v.(*Function); isFn {
				return BoundMethod{Recv: x, Fn: fn}, nil
			}
			return v, nil
		}
		return nil, raiseType("AttributeError", "'%s' object has no attribute '%s'", x.Class.Name, name)
	case *Class:
		if v, _, ok := x.lookup(name); ok {
			return v, nil
		}
		return nil, raiseType("AttributeError", "type object '%s' has no attribute '%s'", x.Name, name)
	case *Module:
		v, ok := x.Attr(name)
		if !ok {
			return nil, raiseType("AttributeError", "module '%s' has no attribute '%s'", x.Name, name)
		}
		return v, nil
	case *superObject:
		return ev.superAttr(x, name)
	default:
		if method, ok := lookupMethod(obj, name); ok {
			return BoundMethod{Recv: obj, Fn: method}, nil
		}
		return nil, raiseType("AttributeError", "'%s' object has no attribute '%s'", typeName(obj), name)
	}
}

func (ev *evaluator) forbiddenAttr(name string, node Node) error {
	line := 0
	kind := "attribute"
	if node != nil {
		line = node.Pos()
		kind = node.Kind()
	}
	return &Error{
		Message: fmt.Sprintf("forbidden access to dunder attribute '%s'", name),
		Node:    kind,
		Line:    line,
		Err:     ErrForbiddenAccess,
	}
}

func (ev *evaluator) setAttr(obj any, name string, value any, node Node) error {
	if forbiddenDunder(name) {
		return ev.forbiddenAttr(name, node)
	}
	switch x := obj.(type) {
	case *Instance:
		x.Attrs[name] = value
		return nil
	case *Class:
		x.Attrs[name] = value
		return nil
	default:
		return raiseType("AttributeError", "'%s' object attribute '%s' is read-only", typeName(obj), name)
	}
}

func (ev *evaluator) evalSubscript(e *SubscriptExpr, env *Env) (any, error) {
	obj, err := ev.evalExpr(e.Value, env)
	if err != nil {
		return nil, err
	}
	if slice, ok := e.Index.(*SliceExpr); ok {
		return ev.evalSlice(obj, slice, env)
	}
	index, err := ev.evalExpr(e.Index, env)
	if err != nil {
		return nil, err
	}
	return getIndex(obj, index)
}

func (ev *evaluator) evalSlice(obj any, e *SliceExpr, env *Env) (any, error) {
	evalBound := func(expr Expr) (int64, bool, error) {
		if expr == nil {
			return 0, false, nil
		}
		v, err := ev.evalExpr(expr, env)
		if err != nil {
			return 0, false, err
		}
		n, ok := asInt(v)
		if !ok {
			return 0, false, raiseType("TypeError", "slice indices must be integers or None, not %s", typeName(v))
		}
		return n, true, nil
	}
	low, hasLow, err := evalBound(e.Low)
	if err != nil {
		return nil, err
	}
	high, hasHigh, err := evalBound(e.High)
	if err != nil {
		return nil, err
	}
	step, hasStep, err := evalBound(e.Step)
	if err != nil {
		return nil, err
	}
	if !hasStep {
		step = 1
	}
	if step == 0 {
		return nil, raiseType("ValueError", "slice step cannot be zero")
	}
	switch x := obj.(type) {
	case *List:
		return &List{Items: sliceItems(x.Items, low, hasLow, high, hasHigh, step)}, nil
	case Tuple:
		return Tuple(sliceItems(x, low, hasLow, high, hasHigh, step)), nil
	case string:
		runes := []rune(x)
		items := make([]any, len(runes))
		for i, r := range runes {
			items[i] = string(r)
		}
		out := sliceItems(items, low, hasLow, high, hasHigh, step)
		var sb []byte
		for _, r := range out {
			sb = append(sb, r.(string)...)
		}
		return string(sb), nil
	default:
		return nil, raiseType("TypeError", "'%s' object is not subscriptable", typeName(obj))
	}
}

// sliceItems applies Python slice semantics with clamping and negative
// indices.
func sliceItems(items []any, low int64, hasLow bool, high int64, hasHigh bool, step int64) []any {
	n := int64(len(items))
	normalize := func(idx int64) int64 {
		if idx < 0 {
			idx += n
		}
		return idx
	}
	var start, stop int64
	if step > 0 {
		start, stop = 0, n
		if hasLow {
			start = normalize(low)
			if start < 0 {
				start = 0
			}
			if start > n {
				start = n
			}
		}
		if hasHigh {
			stop = normalize(high)
			if stop < 0 {
				stop = 0
			}
			if stop > n {
				stop = n
			}
		}
		var out []any
		for i := start; i < stop; i += step {
			out = append(out, items[i])
		}
		return out
	}
	start, stop = n-1, -1
	if hasLow {
		start = normalize(low)
		if start >= n {
			start = n - 1
		}
		if start < -1 {
			start = -1
		}
	}
	if hasHigh {
		stop = normalize(high)
		if stop >= n {
			stop = n - 1
		}
		if stop < -1 {
			stop = -1
		}
	}
	var out []any
	for i := start; i > stop; i += step {
		out = append(out, items[i])
	}
	return out
}

// evalComp evaluates a comprehension. Each binding of the loop
// variables sees a fresh shallow copy of the enclosing scope, so the
// comprehension leaks nothing outward.
func (ev *evaluator) evalComp(e *CompExpr, env *Env) (any, error) {
	var listOut []any
	setOut := NewSet()
	dictOut := NewDict()

	var emit func(scope *Env) error
	emit = func(scope *Env) error {
		switch e.Form {
		case "dict":
			key, err := ev.evalExpr(e.Elt, scope)
			if err != nil {
				return err
			}
			value, err := ev.evalExpr(e.Value, scope)
			if err != nil {
				return err
			}
			if err := dictOut.Set(key, value); err != nil {
				return raiseType("TypeError", "%s", err.Error())
			}
			return nil
		case "set":
			v, err := ev.evalExpr(e.Elt, scope)
			if err != nil {
				return err
			}
			if err := setOut.Add(v); err != nil {
				return raiseType("TypeError", "%s", err.Error())
			}
			return nil
		default:
			v, err := ev.evalExpr(e.Elt, scope)
			if err != nil {
				return err
			}
			listOut = append(listOut, v)
			return nil
		}
	}

	var runGen func(gi int, scope *Env) error
	runGen = func(gi int, scope *Env) error {
		if gi == len(e.Generators) {
			return emit(scope)
		}
		gen := e.Generators[gi]
		iterable, err := ev.evalExpr(gen.Iter, scope)
		if err != nil {
			return err
		}
		items, err := iterate(iterable)
		if err != nil {
			return raiseType("TypeError", "'%s' object is not iterable", typeName(iterable))
		}
		for _, item := range items {
			if err := ev.step(e); err != nil {
				return err
			}
			inner := scope.Snapshot()
			if err := ev.assign(gen.Target, item, inner); err != nil {
				return err
			}
			keep := true
			for _, cond := range gen.Ifs {
				v, err := ev.evalExpr(cond, inner)
				if err != nil {
					return err
				}
				if !truthy(v) {
					keep = false
					break
				}
			}
			if !keep {
				continue
			}
			if err := runGen(gi+1, inner); err != nil {
				return err
			}
		}
		return nil
	}

	if err := runGen(0, env); err != nil {
		return nil, err
	}
	switch e.Form {
	case "dict":
		return dictOut, nil
	case "set":
		return setOut, nil
	case "generator":
		return &Generator{items: listOut}, nil
	default:
		return &List{Items: listOut}, nil
	}
}

// getIndex implements obj[index] for plain (non-slice) indices.
func getIndex(obj, index any) (any, error) {
	switch x := obj.(type) {
	case *List:
		idx, err := seqIndex(index, len(x.Items), "list")
		if err != nil {
			return nil, err
		}
		return x.Items[idx], nil
	case Tuple:
		idx, err := seqIndex(index, len(x), "tuple")
		if err != nil {
			return nil, err
		}
		return x[idx], nil
	case string:
		runes := []rune(x)
		idx, err := seqIndex(index, len(runes), "string")
		if err != nil {
			return nil, err
		}
		return string(runes[idx]), nil
	case *Dict:
		v, ok, err := x.Get(index)
		if err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		if !ok {
			return nil, raiseType("KeyError", "%s", reprValue(index))
		}
		return v, nil
	case Range:
		n, ok := asInt(index)
		if !ok {
			return nil, raiseType("TypeError", "range indices must be integers")
		}
		length := x.Len()
		if n < 0 {
			n += length
		}
		if n < 0 || n >= length {
			return nil, raiseType("IndexError", "range object index out of range")
		}
		return x.Start + n*x.Step, nil
	default:
		return nil, raiseType("TypeError", "'%s' object is not subscriptable", typeName(obj))
	}
}

func seqIndex(index any, length int, kind string) (int, error) {
	n, ok := asInt(index)
	if !ok {
		return 0, raiseType("TypeError", "%s indices must be integers, not %s", kind, typeName(index))
	}
	if n < 0 {
		n += int64(length)
	}
	if n < 0 || n >= int64(length) {
		return 0, raiseType("IndexError", "%s index out of range", kind)
	}
	return int(n), nil
}

func setIndex(obj, index, value any) error {
	switch x := obj.(type) {
	case *List:
		idx, err := seqIndex(index, len(x.Items), "list")
		if err != nil {
			return err
		}
		x.Items[idx] = value
		return nil
	case *Dict:
		if err := x.Set(index, value); err != nil {
			return raiseType("TypeError", "%s", err.Error())
		}
		return nil
	default:
		return raiseType("TypeError", "'%s' object does not support item assignment", typeName(obj))
	}
}

func delIndex(obj, index any) error {
	switch x := obj.(type) {
	case *List:
		idx, err := seqIndex(index, len(x.Items), "list")
		if err != nil {
			return err
		}
		x.Items = append(x.Items[:idx], x.Items[idx+1:]...)
		return nil
	case *Dict:
		ok, err := x.Delete(index)
		if err != nil {
			return raiseType("TypeError", "%s", err.Error())
		}
		if !ok {
			return raiseType("KeyError", "%s", reprValue(index))
		}
		return nil
	default:
		return raiseType("TypeError", "'%s' object doesn't support item deletion", typeName(obj))
	}
}
