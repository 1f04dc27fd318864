package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Built-in exception classes. BaseException roots the hierarchy;
// everything user-catchable derives from Exception.
var (
	baseExceptionClass = &Class{Name: "BaseException", Attrs: map[string]any{}, Exception: true}
	exceptionClasses   = buildExceptionClasses()
)

func buildExceptionClasses() map[string]*Class {
	table := map[string]*Class{"BaseException": baseExceptionClass}
	exc := &Class{Name: "Exception", Bases: []*Class{baseExceptionClass}, Attrs: map[string]any{}, Exception: true}
	table["Exception"] = exc
	for _, name := range []string{
		"ValueError", "TypeError", "KeyError", "IndexError",
		"AttributeError", "ZeroDivisionError", "StopIteration",
		"AssertionError", "RuntimeError", "NotImplementedError",
		"OverflowError", "NameError", "ImportError",
	} {
		table[name] = &Class{Name: name, Bases: []*Class{exc}, Attrs: map[string]any{}, Exception: true}
	}
	return table
}

func exceptionClass(name string) (*Class, bool) {
	cls, ok := exceptionClasses[name]
	return cls, ok
}

func exceptionBase() *Class { return baseExceptionClass }

func exceptionNames() []string {
	out := make([]string, 0, len(exceptionClasses))
	for name := range exceptionClasses {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func importErrorInstance(path string) *Instance {
	cls, _ := exceptionClass("ImportError")
	inst := newInstance(cls)
	inst.Attrs["args"] = Tuple{fmt.Sprintf("No module named '%s'", path)}
	return inst
}

func builtin(name string, fn func(ev *evaluator, args []any, kwargs map[string]any) (any, error)) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

func exactly(name string, args []any, n int) error {
	if len(args) != n {
		return raiseType("TypeError", "%s() takes exactly %d argument(s) (%d given)", name, n, len(args))
	}
	return nil
}

func between(name string, args []any, min, max int) error {
	if len(args) < min || len(args) > max {
		return raiseType("TypeError", "%s() takes from %d to %d arguments (%d given)", name, min, max, len(args))
	}
	return nil
}

// BaseTools returns the built-in callables installed as static tools
// in every session: print (routed to the log buffer), type
// constructors, sequence helpers and super.
func BaseTools() map[string]*Builtin {
	tools := map[string]*Builtin{
		"print": builtin("print", func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
			sep := " "
			end := "\n"
			if v, ok := kwargs["sep"]; ok {
				if s, ok := v.(string); ok {
					sep = s
				}
			}
			if v, ok := kwargs["end"]; ok {
				if s, ok := v.(string); ok {
					end = s
				}
			}
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = ev.str(a)
			}
			ev.printText(strings.Join(parts, sep) + end)
			return nil, nil
		}),
		"len": builtin("len", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("len", args, 1); err != nil {
				return nil, err
			}
			switch x := args[0].(type) {
			case string:
				return int64(len([]rune(x))), nil
			case *List:
				return int64(len(x.Items)), nil
			case Tuple:
				return int64(len(x)), nil
			case *Dict:
				return int64(x.Len()), nil
			case *Set:
				return int64(x.Len()), nil
			case Range:
				return x.Len(), nil
			default:
				return nil, raiseType("TypeError", "object of type '%s' has no len()", typeName(args[0]))
			}
		}),
		"range": builtin("range", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("range", args, 1, 3); err != nil {
				return nil, err
			}
			nums := make([]int64, len(args))
			for i, a := range args {
				n, ok := asInt(a)
				if !ok {
					return nil, raiseType("TypeError", "'%s' object cannot be interpreted as an integer", typeName(a))
				}
				nums[i] = n
			}
			switch len(nums) {
			case 1:
				return Range{Start: 0, Stop: nums[0], Step: 1}, nil
			case 2:
				return Range{Start: nums[0], Stop: nums[1], Step: 1}, nil
			default:
				if nums[2] == 0 {
					return nil, raiseType("ValueError", "range() arg 3 must not be zero")
				}
				return Range{Start: nums[0], Stop: nums[1], Step: nums[2]}, nil
			}
		}),
		"str": builtin("str", func(ev *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("str", args, 0, 1); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return "", nil
			}
			return ev.str(args[0]), nil
		}),
		"repr": builtin("repr", func(ev *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("repr", args, 1); err != nil {
				return nil, err
			}
			return ev.repr(args[0]), nil
		}),
		"int": builtin("int", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("int", args, 0, 2); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return int64(0), nil
			}
			if len(args) == 2 {
				s, ok := args[0].(string)
				if !ok {
					return nil, raiseType("TypeError", "int() can't convert non-string with explicit base")
				}
				base, ok := asInt(args[1])
				if !ok {
					return nil, raiseType("TypeError", "int() base must be an integer")
				}
				n, err := strconv.ParseInt(strings.TrimSpace(s), int(base), 64)
				if err != nil {
					return nil, raiseType("ValueError", "invalid literal for int() with base %d: %s", base, reprValue(s))
				}
				return n, nil
			}
			switch x := args[0].(type) {
			case bool:
				if x {
					return int64(1), nil
				}
				return int64(0), nil
			case int64:
				return x, nil
			case float64:
				return int64(math.Trunc(x)), nil
			case string:
				n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
				if err != nil {
					return nil, raiseType("ValueError", "invalid literal for int() with base 10: %s", reprValue(x))
				}
				return n, nil
			default:
				return nil, raiseType("TypeError", "int() argument must be a string or a number, not '%s'", typeName(args[0]))
			}
		}),
		"float": builtin("float", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("float", args, 0, 1); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return float64(0), nil
			}
			if f, ok := asFloat(args[0]); ok {
				return f, nil
			}
			if s, ok := args[0].(string); ok {
				f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
				if err != nil {
					return nil, raiseType("ValueError", "could not convert string to float: %s", reprValue(s))
				}
				return f, nil
			}
			return nil, raiseType("TypeError", "float() argument must be a string or a number, not '%s'", typeName(args[0]))
		}),
		"bool": builtin("bool", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("bool", args, 0, 1); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return false, nil
			}
			return truthy(args[0]), nil
		}),
		"list": builtin("list", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("list", args, 0, 1); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return &List{}, nil
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			return &List{Items: items}, nil
		}),
		"tuple": builtin("tuple", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("tuple", args, 0, 1); err != nil {
				return nil, err
			}
			if len(args) == 0 {
				return Tuple{}, nil
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			return Tuple(items), nil
		}),
		"dict": builtin("dict", func(_ *evaluator, args []any, kwargs map[string]any) (any, error) {
			if err := between("dict", args, 0, 1); err != nil {
				return nil, err
			}
			out := NewDict()
			if len(args) == 1 {
				if src, ok := args[0].(*Dict); ok {
					for i, k := range src.Keys() {
						_ = out.Set(k, src.Values()[i])
					}
				} else {
					pairs, err := iterate(args[0])
					if err != nil {
						return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
					}
					for _, pair := range pairs {
						kv, err := iterate(pair)
						if err != nil || len(kv) != 2 {
							return nil, raiseType("ValueError", "dictionary update sequence element is not a pair")
						}
						if err := out.Set(kv[0], kv[1]); err != nil {
							return nil, raiseType("TypeError", "%s", err.Error())
						}
					}
				}
			}
			for name, value := range kwargs {
				_ = out.Set(name, value)
			}
			return out, nil
		}),
		"set": builtin("set", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("set", args, 0, 1); err != nil {
				return nil, err
			}
			out := NewSet()
			if len(args) == 1 {
				items, err := iterate(args[0])
				if err != nil {
					return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
				}
				for _, v := range items {
					if err := out.Add(v); err != nil {
						return nil, raiseType("TypeError", "%s", err.Error())
					}
				}
			}
			return out, nil
		}),
		"abs": builtin("abs", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("abs", args, 1); err != nil {
				return nil, err
			}
			if n, ok := args[0].(int64); ok {
				if n < 0 {
					return -n, nil
				}
				return n, nil
			}
			if f, ok := asFloat(args[0]); ok {
				return math.Abs(f), nil
			}
			return nil, raiseType("TypeError", "bad operand type for abs(): '%s'", typeName(args[0]))
		}),
		"round": builtin("round", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("round", args, 1, 2); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "type %s doesn't define __round__ method", typeName(args[0]))
			}
			if len(args) == 2 && args[1] != nil {
				digits, ok := asInt(args[1])
				if !ok {
					return nil, raiseType("TypeError", "round() ndigits must be an integer")
				}
				scale := math.Pow(10, float64(digits))
				return math.RoundToEven(f*scale) / scale, nil
			}
			if _, isInt := args[0].(int64); isInt {
				return args[0], nil
			}
			return int64(math.RoundToEven(f)), nil
		}),
		"divmod": builtin("divmod", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("divmod", args, 2); err != nil {
				return nil, err
			}
			q, err := floorDivOp(args[0], args[1])
			if err != nil {
				return nil, err
			}
			r, err := modOp(args[0], args[1])
			if err != nil {
				return nil, err
			}
			return Tuple{q, r}, nil
		}),
		"pow": builtin("pow", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("pow", args, 2, 3); err != nil {
				return nil, err
			}
			p, err := powOp(args[0], args[1])
			if err != nil {
				return nil, err
			}
			if len(args) == 3 {
				return modOp(p, args[2])
			}
			return p, nil
		}),
		"ord": builtin("ord", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("ord", args, 1); err != nil {
				return nil, err
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, raiseType("TypeError", "ord() expected string of length 1, but %s found", typeName(args[0]))
			}
			runes := []rune(s)
			if len(runes) != 1 {
				return nil, raiseType("TypeError", "ord() expected a character, but string of length %d found", len(runes))
			}
			return int64(runes[0]), nil
		}),
		"chr": builtin("chr", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("chr", args, 1); err != nil {
				return nil, err
			}
			n, ok := asInt(args[0])
			if !ok {
				return nil, raiseType("TypeError", "an integer is required")
			}
			if n < 0 || n > 0x10FFFF {
				return nil, raiseType("ValueError", "chr() arg not in range(0x110000)")
			}
			return string(rune(n)), nil
		}),
		"sum": builtin("sum", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("sum", args, 1, 2); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			var acc any = int64(0)
			if len(args) == 2 {
				acc = args[1]
			}
			for _, item := range items {
				acc, err = binaryOp("+", acc, item)
				if err != nil {
					return nil, err
				}
			}
			return acc, nil
		}),
		"min": builtin("min", extremum("min", func(k, best any) (bool, error) { return lessThan(k, best) })),
		"max": builtin("max", extremum("max", func(k, best any) (bool, error) { return lessThan(best, k) })),
		"sorted": builtin("sorted", func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
			if err := exactly("sorted", args, 1); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			keyFn, reverse, err := sortOptions(ev, kwargs)
			if err != nil {
				return nil, err
			}
			if err := sortValues(items, keyFn, reverse); err != nil {
				return nil, raiseType("TypeError", "%s", err.Error())
			}
			return &List{Items: items}, nil
		}),
		"reversed": builtin("reversed", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("reversed", args, 1); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not reversible", typeName(args[0]))
			}
			out := make([]any, len(items))
			for i, v := range items {
				out[len(items)-1-i] = v
			}
			return &Generator{items: out}, nil
		}),
		"enumerate": builtin("enumerate", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("enumerate", args, 1, 2); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			start := int64(0)
			if len(args) == 2 {
				n, ok := asInt(args[1])
				if !ok {
					return nil, raiseType("TypeError", "enumerate() start must be an integer")
				}
				start = n
			}
			out := make([]any, len(items))
			for i, v := range items {
				out[i] = Tuple{start + int64(i), v}
			}
			return &Generator{items: out}, nil
		}),
		"zip": builtin("zip", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			cols := make([][]any, len(args))
			minLen := -1
			for i, a := range args {
				items, err := iterate(a)
				if err != nil {
					return nil, raiseType("TypeError", "zip argument #%d is not iterable", i+1)
				}
				cols[i] = items
				if minLen < 0 || len(items) < minLen {
					minLen = len(items)
				}
			}
			if minLen < 0 {
				minLen = 0
			}
			out := make([]any, minLen)
			for i := 0; i < minLen; i++ {
				row := make(Tuple, len(cols))
				for j, col := range cols {
					row[j] = col[i]
				}
				out[i] = row
			}
			return &Generator{items: out}, nil
		}),
		"map": builtin("map", func(ev *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("map", args, 2); err != nil {
				return nil, err
			}
			items, err := iterate(args[1])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[1]))
			}
			out := make([]any, len(items))
			for i, item := range items {
				v, err := ev.callCallable(args[0], []any{item}, nil, nil, "")
				if err != nil {
					return nil, err
				}
				out[i] = v
			}
			return &Generator{items: out}, nil
		}),
		"filter": builtin("filter", func(ev *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("filter", args, 2); err != nil {
				return nil, err
			}
			items, err := iterate(args[1])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[1]))
			}
			var out []any
			for _, item := range items {
				keep := truthy(item)
				if args[0] != nil {
					v, err := ev.callCallable(args[0], []any{item}, nil, nil, "")
					if err != nil {
						return nil, err
					}
					keep = truthy(v)
				}
				if keep {
					out = append(out, item)
				}
			}
			return &Generator{items: out}, nil
		}),
		"any": builtin("any", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("any", args, 1); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			for _, v := range items {
				if truthy(v) {
					return true, nil
				}
			}
			return false, nil
		}),
		"all": builtin("all", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("all", args, 1); err != nil {
				return nil, err
			}
			items, err := iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
			for _, v := range items {
				if !truthy(v) {
					return false, nil
				}
			}
			return true, nil
		}),
		"isinstance": builtin("isinstance", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("isinstance", args, 2); err != nil {
				return nil, err
			}
			return isInstanceOf(args[0], args[1])
		}),
		"super": builtin("super", func(ev *evaluator, args []any, _ map[string]any) (any, error) {
			if len(args) > 0 {
				return nil, raiseType("TypeError", "super() with arguments is not supported")
			}
			return ev.superValue()
		}),
	}
	return tools
}

// better reports whether a candidate key strictly beats the current
// best, so equal keys keep the earliest element.
func extremum(name string, better func(k, best any) (bool, error)) func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
	return func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
		var items []any
		if len(args) == 1 {
			var err error
			items, err = iterate(args[0])
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[0]))
			}
		} else {
			items = args
		}
		if len(items) == 0 {
			if dflt, ok := kwargs["default"]; ok {
				return dflt, nil
			}
			return nil, raiseType("ValueError", "%s() arg is an empty sequence", name)
		}
		var keyFn func(any) (any, error)
		if k, ok := kwargs["key"]; ok && k != nil {
			callee := k
			keyFn = func(item any) (any, error) {
				return ev.callCallable(callee, []any{item}, nil, nil, "")
			}
		}
		best := items[0]
		bestKey := best
		if keyFn != nil {
			var err error
			bestKey, err = keyFn(best)
			if err != nil {
				return nil, err
			}
		}
		for _, item := range items[1:] {
			k := item
			if keyFn != nil {
				var err error
				k, err = keyFn(item)
				if err != nil {
					return nil, err
				}
			}
			wins, err := better(k, bestKey)
			if err != nil {
				return nil, raiseType("TypeError", "%s", err.Error())
			}
			if wins {
				best = item
				bestKey = k
			}
		}
		return best, nil
	}
}

// isInstanceOf supports class values and the built-in type
// constructors as the second argument.
func isInstanceOf(v, typ any) (any, error) {
	switch t := typ.(type) {
	case Tuple:
		for _, alt := range t {
			ok, err := isInstanceOf(v, alt)
			if err != nil {
				return nil, err
			}
			if ok == true {
				return true, nil
			}
		}
		return false, nil
	case *Class:
		inst, ok := v.(*Instance)
		return ok && inst.Class.isSubclass(t), nil
	case *Builtin:
		switch t.Name {
		case "int":
			_, ok := v.(int64)
			if !ok {
				_, ok = v.(bool)
			}
			return ok, nil
		case "float":
			_, ok := v.(float64)
			return ok, nil
		case "str":
			_, ok := v.(string)
			return ok, nil
		case "bool":
			_, ok := v.(bool)
			return ok, nil
		case "list":
			_, ok := v.(*List)
			return ok, nil
		case "tuple":
			_, ok := v.(Tuple)
			return ok, nil
		case "dict":
			_, ok := v.(*Dict)
			return ok, nil
		case "set":
			_, ok := v.(*Set)
			return ok, nil
		}
		return nil, raiseType("TypeError", "isinstance() arg 2 must be a type or tuple of types")
	default:
		return nil, raiseType("TypeError", "isinstance() arg 2 must be a type or tuple of types")
	}
}
