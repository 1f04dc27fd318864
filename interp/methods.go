package interp

import (
	"strconv"
	"strings"
	"unicode"
)

// lookupMethod finds a built-in method for a primitive receiver. The
// receiver arrives as args[0] when the bound method is called.
func lookupMethod(obj any, name string) (*Builtin, bool) {
	var table map[string]*Builtin
	switch obj.(type) {
	case string:
		table = strMethods
	case *List:
		table = listMethods
	case *Dict:
		table = dictMethods
	case *Set:
		table = setMethods
	case Tuple:
		table = tupleMethods
	default:
		return nil, false
	}
	m, ok := table[name]
	return m, ok
}

func method(name string, fn func(ev *evaluator, args []any, kwargs map[string]any) (any, error)) *Builtin {
	return &Builtin{Name: name, Fn: fn}
}

func wantArgs(name string, args []any, min, max int) error {
	// args[0] is the receiver.
	n := len(args) - 1
	if n < min || (max >= 0 && n > max) {
		if min == max {
			return raiseType("TypeError", "%s() takes exactly %d argument(s) (%d given)", name, min, n)
		}
		return raiseType("TypeError", "%s() takes from %d to %d arguments (%d given)", name, min, max, n)
	}
	return nil
}

func strArg(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", raiseType("TypeError", "%s() argument must be str, not %s", name, typeName(v))
	}
	return s, nil
}

var strMethods map[string]*Builtin

var listMethods map[string]*Builtin

var dictMethods map[string]*Builtin

var setMethods map[string]*Builtin

var tupleMethods map[string]*Builtin

func init() {
	strMethods = buildStrMethods()
	listMethods = buildListMethods()
	dictMethods = buildDictMethods()
	setMethods = buildSetMethods()
	tupleMethods = map[string]*Builtin{
		"index": method("index", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := wantArgs("index", args, 1, 1); err != nil {
				return nil, err
			}
			t := args[0].(Tuple)
			for i, v := range t {
				if equal(v, args[1]) {
					return int64(i), nil
				}
			}
			return nil, raiseType("ValueError", "tuple.index(x): x not in tuple")
		}),
		"count": method("count", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := wantArgs("count", args, 1, 1); err != nil {
				return nil, err
			}
			t := args[0].(Tuple)
			var n int64
			for _, v := range t {
				if equal(v, args[1]) {
					n++
				}
			}
			return n, nil
		}),
	}
}

func buildStrMethods() map[string]*Builtin {
	m := map[string]*Builtin{}
	simple := func(name string, fn func(s string) any) {
		m[name] = method(name, func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := wantArgs(name, args, 0, 0); err != nil {
				return nil, err
			}
			return fn(args[0].(string)), nil
		})
	}
	simple("upper", func(s string) any { return strings.ToUpper(s) })
	simple("lower", func(s string) any { return strings.ToLower(s) })
	simple("capitalize", func(s string) any {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})
	simple("title", func(s string) any {
		prev := ' '
		return strings.Map(func(r rune) rune {
			out := r
			if unicode.IsLetter(prev) {
				out = unicode.ToLower(r)
			} else {
				out = unicode.ToUpper(r)
			}
			prev = r
			return out
		}, s)
	})
	simple("isdigit", func(s string) any { return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 })
	simple("isalpha", func(s string) any { return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) < 0 })
	simple("isalnum", func(s string) any {
		return s != "" && strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) < 0
	})
	simple("isspace", func(s string) any { return s != "" && strings.TrimSpace(s) == "" })
	simple("isupper", func(s string) any { return s != strings.ToLower(s) && s == strings.ToUpper(s) })
	simple("islower", func(s string) any { return s != strings.ToUpper(s) && s == strings.ToLower(s) })
	simple("splitlines", func(s string) any {
		lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
		items := make([]any, len(lines))
		for i, l := range lines {
			items[i] = l
		}
		return &List{Items: items}
	})

	strip := func(name string, fn func(s, cut string) string) {
		m[name] = method(name, func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := wantArgs(name, args, 0, 1); err != nil {
				return nil, err
			}
			cutset := " \t\n\r\v\f"
			if len(args) == 2 {
				if args[1] != nil {
					c, err := strArg(name, args[1])
					if err != nil {
						return nil, err
					}
					cutset = c
				}
			}
			return fn(args[0].(string), cutset), nil
		})
	}
	strip("strip", strings.Trim)
	strip("lstrip", strings.TrimLeft)
	strip("rstrip", strings.TrimRight)

	m["split"] = method("split", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("split", args, 0, 2); err != nil {
			return nil, err
		}
		s := args[0].(string)
		var parts []string
		if len(args) >= 2 && args[1] != nil {
			sep, err := strArg("split", args[1])
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, raiseType("ValueError", "empty separator")
			}
			if len(args) == 3 {
				n, ok := asInt(args[2])
				if !ok {
					return nil, raiseType("TypeError", "split() maxsplit must be an integer")
				}
				parts = strings.SplitN(s, sep, int(n)+1)
			} else {
				parts = strings.Split(s, sep)
			}
		} else {
			parts = strings.Fields(s)
		}
		items := make([]any, len(parts))
		for i, part := range parts {
			items[i] = part
		}
		return &List{Items: items}, nil
	})

	m["join"] = method("join", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("join", args, 1, 1); err != nil {
			return nil, err
		}
		sep := args[0].(string)
		items, err := iterate(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "can only join an iterable")
		}
		parts := make([]string, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, raiseType("TypeError", "sequence item %d: expected str instance, %s found", i, typeName(item))
			}
			parts[i] = s
		}
		return strings.Join(parts, sep), nil
	})

	m["replace"] = method("replace", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("replace", args, 2, 3); err != nil {
			return nil, err
		}
		s := args[0].(string)
		old, err := strArg("replace", args[1])
		if err != nil {
			return nil, err
		}
		new_, err := strArg("replace", args[2])
		if err != nil {
			return nil, err
		}
		count := -1
		if len(args) == 4 {
			n, ok := asInt(args[3])
			if !ok {
				return nil, raiseType("TypeError", "replace() count must be an integer")
			}
			count = int(n)
		}
		return strings.Replace(s, old, new_, count), nil
	})

	affix := func(name string, fn func(s, affix string) bool) {
		m[name] = method(name, func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := wantArgs(name, args, 1, 1); err != nil {
				return nil, err
			}
			s := args[0].(string)
			if t, ok := args[1].(Tuple); ok {
				for _, alt := range t {
					a, err := strArg(name, alt)
					if err != nil {
						return nil, err
					}
					if fn(s, a) {
						return true, nil
					}
				}
				return false, nil
			}
			a, err := strArg(name, args[1])
			if err != nil {
				return nil, err
			}
			return fn(s, a), nil
		})
	}
	affix("startswith", strings.HasPrefix)
	affix("endswith", strings.HasSuffix)

	m["find"] = method("find", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("find", args, 1, 1); err != nil {
			return nil, err
		}
		sub, err := strArg("find", args[1])
		if err != nil {
			return nil, err
		}
		return int64(strings.Index(args[0].(string), sub)), nil
	})
	m["index"] = method("index", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("index", args, 1, 1); err != nil {
			return nil, err
		}
		sub, err := strArg("index", args[1])
		if err != nil {
			return nil, err
		}
		idx := strings.Index(args[0].(string), sub)
		if idx < 0 {
			return nil, raiseType("ValueError", "substring not found")
		}
		return int64(idx), nil
	})
	m["count"] = method("count", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("count", args, 1, 1); err != nil {
			return nil, err
		}
		sub, err := strArg("count", args[1])
		if err != nil {
			return nil, err
		}
		return int64(strings.Count(args[0].(string), sub)), nil
	})
	m["zfill"] = method("zfill", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("zfill", args, 1, 1); err != nil {
			return nil, err
		}
		s := args[0].(string)
		width, ok := asInt(args[1])
		if !ok {
			return nil, raiseType("TypeError", "zfill() width must be an integer")
		}
		for int64(len(s)) < width {
			if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
				s = s[:1] + "0" + s[1:]
			} else {
				s = "0" + s
			}
		}
		return s, nil
	})
	m["format"] = method("format", func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
		return strFormat(ev, args[0].(string), args[1:], kwargs)
	})
	return m
}

// strFormat implements str.format with positional, auto-numbered and
// named fields plus format specs.
func strFormat(ev *evaluator, format string, args []any, kwargs map[string]any) (any, error) {
	var sb strings.Builder
	auto := 0
	i := 0
	for i < len(format) {
		ch := format[i]
		switch {
		case ch == '{' && i+1 < len(format) && format[i+1] == '{':
			sb.WriteByte('{')
			i += 2
		case ch == '}' && i+1 < len(format) && format[i+1] == '}':
			sb.WriteByte('}')
			i += 2
		case ch == '{':
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return nil, raiseType("ValueError", "Single '{' encountered in format string")
			}
			field := format[i+1 : i+end]
			i += end + 1
			name := field
			spec := ""
			if colon := strings.IndexByte(field, ':'); colon >= 0 {
				name, spec = field[:colon], field[colon+1:]
			}
			conversion := ""
			if bang := strings.IndexByte(name, '!'); bang >= 0 {
				conversion = name[bang+1:]
				name = name[:bang]
			}
			var v any
			switch {
			case name == "":
				if auto >= len(args) {
					return nil, raiseType("IndexError", "Replacement index %d out of range for positional args tuple", auto)
				}
				v = args[auto]
				auto++
			default:
				if idx, err := strconv.Atoi(name); err == nil {
					if idx < 0 || idx >= len(args) {
						return nil, raiseType("IndexError", "Replacement index %d out of range for positional args tuple", idx)
					}
					v = args[idx]
				} else {
					kv, ok := kwargs[name]
					if !ok {
						return nil, raiseType("KeyError", "'%s'", name)
					}
					v = kv
				}
			}
			text := ""
			switch conversion {
			case "r":
				text = ev.repr(v)
			default:
				text = ev.str(v)
			}
			if spec != "" {
				formatted, err := formatSpec(v, spec)
				if err != nil {
					return nil, raiseType("ValueError", "%s", err.Error())
				}
				text = formatted
			}
			sb.WriteString(text)
		case ch == '}':
			return nil, raiseType("ValueError", "Single '}' encountered in format string")
		default:
			sb.WriteByte(ch)
			i++
		}
	}
	return sb.String(), nil
}

func buildListMethods() map[string]*Builtin {
	m := map[string]*Builtin{}
	m["append"] = method("append", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("append", args, 1, 1); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		lst.Items = append(lst.Items, args[1])
		return nil, nil
	})
	m["extend"] = method("extend", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("extend", args, 1, 1); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		items, err := iterate(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[1]))
		}
		lst.Items = append(lst.Items, items...)
		return nil, nil
	})
	m["insert"] = method("insert", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("insert", args, 2, 2); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		n, ok := asInt(args[1])
		if !ok {
			return nil, raiseType("TypeError", "insert() index must be an integer")
		}
		idx := int(n)
		if idx < 0 {
			idx += len(lst.Items)
		}
		if idx < 0 {
			idx = 0
		}
		if idx > len(lst.Items) {
			idx = len(lst.Items)
		}
		lst.Items = append(lst.Items, nil)
		copy(lst.Items[idx+1:], lst.Items[idx:])
		lst.Items[idx] = args[2]
		return nil, nil
	})
	m["remove"] = method("remove", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("remove", args, 1, 1); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		for i, v := range lst.Items {
			if equal(v, args[1]) {
				lst.Items = append(lst.Items[:i], lst.Items[i+1:]...)
				return nil, nil
			}
		}
		return nil, raiseType("ValueError", "list.remove(x): x not in list")
	})
	m["pop"] = method("pop", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("pop", args, 0, 1); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		if len(lst.Items) == 0 {
			return nil, raiseType("IndexError", "pop from empty list")
		}
		idx := len(lst.Items) - 1
		if len(args) == 2 {
			n, ok := asInt(args[1])
			if !ok {
				return nil, raiseType("TypeError", "pop() index must be an integer")
			}
			idx = int(n)
			if idx < 0 {
				idx += len(lst.Items)
			}
			if idx < 0 || idx >= len(lst.Items) {
				return nil, raiseType("IndexError", "pop index out of range")
			}
		}
		v := lst.Items[idx]
		lst.Items = append(lst.Items[:idx], lst.Items[idx+1:]...)
		return v, nil
	})
	m["clear"] = method("clear", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("clear", args, 0, 0); err != nil {
			return nil, err
		}
		args[0].(*List).Items = nil
		return nil, nil
	})
	m["index"] = method("index", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("index", args, 1, 1); err != nil {
			return nil, err
		}
		for i, v := range args[0].(*List).Items {
			if equal(v, args[1]) {
				return int64(i), nil
			}
		}
		return nil, raiseType("ValueError", "%s is not in list", reprValue(args[1]))
	})
	m["count"] = method("count", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("count", args, 1, 1); err != nil {
			return nil, err
		}
		var n int64
		for _, v := range args[0].(*List).Items {
			if equal(v, args[1]) {
				n++
			}
		}
		return n, nil
	})
	m["reverse"] = method("reverse", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("reverse", args, 0, 0); err != nil {
			return nil, err
		}
		items := args[0].(*List).Items
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return nil, nil
	})
	m["sort"] = method("sort", func(ev *evaluator, args []any, kwargs map[string]any) (any, error) {
		if err := wantArgs("sort", args, 0, 0); err != nil {
			return nil, err
		}
		lst := args[0].(*List)
		keyFn, reverse, err := sortOptions(ev, kwargs)
		if err != nil {
			return nil, err
		}
		if err := sortValues(lst.Items, keyFn, reverse); err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		return nil, nil
	})
	m["copy"] = method("copy", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("copy", args, 0, 0); err != nil {
			return nil, err
		}
		return NewList(args[0].(*List).Items...), nil
	})
	return m
}

// sortOptions extracts the key/reverse kwargs shared by sorted() and
// list.sort().
func sortOptions(ev *evaluator, kwargs map[string]any) (func(any) (any, error), bool, error) {
	var keyFn func(any) (any, error)
	reverse := false
	for name, value := range kwargs {
		switch name {
		case "key":
			if value == nil {
				continue
			}
			callee := value
			keyFn = func(item any) (any, error) {
				return ev.callCallable(callee, []any{item}, nil, nil, "")
			}
		case "reverse":
			reverse = truthy(value)
		default:
			return nil, false, raiseType("TypeError", "'%s' is an invalid keyword argument for sort()", name)
		}
	}
	return keyFn, reverse, nil
}

func buildDictMethods() map[string]*Builtin {
	m := map[string]*Builtin{}
	m["get"] = method("get", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("get", args, 1, 2); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		v, ok, err := d.Get(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		if ok {
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return nil, nil
	})
	m["keys"] = method("keys", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("keys", args, 0, 0); err != nil {
			return nil, err
		}
		return NewList(args[0].(*Dict).Keys()...), nil
	})
	m["values"] = method("values", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("values", args, 0, 0); err != nil {
			return nil, err
		}
		return NewList(args[0].(*Dict).Values()...), nil
	})
	m["items"] = method("items", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("items", args, 0, 0); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		items := make([]any, d.Len())
		for i, k := range d.Keys() {
			items[i] = Tuple{k, d.Values()[i]}
		}
		return &List{Items: items}, nil
	})
	m["pop"] = method("pop", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("pop", args, 1, 2); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		v, ok, err := d.Get(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		if ok {
			_, _ = d.Delete(args[1])
			return v, nil
		}
		if len(args) == 3 {
			return args[2], nil
		}
		return nil, raiseType("KeyError", "%s", reprValue(args[1]))
	})
	m["update"] = method("update", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("update", args, 1, 1); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		src, ok := args[1].(*Dict)
		if !ok {
			return nil, raiseType("TypeError", "update() argument must be a dict, not %s", typeName(args[1]))
		}
		for i, k := range src.Keys() {
			if err := d.Set(k, src.Values()[i]); err != nil {
				return nil, raiseType("TypeError", "%s", err.Error())
			}
		}
		return nil, nil
	})
	m["setdefault"] = method("setdefault", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("setdefault", args, 1, 2); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		v, ok, err := d.Get(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		if ok {
			return v, nil
		}
		var dflt any
		if len(args) == 3 {
			dflt = args[2]
		}
		if err := d.Set(args[1], dflt); err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		return dflt, nil
	})
	m["clear"] = method("clear", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("clear", args, 0, 0); err != nil {
			return nil, err
		}
		d := args[0].(*Dict)
		*d = *NewDict()
		return nil, nil
	})
	m["copy"] = method("copy", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("copy", args, 0, 0); err != nil {
			return nil, err
		}
		return args[0].(*Dict).Copy(), nil
	})
	return m
}

func buildSetMethods() map[string]*Builtin {
	m := map[string]*Builtin{}
	m["add"] = method("add", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("add", args, 1, 1); err != nil {
			return nil, err
		}
		if err := args[0].(*Set).Add(args[1]); err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		return nil, nil
	})
	m["remove"] = method("remove", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("remove", args, 1, 1); err != nil {
			return nil, err
		}
		ok, err := args[0].(*Set).Discard(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		if !ok {
			return nil, raiseType("KeyError", "%s", reprValue(args[1]))
		}
		return nil, nil
	})
	m["discard"] = method("discard", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("discard", args, 1, 1); err != nil {
			return nil, err
		}
		if _, err := args[0].(*Set).Discard(args[1]); err != nil {
			return nil, raiseType("TypeError", "%s", err.Error())
		}
		return nil, nil
	})
	m["union"] = method("union", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		out := args[0].(*Set).Copy()
		for _, other := range args[1:] {
			items, err := iterate(other)
			if err != nil {
				return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(other))
			}
			for _, v := range items {
				if err := out.Add(v); err != nil {
					return nil, raiseType("TypeError", "%s", err.Error())
				}
			}
		}
		return out, nil
	})
	m["intersection"] = method("intersection", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("intersection", args, 1, 1); err != nil {
			return nil, err
		}
		s := args[0].(*Set)
		other, ok := args[1].(*Set)
		if !ok {
			return nil, raiseType("TypeError", "intersection() argument must be a set")
		}
		v, _ := setOp("&", s, other)
		return v, nil
	})
	m["difference"] = method("difference", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("difference", args, 1, 1); err != nil {
			return nil, err
		}
		s := args[0].(*Set)
		other, ok := args[1].(*Set)
		if !ok {
			return nil, raiseType("TypeError", "difference() argument must be a set")
		}
		return setDifference(s, other), nil
	})
	m["update"] = method("update", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("update", args, 1, 1); err != nil {
			return nil, err
		}
		s := args[0].(*Set)
		items, err := iterate(args[1])
		if err != nil {
			return nil, raiseType("TypeError", "'%s' object is not iterable", typeName(args[1]))
		}
		for _, v := range items {
			if err := s.Add(v); err != nil {
				return nil, raiseType("TypeError", "%s", err.Error())
			}
		}
		return nil, nil
	})
	m["issubset"] = method("issubset", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("issubset", args, 1, 1); err != nil {
			return nil, err
		}
		s := args[0].(*Set)
		other, ok := args[1].(*Set)
		if !ok {
			return nil, raiseType("TypeError", "issubset() argument must be a set")
		}
		for _, v := range s.Items() {
			if has, _ := other.Has(v); !has {
				return false, nil
			}
		}
		return true, nil
	})
	m["clear"] = method("clear", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("clear", args, 0, 0); err != nil {
			return nil, err
		}
		s := args[0].(*Set)
		*s = *NewSet()
		return nil, nil
	})
	m["copy"] = method("copy", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
		if err := wantArgs("copy", args, 0, 0); err != nil {
			return nil, err
		}
		return args[0].(*Set).Copy(), nil
	})
	return m
}
