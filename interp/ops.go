package interp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// wrapOpErr attaches node context to operator errors that lack it.
// Raised runtime exceptions pass through untouched.
func wrapOpErr(err error, node Node) error {
	var raised *Raised
	if errors.As(err, &raised) {
		return err
	}
	var ierr *Error
	if errors.As(err, &ierr) {
		if ierr.Line == 0 {
			ierr.Line = node.Pos()
			ierr.Node = node.Kind()
		}
		return err
	}
	return &Error{
		Message: err.Error(),
		Node:    node.Kind(),
		Line:    node.Pos(),
		Err:     ErrUnsupported,
	}
}

func unaryOp(op string, v any) (any, error) {
	switch op {
	case "not":
		return !truthy(v), nil
	case "-":
		if n, ok := v.(int64); ok {
			return -n, nil
		}
		if b, ok := v.(bool); ok {
			if b {
				return int64(-1), nil
			}
			return int64(0), nil
		}
		if f, ok := v.(float64); ok {
			return -f, nil
		}
	case "+":
		if isNumber(v) {
			return v, nil
		}
	case "~":
		if n, ok := asInt(v); ok {
			return ^n, nil
		}
	}
	return nil, raiseType("TypeError", "bad operand type for unary %s: '%s'", op, typeName(v))
}

func binaryOp(op string, left, right any) (any, error) {
	switch op {
	case "+":
		return addOp(left, right)
	case "-":
		if ls, ok := left.(*Set); ok {
			if rs, ok := right.(*Set); ok {
				return setDifference(ls, rs), nil
			}
		}
		return arith(op, left, right)
	case "*":
		return mulOp(left, right)
	case "/":
		return divOp(left, right)
	case "//":
		return floorDivOp(left, right)
	case "%":
		return modOp(left, right)
	case "**":
		return powOp(left, right)
	case "&", "|", "^":
		return setOrBitOp(op, left, right)
	case "<<", ">>":
		return shiftOp(op, left, right)
	case "@":
		return nil, raiseType("TypeError", "unsupported operand type(s) for @: '%s' and '%s'", typeName(left), typeName(right))
	}
	return nil, raiseType("TypeError", "unsupported operator '%s'", op)
}

// augBinaryOp implements the in-place operator table. Lists extend the
// existing list so aliases observe the mutation.
func augBinaryOp(op string, current, operand any) (any, error) {
	if op == "+" {
		if lst, ok := current.(*List); ok {
			items, err := iterate(operand)
			if err != nil {
				return nil, raiseType("TypeError", "can only concatenate list (not \"%s\") to list", typeName(operand))
			}
			lst.Items = append(lst.Items, items...)
			return lst, nil
		}
	}
	return binaryOp(op, current, operand)
}

func typeErr2(op string, left, right any) error {
	return raiseType("TypeError", "unsupported operand type(s) for %s: '%s' and '%s'", op, typeName(left), typeName(right))
}

func addOp(left, right any) (any, error) {
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, raiseType("TypeError", "can only concatenate str (not \"%s\") to str", typeName(right))
		}
		return ls + rs, nil
	}
	if ll, ok := left.(*List); ok {
		rl, ok := right.(*List)
		if !ok {
			return nil, raiseType("TypeError", "can only concatenate list (not \"%s\") to list", typeName(right))
		}
		out := make([]any, 0, len(ll.Items)+len(rl.Items))
		out = append(out, ll.Items...)
		out = append(out, rl.Items...)
		return &List{Items: out}, nil
	}
	if lt, ok := left.(Tuple); ok {
		rt, ok := right.(Tuple)
		if !ok {
			return nil, typeErr2("+", left, right)
		}
		out := make(Tuple, 0, len(lt)+len(rt))
		out = append(out, lt...)
		out = append(out, rt...)
		return out, nil
	}
	return arith("+", left, right)
}

// arith handles + - on numbers, preserving int results for int
// operands.
func arith(op string, left, right any) (any, error) {
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok {
			switch op {
			case "+":
				return li + ri, nil
			case "-":
				return li - ri, nil
			}
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2(op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	}
	return nil, typeErr2(op, left, right)
}

func mulOp(left, right any) (any, error) {
	// Sequence repetition.
	if n, ok := asInt(right); ok {
		if v, handled, err := repeatSeq(left, n); handled {
			return v, err
		}
	}
	if n, ok := asInt(left); ok {
		if v, handled, err := repeatSeq(right, n); handled {
			return v, err
		}
	}
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok {
			return li * ri, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2("*", left, right)
	}
	return lf * rf, nil
}

func repeatSeq(v any, n int64) (any, bool, error) {
	if n < 0 {
		n = 0
	}
	switch x := v.(type) {
	case string:
		return strings.Repeat(x, int(n)), true, nil
	case *List:
		out := make([]any, 0, int64(len(x.Items))*n)
		for i := int64(0); i < n; i++ {
			out = append(out, x.Items...)
		}
		return &List{Items: out}, true, nil
	case Tuple:
		out := make(Tuple, 0, int64(len(x))*n)
		for i := int64(0); i < n; i++ {
			out = append(out, x...)
		}
		return out, true, nil
	}
	return nil, false, nil
}

func divOp(left, right any) (any, error) {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2("/", left, right)
	}
	if rf == 0 {
		return nil, raiseType("ZeroDivisionError", "division by zero")
	}
	return lf / rf, nil
}

func floorDivOp(left, right any) (any, error) {
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok {
			if ri == 0 {
				return nil, raiseType("ZeroDivisionError", "integer division or modulo by zero")
			}
			q := li / ri
			if (li%ri != 0) && ((li < 0) != (ri < 0)) {
				q--
			}
			return q, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2("//", left, right)
	}
	if rf == 0 {
		return nil, raiseType("ZeroDivisionError", "float floor division by zero")
	}
	return math.Floor(lf / rf), nil
}

// modOp implements % with the remainder taking the divisor's sign, and
// printf-style formatting for string left operands.
func modOp(left, right any) (any, error) {
	if format, ok := left.(string); ok {
		return percentFormat(format, right)
	}
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok {
			if ri == 0 {
				return nil, raiseType("ZeroDivisionError", "integer division or modulo by zero")
			}
			m := li % ri
			if m != 0 && (m < 0) != (ri < 0) {
				m += ri
			}
			return m, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2("%", left, right)
	}
	if rf == 0 {
		return nil, raiseType("ZeroDivisionError", "float modulo")
	}
	m := math.Mod(lf, rf)
	if m != 0 && (m < 0) != (rf < 0) {
		m += rf
	}
	return m, nil
}

func powOp(left, right any) (any, error) {
	if li, lok := asInt(left); lok {
		if ri, rok := asInt(right); rok && ri >= 0 {
			result := int64(1)
			base := li
			exp := ri
			for exp > 0 {
				if exp&1 == 1 {
					result *= base
				}
				base *= base
				exp >>= 1
			}
			return result, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if !lok || !rok {
		return nil, typeErr2("**", left, right)
	}
	return math.Pow(lf, rf), nil
}

func setOrBitOp(op string, left, right any) (any, error) {
	if ls, ok := left.(*Set); ok {
		rs, ok := right.(*Set)
		if !ok {
			return nil, typeErr2(op, left, right)
		}
		return setOp(op, ls, rs)
	}
	li, lok := asInt(left)
	ri, rok := asInt(right)
	if !lok || !rok {
		return nil, typeErr2(op, left, right)
	}
	switch op {
	case "&":
		return li & ri, nil
	case "|":
		return li | ri, nil
	case "^":
		return li ^ ri, nil
	}
	return nil, typeErr2(op, left, right)
}

func setOp(op string, a, b *Set) (any, error) {
	out := NewSet()
	switch op {
	case "|":
		for _, v := range a.Items() {
			_ = out.Add(v)
		}
		for _, v := range b.Items() {
			_ = out.Add(v)
		}
	case "&":
		for _, v := range a.Items() {
			if has, _ := b.Has(v); has {
				_ = out.Add(v)
			}
		}
	case "^":
		for _, v := range a.Items() {
			if has, _ := b.Has(v); !has {
				_ = out.Add(v)
			}
		}
		for _, v := range b.Items() {
			if has, _ := a.Has(v); !has {
				_ = out.Add(v)
			}
		}
	}
	return out, nil
}

// setDifference implements s - t for sets; spelled out here because
// "-" also means numeric subtraction.
func setDifference(a, b *Set) *Set {
	out := NewSet()
	for _, v := range a.Items() {
		if has, _ := b.Has(v); !has {
			_ = out.Add(v)
		}
	}
	return out
}

func shiftOp(op string, left, right any) (any, error) {
	li, lok := asInt(left)
	ri, rok := asInt(right)
	if !lok || !rok {
		return nil, typeErr2(op, left, right)
	}
	if ri < 0 {
		return nil, raiseType("ValueError", "negative shift count")
	}
	if op == "<<" {
		return li << uint64(ri), nil
	}
	return li >> uint64(ri), nil
}

func compareOp(op string, left, right any) (bool, error) {
	switch op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "<":
		return lessThanErr(left, right)
	case "<=":
		less, err := lessThanErr(left, right)
		if err != nil {
			return false, err
		}
		return less || equal(left, right), nil
	case ">":
		less, err := lessThanErr(right, left)
		return less, err
	case ">=":
		less, err := lessThanErr(right, left)
		if err != nil {
			return false, err
		}
		return less || equal(left, right), nil
	case "in":
		return containsOp(left, right)
	case "not in":
		ok, err := containsOp(left, right)
		return !ok, err
	case "is":
		return identical(left, right), nil
	case "is not":
		return !identical(left, right), nil
	}
	return false, raiseType("TypeError", "unsupported comparison '%s'", op)
}

func lessThanErr(a, b any) (bool, error) {
	less, err := lessThan(a, b)
	if err != nil {
		return false, raiseType("TypeError", "%s", err.Error())
	}
	return less, nil
}

// identical implements `is`. Only None, booleans and reference types
// have meaningful identity here.
func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		return ok && x == y
	case *Dict:
		y, ok := b.(*Dict)
		return ok && x == y
	case *Set:
		y, ok := b.(*Set)
		return ok && x == y
	case *Instance:
		y, ok := b.(*Instance)
		return ok && x == y
	case *Function:
		y, ok := b.(*Function)
		return ok && x == y
	case *Class:
		y, ok := b.(*Class)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	}
	return false
}

// containsOp implements `item in container`.
func containsOp(item, container any) (bool, error) {
	switch x := container.(type) {
	case string:
		sub, ok := item.(string)
		if !ok {
			return false, raiseType("TypeError", "'in <string>' requires string as left operand, not %s", typeName(item))
		}
		return strings.Contains(x, sub), nil
	case *List:
		for _, v := range x.Items {
			if equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	case Tuple:
		for _, v := range x {
			if equal(v, item) {
				return true, nil
			}
		}
		return false, nil
	case *Dict:
		_, ok, err := x.Get(item)
		if err != nil {
			return false, raiseType("TypeError", "%s", err.Error())
		}
		return ok, nil
	case *Set:
		has, err := x.Has(item)
		if err != nil {
			return false, raiseType("TypeError", "%s", err.Error())
		}
		return has, nil
	case Range:
		n, ok := asInt(item)
		if !ok {
			return false, nil
		}
		if x.Step > 0 {
			return n >= x.Start && n < x.Stop && (n-x.Start)%x.Step == 0, nil
		}
		return n <= x.Start && n > x.Stop && (x.Start-n)%(-x.Step) == 0, nil
	case *Generator:
		for {
			v, ok := x.Next()
			if !ok {
				return false, nil
			}
			if equal(v, item) {
				return true, nil
			}
		}
	default:
		return false, raiseType("TypeError", "argument of type '%s' is not iterable", typeName(container))
	}
}

// percentFormat implements the % string operator for the common verbs.
func percentFormat(format string, arg any) (any, error) {
	var args []any
	if t, ok := arg.(Tuple); ok {
		args = t
	} else {
		args = []any{arg}
	}
	var sb strings.Builder
	argIdx := 0
	nextArg := func() (any, error) {
		if argIdx >= len(args) {
			return nil, raiseType("TypeError", "not enough arguments for format string")
		}
		v := args[argIdx]
		argIdx++
		return v, nil
	}
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			sb.WriteByte(format[i])
			continue
		}
		i++
		if i >= len(format) {
			return nil, raiseType("ValueError", "incomplete format")
		}
		// Optional width/precision pass through to fmt.
		spec := "%"
		for i < len(format) && (format[i] == '-' || format[i] == '+' || format[i] == ' ' || format[i] == '0' || format[i] == '.' || isDigit(format[i])) {
			spec += string(format[i])
			i++
		}
		if i >= len(format) {
			return nil, raiseType("ValueError", "incomplete format")
		}
		verb := format[i]
		switch verb {
		case '%':
			sb.WriteByte('%')
		case 's':
			v, err := nextArg()
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&sb, spec+"s", strValue(v))
		case 'r':
			v, err := nextArg()
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(&sb, spec+"s", reprValue(v))
		case 'd', 'i':
			v, err := nextArg()
			if err != nil {
				return nil, err
			}
			n, ok := asInt(v)
			if !ok {
				if f, fok := v.(float64); fok {
					n = int64(f)
				} else {
					return nil, raiseType("TypeError", "%%d format: a number is required, not %s", typeName(v))
				}
			}
			fmt.Fprintf(&sb, spec+"d", n)
		case 'f', 'e', 'g', 'E', 'G':
			v, err := nextArg()
			if err != nil {
				return nil, err
			}
			f, ok := asFloat(v)
			if !ok {
				return nil, raiseType("TypeError", "float argument required, not %s", typeName(v))
			}
			fmt.Fprintf(&sb, spec+string(verb), f)
		case 'x', 'X', 'o':
			v, err := nextArg()
			if err != nil {
				return nil, err
			}
			n, ok := asInt(v)
			if !ok {
				return nil, raiseType("TypeError", "%%%c format: an integer is required, not %s", verb, typeName(v))
			}
			fmt.Fprintf(&sb, spec+string(verb), n)
		default:
			return nil, raiseType("ValueError", "unsupported format character '%c'", verb)
		}
	}
	return sb.String(), nil
}

// formatSpec implements the format mini-language subset used in
// f-strings: [[fill]align][sign][0][width][,][.precision][type].
func formatSpec(v any, spec string) (string, error) {
	fill := byte(' ')
	align := byte(0)
	rest := spec
	if len(rest) >= 2 && (rest[1] == '<' || rest[1] == '>' || rest[1] == '^') {
		fill = rest[0]
		align = rest[1]
		rest = rest[2:]
	} else if len(rest) >= 1 && (rest[0] == '<' || rest[0] == '>' || rest[0] == '^') {
		align = rest[0]
		rest = rest[1:]
	}
	sign := byte(0)
	if len(rest) > 0 && (rest[0] == '+' || rest[0] == '-' || rest[0] == ' ') {
		sign = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '0' {
		if align == 0 {
			align = '>'
			fill = '0'
		}
		rest = rest[1:]
	}
	width := 0
	for len(rest) > 0 && isDigit(rest[0]) {
		width = width*10 + int(rest[0]-'0')
		rest = rest[1:]
	}
	comma := false
	if len(rest) > 0 && rest[0] == ',' {
		comma = true
		rest = rest[1:]
	}
	precision := -1
	if len(rest) > 0 && rest[0] == '.' {
		rest = rest[1:]
		precision = 0
		for len(rest) > 0 && isDigit(rest[0]) {
			precision = precision*10 + int(rest[0]-'0')
			rest = rest[1:]
		}
	}
	verb := byte(0)
	if len(rest) == 1 {
		verb = rest[0]
	} else if len(rest) > 1 {
		return "", fmt.Errorf("invalid format spec '%s'", spec)
	}

	var body string
	switch verb {
	case 0, 's':
		if verb == 's' {
			if _, ok := v.(string); !ok {
				return "", fmt.Errorf("unknown format code 's' for object of type '%s'", typeName(v))
			}
		}
		body = strValue(v)
		if precision >= 0 && len(body) > precision {
			body = body[:precision]
		}
		if align == 0 {
			align = '<'
		}
	case 'd':
		n, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("unknown format code 'd' for object of type '%s'", typeName(v))
		}
		body = fmt.Sprintf("%d", n)
		if comma {
			body = groupThousands(body)
		}
	case 'f', 'F':
		f, ok := asFloat(v)
		if !ok {
			return "", fmt.Errorf("unknown format code 'f' for object of type '%s'", typeName(v))
		}
		if precision < 0 {
			precision = 6
		}
		body = fmt.Sprintf("%.*f", precision, f)
		if comma {
			body = groupThousands(body)
		}
	case 'e', 'E', 'g', 'G':
		f, ok := asFloat(v)
		if !ok {
			return "", fmt.Errorf("unknown format code '%c' for object of type '%s'", verb, typeName(v))
		}
		if precision < 0 {
			precision = 6
		}
		body = fmt.Sprintf("%.*"+string(verb), precision, f)
	case 'x', 'X', 'o', 'b':
		n, ok := asInt(v)
		if !ok {
			return "", fmt.Errorf("unknown format code '%c' for object of type '%s'", verb, typeName(v))
		}
		f := string(verb)
		if verb == 'b' {
			f = "b"
		}
		body = fmt.Sprintf("%"+f, n)
	case '%':
		f, ok := asFloat(v)
		if !ok {
			return "", fmt.Errorf("unknown format code '%%' for object of type '%s'", typeName(v))
		}
		if precision < 0 {
			precision = 6
		}
		body = fmt.Sprintf("%.*f%%", precision, f*100)
	default:
		return "", fmt.Errorf("unknown format code '%c'", verb)
	}

	if sign == '+' && len(body) > 0 && body[0] != '-' && isNumber(v) && verb != 0 && verb != 's' {
		body = "+" + body
	}

	for len(body) < width {
		switch align {
		case '<':
			body += string(fill)
		case '^':
			if (width-len(body))%2 == 0 {
				body = string(fill) + body
			} else {
				body += string(fill)
			}
		default:
			body = string(fill) + body
		}
	}
	return body, nil
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart := s
	fracPart := ""
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		intPart, fracPart = s[:dot], s[dot:]
	}
	var sb strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(ch)
	}
	out := sb.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}
