package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Runtime values are represented as:
//
//	nil        None
//	bool       booleans
//	int64      integers
//	float64    floats
//	string     strings
//	*List      mutable lists
//	Tuple      immutable tuples
//	*Dict      insertion-ordered mappings
//	*Set       insertion-ordered sets
//	Range      lazy integer ranges
//	*Function  user-defined functions and lambdas
//	*Builtin   host-provided callables
//	*Class     user-defined and exception classes
//	*Instance  class instances
//	BoundMethod
//	*Module    import proxies
//	*Generator exhausted-on-demand iterators

// List is a mutable sequence.
type List struct {
	Items []any
}

// NewList copies items into a fresh list.
func NewList(items ...any) *List {
	out := make([]any, len(items))
	copy(out, items)
	return &List{Items: out}
}

// Tuple is an immutable sequence.
type Tuple []any

// Dict preserves insertion order across assignment and deletion, like
// its Python counterpart.
type Dict struct {
	keys   []any
	values []any
	index  map[mapKey]int
}

func NewDict() *Dict {
	return &Dict{index: make(map[mapKey]int)}
}

func (d *Dict) Len() int { return len(d.keys) }

// Get looks up key. The second result reports presence, the error
// signals an unhashable key.
func (d *Dict) Get(key any) (any, bool, error) {
	mk, err := hashKey(key)
	if err != nil {
		return nil, false, err
	}
	idx, ok := d.index[mk]
	if !ok {
		return nil, false, nil
	}
	return d.values[idx], true, nil
}

func (d *Dict) Set(key, value any) error {
	mk, err := hashKey(key)
	if err != nil {
		return err
	}
	if idx, ok := d.index[mk]; ok {
		d.values[idx] = value
		return nil
	}
	d.index[mk] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, value)
	return nil
}

func (d *Dict) Delete(key any) (bool, error) {
	mk, err := hashKey(key)
	if err != nil {
		return false, err
	}
	idx, ok := d.index[mk]
	if !ok {
		return false, nil
	}
	d.keys = append(d.keys[:idx], d.keys[idx+1:]...)
	d.values = append(d.values[:idx], d.values[idx+1:]...)
	delete(d.index, mk)
	for k, i := range d.index {
		if i > idx {
			d.index[k] = i - 1
		}
	}
	return true, nil
}

// Keys returns the keys in insertion order. The slice is shared; do
// not mutate.
func (d *Dict) Keys() []any   { return d.keys }
func (d *Dict) Values() []any { return d.values }

// Copy returns a shallow copy.
func (d *Dict) Copy() *Dict {
	out := NewDict()
	for i, k := range d.keys {
		_ = out.Set(k, d.values[i])
	}
	return out
}

// Set is an insertion-ordered hash set.
type Set struct {
	order []any
	index map[mapKey]struct{}
}

func NewSet() *Set {
	return &Set{index: make(map[mapKey]struct{})}
}

func (s *Set) Len() int { return len(s.order) }

func (s *Set) Add(v any) error {
	mk, err := hashKey(v)
	if err != nil {
		return err
	}
	if _, ok := s.index[mk]; ok {
		return nil
	}
	s.index[mk] = struct{}{}
	s.order = append(s.order, v)
	return nil
}

func (s *Set) Has(v any) (bool, error) {
	mk, err := hashKey(v)
	if err != nil {
		return false, err
	}
	_, ok := s.index[mk]
	return ok, nil
}

func (s *Set) Discard(v any) (bool, error) {
	mk, err := hashKey(v)
	if err != nil {
		return false, err
	}
	if _, ok := s.index[mk]; !ok {
		return false, nil
	}
	delete(s.index, mk)
	for i, elem := range s.order {
		emk, _ := hashKey(elem)
		if emk == mk {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// Items returns elements in insertion order. The slice is shared; do
// not mutate.
func (s *Set) Items() []any { return s.order }

func (s *Set) Copy() *Set {
	out := NewSet()
	for _, v := range s.order {
		_ = out.Add(v)
	}
	return out
}

// Range mirrors range(start, stop, step). Step is never zero.
type Range struct {
	Start, Stop, Step int64
}

func (r Range) Len() int64 {
	if r.Step > 0 {
		if r.Stop <= r.Start {
			return 0
		}
		return (r.Stop - r.Start + r.Step - 1) / r.Step
	}
	if r.Stop >= r.Start {
		return 0
	}
	return (r.Start - r.Stop + (-r.Step) - 1) / (-r.Step)
}

// Generator holds pre-computed items; generator expressions are
// evaluated eagerly.
type Generator struct {
	items []any
	idx   int
}

func (g *Generator) Next() (any, bool) {
	if g.idx >= len(g.items) {
		return nil, false
	}
	v := g.items[g.idx]
	g.idx++
	return v, true
}

// mapKey is a canonical hashable encoding of a value. Numeric values
// that compare equal share a key, so d[1] and d[1.0] hit the same slot.
type mapKey string

func hashKey(v any) (mapKey, error) {
	switch x := v.(type) {
	case nil:
		return "n", nil
	case bool:
		if x {
			return "i1", nil
		}
		return "i0", nil
	case int64:
		return mapKey("i" + strconv.FormatInt(x, 10)), nil
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e18 {
			return mapKey("i" + strconv.FormatInt(int64(x), 10)), nil
		}
		return mapKey("f" + strconv.FormatFloat(x, 'g', -1, 64)), nil
	case string:
		return mapKey("s" + x), nil
	case Tuple:
		var sb strings.Builder
		sb.WriteByte('t')
		for _, elem := range x {
			mk, err := hashKey(elem)
			if err != nil {
				return "", err
			}
			sb.WriteString(strconv.Itoa(len(mk)))
			sb.WriteByte(':')
			sb.WriteString(string(mk))
		}
		return mapKey(sb.String()), nil
	case *Instance:
		return mapKey(fmt.Sprintf("o%p", x)), nil
	default:
		return "", fmt.Errorf("unhashable type: '%s'", typeName(v))
	}
}

// typeName returns the Python-facing type name of a value.
func typeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case *List:
		return "list"
	case Tuple:
		return "tuple"
	case *Dict:
		return "dict"
	case *Set:
		return "set"
	case Range:
		return "range"
	case *Function:
		return "function"
	case *Builtin:
		return "builtin_function_or_method"
	case *Class:
		return "type"
	case *Instance:
		return x.Class.Name
	case BoundMethod:
		return "method"
	case *Module:
		return "module"
	case *Generator:
		return "generator"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// truthy implements Python truth testing.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	case *List:
		return len(x.Items) > 0
	case Tuple:
		return len(x) > 0
	case *Dict:
		return x.Len() > 0
	case *Set:
		return x.Len() > 0
	case Range:
		return x.Len() > 0
	case *Generator:
		return true
	default:
		return true
	}
}

// equal implements ==. Containers compare element-wise; ints and
// floats compare numerically.
func equal(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case *List:
		y, ok := b.(*List)
		if !ok || len(x.Items) != len(y.Items) {
			return false
		}
		for i := range x.Items {
			if !equal(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case Tuple:
		y, ok := b.(Tuple)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, k := range x.keys {
			other, found, err := y.Get(k)
			if err != nil || !found || !equal(x.values[i], other) {
				return false
			}
		}
		return true
	case *Set:
		y, ok := b.(*Set)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for _, elem := range x.order {
			has, err := y.Has(elem)
			if err != nil || !has {
				return false
			}
		}
		return true
	case Range:
		y, ok := b.(Range)
		return ok && equalRanges(x, y)
	default:
		return a == b
	}
}

func equalRanges(a, b Range) bool {
	if a.Len() != b.Len() {
		return false
	}
	if a.Len() == 0 {
		return true
	}
	if a.Start != b.Start {
		return false
	}
	return a.Len() == 1 || a.Step == b.Step
}

// asFloat widens numeric values for mixed comparisons. bools count as
// ints, as in Python.
func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func asInt(v any) (int64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case int64:
		return x, true
	}
	return 0, false
}

func isNumber(v any) bool {
	_, ok := asFloat(v)
	return ok
}

func rangeItems(r Range) []any {
	n := r.Len()
	out := make([]any, 0, n)
	for i := int64(0); i < n; i++ {
		out = append(out, r.Start+i*r.Step)
	}
	return out
}

// reprValue renders a value the way repr() would.
func reprValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case string:
		return quotePy(x)
	case *List:
		return reprSeq("[", "]", x.Items)
	case Tuple:
		if len(x) == 1 {
			return "(" + reprValue(x[0]) + ",)"
		}
		return reprSeq("(", ")", x)
	case *Dict:
		if x.Len() == 0 {
			return "{}"
		}
		var sb strings.Builder
		sb.WriteByte('{')
		for i, k := range x.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(reprValue(k))
			sb.WriteString(": ")
			sb.WriteString(reprValue(x.values[i]))
		}
		sb.WriteByte('}')
		return sb.String()
	case *Set:
		if x.Len() == 0 {
			return "set()"
		}
		return reprSeq("{", "}", x.order)
	case Range:
		if x.Step == 1 {
			return fmt.Sprintf("range(%d, %d)", x.Start, x.Stop)
		}
		return fmt.Sprintf("range(%d, %d, %d)", x.Start, x.Stop, x.Step)
	case *Function:
		return fmt.Sprintf("<function %s>", x.Name)
	case *Builtin:
		return fmt.Sprintf("<built-in function %s>", x.Name)
	case *Class:
		return fmt.Sprintf("<class '%s'>", x.Name)
	case *Instance:
		return instanceRepr(x)
	case BoundMethod:
		return fmt.Sprintf("<bound method %s>", x.Name())
	case *Module:
		return fmt.Sprintf("<module '%s'>", x.Name)
	case *Generator:
		return "<generator object>"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func reprSeq(open, close string, items []any) string {
	var sb strings.Builder
	sb.WriteString(open)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(reprValue(item))
	}
	sb.WriteString(close)
	return sb.String()
}

// strValue renders a value the way str() would: strings stay bare,
// everything else falls back to repr.
func strValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *Instance:
		return instanceStr(x)
	default:
		return reprValue(v)
	}
}

// formatFloat matches Python's float display closely enough for logs:
// integral floats keep a trailing .0.
func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	// Go writes 1e+06 where Python writes 1e+06 too, but Go drops the
	// plus sign exponent padding differently; normalize e6 to e+06 form.
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		mant, exp := s[:i], s[i+1:]
		sign := "+"
		if exp[0] == '+' || exp[0] == '-' {
			sign = string(exp[0])
			exp = exp[1:]
		}
		if len(exp) < 2 {
			exp = "0" + exp
		}
		s = mant + "e" + sign + exp
	}
	return s
}

// quotePy quotes a string the way Python repr does: single quotes
// unless the text contains one and no double quote.
func quotePy(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, "\"") {
		quote = '"'
	}
	var sb strings.Builder
	sb.WriteByte(quote)
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\\':
			sb.WriteString(`\\`)
		case rune(quote):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

// sortValues sorts in place using Python ordering; mixed incomparable
// types surface an error.
func sortValues(items []any, key func(any) (any, error), reverse bool) error {
	type keyed struct {
		orig any
		key  any
	}
	pairs := make([]keyed, len(items))
	for i, item := range items {
		k := item
		if key != nil {
			var err error
			k, err = key(item)
			if err != nil {
				return err
			}
		}
		pairs[i] = keyed{orig: item, key: k}
	}
	var sortErr error
	sort.SliceStable(pairs, func(i, j int) bool {
		less, err := lessThan(pairs[i].key, pairs[j].key)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		if reverse {
			return !less && !equal(pairs[i].key, pairs[j].key)
		}
		return less
	})
	if sortErr != nil {
		return sortErr
	}
	for i, pr := range pairs {
		items[i] = pr.orig
	}
	return nil
}

// lessThan implements <. Sequences compare lexicographically.
func lessThan(a, b any) (bool, error) {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af < bf, nil
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return x < y, nil
		}
	case *List:
		if y, ok := b.(*List); ok {
			return seqLess(x.Items, y.Items)
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return seqLess(x, y)
		}
	}
	return false, fmt.Errorf("'<' not supported between instances of '%s' and '%s'", typeName(a), typeName(b))
}

func seqLess(a, b []any) (bool, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if equal(a[i], b[i]) {
			continue
		}
		return lessThan(a[i], b[i])
	}
	return len(a) < len(b), nil
}
