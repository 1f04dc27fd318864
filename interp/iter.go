package interp

import "fmt"

// iterate materializes an iterable into a slice. Strings iterate as
// one-character strings; dicts iterate over keys; generators are
// consumed.
func iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case *List:
		return append([]any(nil), x.Items...), nil
	case Tuple:
		return append([]any(nil), x...), nil
	case *Set:
		return append([]any(nil), x.Items()...), nil
	case *Dict:
		return append([]any(nil), x.Keys()...), nil
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case Range:
		return rangeItems(x), nil
	case *Generator:
		var out []any
		for {
			item, ok := x.Next()
			if !ok {
				return out, nil
			}
			out = append(out, item)
		}
	default:
		return nil, fmt.Errorf("'%s' object is not iterable", typeName(v))
	}
}
