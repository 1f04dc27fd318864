package interp

import "math"

// mathModule builds the built-in math module. Functions follow their
// Python signatures on float64.
func mathModule() *Module {
	float1 := func(name string, fn func(float64) float64) *Builtin {
		return builtin(name, func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly(name, args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			out := fn(f)
			if math.IsNaN(out) && !math.IsNaN(f) {
				return nil, raiseType("ValueError", "math domain error")
			}
			return out, nil
		})
	}
	float2 := func(name string, fn func(a, b float64) float64) *Builtin {
		return builtin(name, func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly(name, args, 2); err != nil {
				return nil, err
			}
			a, aok := asFloat(args[0])
			b, bok := asFloat(args[1])
			if !aok || !bok {
				return nil, raiseType("TypeError", "must be real number")
			}
			return fn(a, b), nil
		})
	}

	attrs := map[string]any{
		"pi":  math.Pi,
		"e":   math.E,
		"tau": 2 * math.Pi,
		"inf": math.Inf(1),
		"nan": math.NaN(),

		"sqrt":    float1("sqrt", math.Sqrt),
		"exp":     float1("exp", math.Exp),
		"log2":    float1("log2", math.Log2),
		"log10":   float1("log10", math.Log10),
		"sin":     float1("sin", math.Sin),
		"cos":     float1("cos", math.Cos),
		"tan":     float1("tan", math.Tan),
		"asin":    float1("asin", math.Asin),
		"acos":    float1("acos", math.Acos),
		"atan":    float1("atan", math.Atan),
		"sinh":    float1("sinh", math.Sinh),
		"cosh":    float1("cosh", math.Cosh),
		"tanh":    float1("tanh", math.Tanh),
		"fabs":    float1("fabs", math.Abs),
		"degrees": float1("degrees", func(f float64) float64 { return f * 180 / math.Pi }),
		"radians": float1("radians", func(f float64) float64 { return f * math.Pi / 180 }),
		"atan2":   float2("atan2", math.Atan2),
		"hypot":   float2("hypot", math.Hypot),
		"fmod":    float2("fmod", math.Mod),

		"log": builtin("log", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := between("log", args, 1, 2); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			if f <= 0 {
				return nil, raiseType("ValueError", "math domain error")
			}
			if len(args) == 2 {
				base, ok := asFloat(args[1])
				if !ok || base <= 0 || base == 1 {
					return nil, raiseType("ValueError", "math domain error")
				}
				return math.Log(f) / math.Log(base), nil
			}
			return math.Log(f), nil
		}),
		"floor": builtin("floor", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("floor", args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			return int64(math.Floor(f)), nil
		}),
		"ceil": builtin("ceil", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("ceil", args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			return int64(math.Ceil(f)), nil
		}),
		"trunc": builtin("trunc", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("trunc", args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			return int64(math.Trunc(f)), nil
		}),
		"pow": builtin("pow", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("pow", args, 2); err != nil {
				return nil, err
			}
			a, aok := asFloat(args[0])
			b, bok := asFloat(args[1])
			if !aok || !bok {
				return nil, raiseType("TypeError", "must be real number")
			}
			return math.Pow(a, b), nil
		}),
		"factorial": builtin("factorial", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("factorial", args, 1); err != nil {
				return nil, err
			}
			n, ok := asInt(args[0])
			if !ok {
				return nil, raiseType("TypeError", "factorial() only accepts integral values")
			}
			if n < 0 {
				return nil, raiseType("ValueError", "factorial() not defined for negative values")
			}
			if n > 20 {
				return nil, raiseType("OverflowError", "factorial(%d) result too large", n)
			}
			out := int64(1)
			for i := int64(2); i <= n; i++ {
				out *= i
			}
			return out, nil
		}),
		"gcd": builtin("gcd", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("gcd", args, 2); err != nil {
				return nil, err
			}
			a, aok := asInt(args[0])
			b, bok := asInt(args[1])
			if !aok || !bok {
				return nil, raiseType("TypeError", "gcd() requires integers")
			}
			if a < 0 {
				a = -a
			}
			if b < 0 {
				b = -b
			}
			for b != 0 {
				a, b = b, a%b
			}
			return a, nil
		}),
		"isnan": builtin("isnan", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("isnan", args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			return math.IsNaN(f), nil
		}),
		"isinf": builtin("isinf", func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if err := exactly("isinf", args, 1); err != nil {
				return nil, err
			}
			f, ok := asFloat(args[0])
			if !ok {
				return nil, raiseType("TypeError", "must be real number, not %s", typeName(args[0]))
			}
			return math.IsInf(f, 0), nil
		}),
	}
	return NewModule("math", attrs)
}
