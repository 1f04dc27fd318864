package interp

import (
	"errors"
	"strings"
	"testing"
)

func newTestInterp(t *testing.T, opts ...Option) *Interpreter {
	t.Helper()
	in := New(opts...)
	in.Tools().AddStatic("final_answer", &Builtin{
		Name: "final_answer",
		Fn: func(_ *evaluator, args []any, _ map[string]any) (any, error) {
			if len(args) != 1 {
				return nil, raiseType("TypeError", "final_answer() takes exactly 1 argument")
			}
			return args[0], nil
		},
	})
	in.Tools().SetFinalAnswer("final_answer")
	return in
}

func mustRun(t *testing.T, in *Interpreter, src string) *RunResult {
	t.Helper()
	res, err := in.Run(src)
	if err != nil {
		t.Fatalf("Run(%q) failed: %v", src, err)
	}
	return res
}

func TestRunExpressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"arithmetic", "1 + 2 * 3", int64(7)},
		{"float division", "7 / 2", 3.5},
		{"floor division", "7 // 2", int64(3)},
		{"negative floor division", "-7 // 2", int64(-4)},
		{"modulo sign of divisor", "-7 % 3", int64(2)},
		{"power", "2 ** 10", int64(1024)},
		{"power right assoc", "2 ** 3 ** 2", int64(512)},
		{"unary on power", "-2 ** 2", int64(-4)},
		{"string concat", `"foo" + "bar"`, "foobar"},
		{"string repeat", `"ab" * 3`, "ababab"},
		{"chained comparison true", "1 < 2 < 3", true},
		{"chained comparison false", "1 < 3 < 2", false},
		{"boolean and value", "0 or 'fallback'", "fallback"},
		{"ternary", "'yes' if 2 > 1 else 'no'", "yes"},
		{"in operator", "2 in [1, 2, 3]", true},
		{"not in", "'x' not in 'abc'", true},
		{"bitwise", "(12 & 10) | 1", int64(9)},
		{"shift", "1 << 10", int64(1024)},
		{"f-string", `f"{21 * 2}"`, "42"},
		{"f-string format", `f"{3.14159:.2f}"`, "3.14"},
		{"slice", "[1, 2, 3, 4, 5][1:4][0]", int64(2)},
		{"negative index", "[1, 2, 3][-1]", int64(3)},
		{"string slice reverse", `"hello"[::-1]`, "olleh"},
		{"dict subscript", `{"a": 1, "b": 2}["b"]`, int64(2)},
		{"len builtin", `len("hello")`, int64(5)},
		{"sum builtin", "sum([1, 2, 3])", int64(6)},
		{"min multiple args", "min(3, 1, 2)", int64(1)},
		{"str method", `" padded ".strip()`, "padded"},
		{"format method", `"{}-{}".format(1, "a")`, "1-a"},
		{"lambda call", "(lambda a, b=10: a + b)(5)", int64(15)},
		{"tuple index numeric equality", "{1: 'x'}[1.0]", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInterp(t)
			res := mustRun(t, in, tt.src)
			if !equal(res.Output, tt.want) {
				t.Errorf("output = %v (%T), want %v (%T)", res.Output, res.Output, tt.want, tt.want)
			}
		})
	}
}

func TestRunStatements(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{
			"for loop accumulation",
			"total = 0\nfor i in range(5):\n    total += i\ntotal",
			int64(10),
		},
		{
			"while with break",
			"i = 0\nwhile True:\n    i += 1\n    if i == 7:\n        break\ni",
			int64(7),
		},
		{
			"for else runs without break",
			"hit = 'no'\nfor i in range(3):\n    pass\nelse:\n    hit = 'yes'\nhit",
			"yes",
		},
		{
			"for else skipped on break",
			"hit = 'no'\nfor i in range(3):\n    break\nelse:\n    hit = 'yes'\nhit",
			"no",
		},
		{
			"tuple unpacking",
			"a, b = 1, 2\na + b",
			int64(3),
		},
		{
			"starred unpacking",
			"a, *rest, z = [1, 2, 3, 4]\nlen(rest) + a + z",
			int64(7),
		},
		{
			"nested function",
			"def outer(n):\n    def inner(m):\n        return m * 2\n    return inner(n) + 1\nouter(5)",
			int64(11),
		},
		{
			"default arguments",
			"def greet(name, punct='!'):\n    return name + punct\ngreet('hi')",
			"hi!",
		},
		{
			"varargs and kwargs",
			"def f(*args, **kw):\n    return len(args) + len(kw)\nf(1, 2, 3, a=1, b=2)",
			int64(5),
		},
		{
			"list comprehension",
			"[x * x for x in range(4)][3]",
			int64(9),
		},
		{
			"comprehension with filter",
			"len([x for x in range(10) if x % 2 == 0])",
			int64(5),
		},
		{
			"dict comprehension",
			"{x: x * 2 for x in range(3)}[2]",
			int64(4),
		},
		{
			"nested comprehension",
			"len([(a, b) for a in range(3) for b in range(2)])",
			int64(6),
		},
		{
			"augmented list extend aliases",
			"a = [1]\nb = a\na += [2]\nlen(b)",
			int64(2),
		},
		{
			"del statement",
			"d = {'a': 1, 'b': 2}\ndel d['a']\nlen(d)",
			int64(1),
		},
		{
			"dict insertion order",
			"d = {}\nd['z'] = 1\nd['a'] = 2\nlist(d.keys())[0]",
			"z",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInterp(t)
			res := mustRun(t, in, tt.src)
			if !equal(res.Output, tt.want) {
				t.Errorf("output = %v (%T), want %v (%T)", res.Output, res.Output, tt.want, tt.want)
			}
		})
	}
}

func TestFinalAnswerUnwindsToTop(t *testing.T) {
	in := newTestInterp(t)
	res := mustRun(t, in, "x = 1\nfor i in range(3):\n    x += i\nfinal_answer(x)")
	if !res.IsFinalAnswer {
		t.Fatal("IsFinalAnswer = false, want true")
	}
	if res.Output != int64(4) {
		t.Errorf("output = %v, want 4", res.Output)
	}
}

func TestFinalAnswerBypassesHandlersButRunsFinally(t *testing.T) {
	in := newTestInterp(t)
	src := `try:
    final_answer(42)
except Exception:
    print("caught")
finally:
    print("cleanup")`
	res := mustRun(t, in, src)
	if !res.IsFinalAnswer {
		t.Fatal("IsFinalAnswer = false, want true")
	}
	if res.Output != int64(42) {
		t.Errorf("output = %v, want 42", res.Output)
	}
	if strings.Contains(res.Logs, "caught") {
		t.Error("except clause caught the final-answer signal")
	}
	if !strings.Contains(res.Logs, "cleanup") {
		t.Error("finally block did not run")
	}
}

func TestPrintGoesToLogs(t *testing.T) {
	in := newTestInterp(t)
	res := mustRun(t, in, "print('hello', 'world')\nprint(1 + 1)")
	want := "hello world\n2\n"
	if res.Logs != want {
		t.Errorf("logs = %q, want %q", res.Logs, want)
	}
}

func TestLogsSurviveErrors(t *testing.T) {
	in := newTestInterp(t)
	res, err := in.Run("print('before')\nundefined_name_here")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(res.Logs, "before") {
		t.Errorf("logs lost on error: %q", res.Logs)
	}
}

func TestWhileQuotaExactIterations(t *testing.T) {
	const ceiling = 5
	in := newTestInterp(t, WithMaxWhileIterations(ceiling))
	_, err := in.Run("count = 0\nwhile True:\n    count += 1")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want quota error", err)
	}
	// The body must have run exactly the ceiling number of times.
	if got := in.Variables()["count"]; got != int64(ceiling) {
		t.Errorf("count = %v, want %d", got, ceiling)
	}
}

func TestOperationQuota(t *testing.T) {
	in := newTestInterp(t, WithMaxOps(100))
	_, err := in.Run("for i in range(1000):\n    x = i * 2")
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want quota error", err)
	}
}

func TestStaticToolAssignmentRejected(t *testing.T) {
	in := newTestInterp(t)
	mustRun(t, in, "x = 1")
	before := in.Variables()

	_, err := in.Run("final_answer = 99")
	if !errors.Is(err, ErrForbiddenAccess) {
		t.Fatalf("err = %v, want forbidden access", err)
	}
	after := in.Variables()
	if len(after) != len(before) {
		t.Errorf("environment mutated on rejected assignment: %v", after)
	}
	if _, ok := after["final_answer"]; ok {
		t.Error("static tool name leaked into environment")
	}
}

func TestUnauthorizedImport(t *testing.T) {
	in := newTestInterp(t, WithAuthorizedImports([]string{"math"}))
	_, err := in.Run("import os")
	if !errors.Is(err, ErrUnauthorizedImport) {
		t.Fatalf("err = %v, want unauthorized import", err)
	}
	if !strings.Contains(err.Error(), "os") {
		t.Errorf("error message does not name the module: %v", err)
	}
}

func TestAuthorizedImportMath(t *testing.T) {
	in := newTestInterp(t, WithAuthorizedImports([]string{"math"}))
	res := mustRun(t, in, "import math\nmath.floor(math.sqrt(50))")
	if res.Output != int64(7) {
		t.Errorf("output = %v, want 7", res.Output)
	}
}

func TestFromImport(t *testing.T) {
	in := newTestInterp(t, WithAuthorizedImports([]string{"math"}))
	res := mustRun(t, in, "from math import sqrt, pi\nsqrt(pi * 0) + sqrt(4)")
	if res.Output != 2.0 {
		t.Errorf("output = %v, want 2.0", res.Output)
	}
}

func TestImportAlias(t *testing.T) {
	in := newTestInterp(t, WithAuthorizedImports([]string{"math"}))
	res := mustRun(t, in, "import math as m\nm.ceil(1.2)")
	if res.Output != int64(2) {
		t.Errorf("output = %v, want 2", res.Output)
	}
}

func TestForbiddenDunderAccess(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Run("x = 1\nx.__class__")
	if !errors.Is(err, ErrForbiddenAccess) {
		t.Fatalf("err = %v, want forbidden access", err)
	}
}

func TestInterpreterErrorsNotCatchable(t *testing.T) {
	in := newTestInterp(t, WithAuthorizedImports(nil))
	_, err := in.Run("try:\n    import os\nexcept Exception:\n    pass")
	if !errors.Is(err, ErrUnauthorizedImport) {
		t.Fatalf("unauthorized import was swallowed by except: %v", err)
	}
}

func TestTryExceptElseFinally(t *testing.T) {
	in := newTestInterp(t)
	src := `log = []
try:
    raise ValueError("boom")
except KeyError:
    log.append("wrong")
except ValueError as e:
    log.append(str(e))
else:
    log.append("else")
finally:
    log.append("finally")
",".join(log)`
	res := mustRun(t, in, src)
	if res.Output != "boom,finally" {
		t.Errorf("output = %v, want boom,finally", res.Output)
	}
}

func TestUnmatchedExceptionPropagates(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Run("try:\n    raise ValueError('v')\nexcept KeyError:\n    pass")
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("err = %v, want Raised", err)
	}
	if raised.Class().Name != "ValueError" {
		t.Errorf("class = %s, want ValueError", raised.Class().Name)
	}
}

func TestBareRaiseReraises(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Run("try:\n    raise KeyError('k')\nexcept KeyError:\n    raise")
	var raised *Raised
	if !errors.As(err, &raised) {
		t.Fatalf("err = %v, want Raised", err)
	}
	if raised.Class().Name != "KeyError" {
		t.Errorf("class = %s, want KeyError", raised.Class().Name)
	}
}

func TestRuntimeErrorsCatchable(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"zero division", "try:\n    x = 1 / 0\nexcept ZeroDivisionError:\n    x = 'caught'\nx", "caught"},
		{"key error", "try:\n    x = {}['missing']\nexcept KeyError:\n    x = 'caught'\nx", "caught"},
		{"index error", "try:\n    x = [][0]\nexcept IndexError:\n    x = 'caught'\nx", "caught"},
		{"type error", "try:\n    x = 'a' + 1\nexcept TypeError:\n    x = 'caught'\nx", "caught"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInterp(t)
			res := mustRun(t, in, tt.src)
			if !equal(res.Output, tt.want) {
				t.Errorf("output = %v, want %v", res.Output, tt.want)
			}
		})
	}
}

func TestClosureSnapshotSemantics(t *testing.T) {
	in := newTestInterp(t)
	src := `y = 1
def f():
    return y
y = 2
f()`
	res := mustRun(t, in, src)
	if res.Output != int64(1) {
		t.Errorf("output = %v, want definition-time value 1", res.Output)
	}
}

func TestComprehensionScopeDoesNotLeak(t *testing.T) {
	in := newTestInterp(t)
	mustRun(t, in, "squares = [n * n for n in range(3)]")
	if _, ok := in.Variables()["n"]; ok {
		t.Error("comprehension variable leaked into outer scope")
	}
}

func TestClassesAndInheritance(t *testing.T) {
	in := newTestInterp(t)
	src := `class Animal:
    def __init__(self, name):
        self.name = name
    def speak(self):
        return self.name + " makes a sound"

class Dog(Animal):
    def __init__(self, name):
        super().__init__(name)
        self.kind = "dog"
    def speak(self):
        return self.name + " barks"

d = Dog("Rex")
d.speak() + "/" + d.kind`
	res := mustRun(t, in, src)
	if res.Output != "Rex barks/dog" {
		t.Errorf("output = %v", res.Output)
	}
}

func TestUserExceptionSubclass(t *testing.T) {
	in := newTestInterp(t)
	src := `class AppError(ValueError):
    pass
try:
    raise AppError("custom")
except ValueError as e:
    result = str(e)
result`
	res := mustRun(t, in, src)
	if res.Output != "custom" {
		t.Errorf("output = %v, want custom", res.Output)
	}
}

func TestRaiseClassWithoutCall(t *testing.T) {
	in := newTestInterp(t)
	src := `try:
    raise ValueError
except ValueError as e:
    result = "caught:" + str(e)
result`
	res := mustRun(t, in, src)
	if res.Output != "caught:" {
		t.Errorf("output = %v, want caught:", res.Output)
	}
}

func TestMinMaxKeepFirstOfEqualKeys(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"max ties", `max(["aa", "bb"], key=len)`, "aa"},
		{"min ties", `min(["aa", "bb"], key=len)`, "aa"},
		{"max strict", `max([1, 3, 2])`, int64(3)},
		{"min strict", `min([3, 1, 2])`, int64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := newTestInterp(t)
			res := mustRun(t, in, tt.src)
			if res.Output != tt.want {
				t.Errorf("output = %v, want %v", res.Output, tt.want)
			}
		})
	}
}

func TestCallableInstance(t *testing.T) {
	in := newTestInterp(t)
	src := `class Doubler:
    def __call__(self, n):
        return n * 2
d = Doubler()
d(21)`
	res := mustRun(t, in, src)
	if res.Output != int64(42) {
		t.Errorf("output = %v, want 42", res.Output)
	}
}

func TestDidYouMeanSuggestion(t *testing.T) {
	in := newTestInterp(t)
	mustRun(t, in, "counter = 10")
	_, err := in.Run("countr")
	if !errors.Is(err, ErrUndefinedName) {
		t.Fatalf("err = %v, want undefined name", err)
	}
	if !strings.Contains(err.Error(), "counter") {
		t.Errorf("no suggestion in %q", err.Error())
	}
}

func TestSendVariablesAndPersistence(t *testing.T) {
	in := newTestInterp(t)
	if err := in.SetVariable("preset", int64(100)); err != nil {
		t.Fatal(err)
	}
	mustRun(t, in, "derived = preset + 1")
	res := mustRun(t, in, "derived * 2")
	if res.Output != int64(202) {
		t.Errorf("output = %v, want 202", res.Output)
	}
	if err := in.SetVariable("final_answer", 1); err == nil {
		t.Error("SetVariable allowed shadowing a static tool")
	}
}

func TestGeneratorsAreIterable(t *testing.T) {
	in := newTestInterp(t)
	res := mustRun(t, in, "g = (x * 2 for x in range(3))\nsum(g)")
	if res.Output != int64(6) {
		t.Errorf("output = %v, want 6", res.Output)
	}
}

func TestZipEnumerate(t *testing.T) {
	in := newTestInterp(t)
	src := `pairs = list(zip([1, 2, 3], "ab"))
first = pairs[0]
idx = [i for i, v in enumerate("xyz", 1)]
len(pairs) + first[0] + idx[-1]`
	res := mustRun(t, in, src)
	// 2 pairs + 1 + 3
	if res.Output != int64(6) {
		t.Errorf("output = %v, want 6", res.Output)
	}
}

func TestSortedWithKey(t *testing.T) {
	in := newTestInterp(t)
	res := mustRun(t, in, "sorted(['bb', 'a', 'ccc'], key=len, reverse=True)[0]")
	if res.Output != "ccc" {
		t.Errorf("output = %v, want ccc", res.Output)
	}
}

func TestLogTruncation(t *testing.T) {
	in := newTestInterp(t, WithMaxLogBytes(20))
	res := mustRun(t, in, "for i in range(100):\n    print('spam spam spam')")
	if !strings.Contains(res.Logs, "truncated") {
		t.Errorf("logs not truncated: %d bytes", len(res.Logs))
	}
}

func TestMaxOpsMessageDeterministic(t *testing.T) {
	in := newTestInterp(t, WithMaxOps(50))
	_, err1 := in.Run("while True:\n    pass")
	in2 := newTestInterp(t, WithMaxOps(50))
	_, err2 := in2.Run("while True:\n    pass")
	if err1 == nil || err2 == nil || err1.Error() != err2.Error() {
		t.Errorf("quota messages differ: %v vs %v", err1, err2)
	}
}

func TestUnsupportedConstruct(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Run("def g():\n    yield 1")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want unsupported", err)
	}
}
