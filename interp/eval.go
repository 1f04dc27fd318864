package interp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pyrite-run/pyrite/policy"
)

// Default execution quotas. Exceeding either aborts evaluation with a
// deterministic error rather than a resource crash.
const (
	DefaultMaxOps             = 10_000_000
	DefaultMaxWhileIterations = 1_000_000
)

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithMaxOps caps the total number of evaluation steps per Run.
func WithMaxOps(n int64) Option {
	return func(in *Interpreter) { in.maxOps = n }
}

// WithMaxWhileIterations caps iterations of any single while loop.
func WithMaxWhileIterations(n int64) Option {
	return func(in *Interpreter) { in.maxWhile = n }
}

// WithAuthorizedImports replaces the import allow-list.
func WithAuthorizedImports(patterns []string) Option {
	return func(in *Interpreter) { in.gate = policy.NewGate(patterns) }
}

// WithModules replaces the host module registry consulted by import
// statements.
func WithModules(reg *ModuleRegistry) Option {
	return func(in *Interpreter) { in.modules = reg }
}

// WithDenyList replaces the callable deny-list.
func WithDenyList(d *policy.DenyList) Option {
	return func(in *Interpreter) { in.deny = d }
}

// WithMaxLogBytes caps the captured print output per Run; zero means
// unlimited.
func WithMaxLogBytes(n int) Option {
	return func(in *Interpreter) { in.maxLogBytes = n }
}

// Interpreter is one evaluation session. The environment and tool
// table persist across Run calls; quotas reset on each Run.
//
// An Interpreter is not safe for concurrent use.
type Interpreter struct {
	env         *Env
	tools       *ToolTable
	gate        *policy.Gate
	deny        *policy.DenyList
	modules     *ModuleRegistry
	maxOps      int64
	maxWhile    int64
	maxLogBytes int
}

// New builds a session with the base builtins installed as static
// tools and no authorized imports.
func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		env:      NewEnv(),
		tools:    NewToolTable(),
		gate:     policy.NewGate(nil),
		deny:     policy.DefaultDenyList(),
		modules:  DefaultModules(),
		maxOps:   DefaultMaxOps,
		maxWhile: DefaultMaxWhileIterations,
	}
	for name, fn := range BaseTools() {
		in.tools.AddStatic(name, fn)
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Tools exposes the session tool table so callers can install static
// tools and designate the final-answer tool.
func (in *Interpreter) Tools() *ToolTable { return in.tools }

// SetVariable binds a name in the session environment. Binding a name
// claimed by a static tool is rejected.
func (in *Interpreter) SetVariable(name string, value any) error {
	if in.tools.IsStatic(name) {
		return &Error{
			Message: fmt.Sprintf("cannot assign to name '%s': it is a static tool", name),
			Node:    "assign",
			Err:     ErrForbiddenAccess,
		}
	}
	in.env.Set(name, value)
	return nil
}

// Variables returns a snapshot of the session environment.
func (in *Interpreter) Variables() map[string]any { return in.env.Export() }

// RunResult is the outcome of one top-level submission.
type RunResult struct {
	Output        any
	Logs          string
	IsFinalAnswer bool
}

// Run parses and evaluates src. Output is the value of the last
// expression statement, or the final-answer payload when the
// designated final-answer tool was called. On error the returned
// result still carries the log captured so far.
func (in *Interpreter) Run(src string) (*RunResult, error) {
	ev := &evaluator{in: in}
	stmts, err := Parse(src)
	if err != nil {
		return &RunResult{}, err
	}
	var lastValue any
	for _, stmt := range stmts {
		ctrl, err := ev.execStmt(stmt, in.env)
		if err != nil {
			if final, ok := finalAnswerFrom(err); ok {
				return &RunResult{Output: final, Logs: ev.logText(), IsFinalAnswer: true}, nil
			}
			return &RunResult{Logs: ev.logText()}, err
		}
		if ctrl != ctrlNone {
			return &RunResult{Logs: ev.logText()}, &Error{
				Message: fmt.Sprintf("'%s' outside loop or function", ctrl),
				Node:    stmt.Kind(),
				Line:    stmt.Pos(),
				Err:     ErrUnsupported,
			}
		}
		if _, ok := stmt.(*ExprStmt); ok {
			lastValue = ev.lastExpr
		}
	}
	return &RunResult{Output: lastValue, Logs: ev.logText()}, nil
}

// control is the non-local signal a statement can return.
type control int

const (
	ctrlNone control = iota
	ctrlBreak
	ctrlContinue
	ctrlReturn
)

func (c control) String() string {
	switch c {
	case ctrlBreak:
		return "break"
	case ctrlContinue:
		return "continue"
	case ctrlReturn:
		return "return"
	}
	return "none"
}

// frame tracks the receiver of the method currently executing, for
// super().
type frame struct {
	self  *Instance
	class *Class
}

// evaluator carries the per-Run state: quota counters, the print log,
// return plumbing and the method call stack.
type evaluator struct {
	in         *Interpreter
	ops        int64
	logs       strings.Builder
	logClipped bool
	retValue any
	lastExpr any
	frames   []frame
	// raisedStack holds the exceptions whose handlers are currently
	// executing, for bare raise.
	raisedStack []*Instance
	// classStack records name bindings while a class body runs.
	classStack []map[string]any
}

// step counts one evaluation step against the session quota.
func (ev *evaluator) step(node Node) error {
	ev.ops++
	if ev.in.maxOps > 0 && ev.ops > ev.in.maxOps {
		return &Error{
			Message: fmt.Sprintf("maximum number of %d operations exceeded", ev.in.maxOps),
			Node:    node.Kind(),
			Line:    node.Pos(),
			Err:     ErrQuotaExceeded,
		}
	}
	return nil
}

func (ev *evaluator) printText(text string) {
	if ev.in.maxLogBytes > 0 && ev.logs.Len() >= ev.in.maxLogBytes {
		ev.logClipped = true
		return
	}
	ev.logs.WriteString(text)
}

func (ev *evaluator) logText() string {
	if ev.logClipped {
		return ev.logs.String() + "...(output truncated)\n"
	}
	return ev.logs.String()
}

// finalAnswerSignal unwinds to the top of Run. It is deliberately not
// catchable by user except clauses; finally blocks still run.
type finalAnswerSignal struct {
	value any
}

func (s *finalAnswerSignal) Error() string { return "final answer" }

func finalAnswerFrom(err error) (any, bool) {
	if s, ok := err.(*finalAnswerSignal); ok {
		return s.value, true
	}
	return nil, false
}

// resolveName implements free-name lookup: environment, static tools,
// custom tools, built-in exception types, then an undefined-name error
// with a closest-match hint.
func (ev *evaluator) resolveName(name string, env *Env, node Node) (any, error) {
	if v, ok := env.Get(name); ok {
		return v, nil
	}
	if v, ok := ev.in.tools.Static(name); ok {
		return v, nil
	}
	if v, ok := ev.in.tools.Custom(name); ok {
		return v, nil
	}
	if cls, ok := exceptionClass(name); ok {
		return cls, nil
	}
	msg := fmt.Sprintf("name '%s' is not defined", name)
	if hint := closestName(name, ev.knownNames(env)); hint != "" {
		msg += fmt.Sprintf(". Did you mean '%s'?", hint)
	}
	return nil, &Error{
		Message: msg,
		Node:    node.Kind(),
		Line:    node.Pos(),
		Err:     ErrUndefinedName,
	}
}

func (ev *evaluator) knownNames(env *Env) []string {
	names := env.Names()
	names = append(names, ev.in.tools.Names()...)
	names = append(names, exceptionNames()...)
	sort.Strings(names)
	return names
}

// closestName returns the known name with the smallest edit distance,
// when close enough to be a plausible typo.
func closestName(name string, known []string) string {
	best := ""
	bestDist := len(name)/2 + 1
	for _, candidate := range known {
		d := editDistance(name, candidate)
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(min(cur[j-1]+1, prev[j]+1), prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// raiseType builds a Raised error from a built-in exception class and
// message, used wherever evaluated code would see a runtime exception.
func raiseType(className, format string, args ...any) error {
	cls, ok := exceptionClass(className)
	if !ok {
		cls = exceptionBase()
	}
	inst := newInstance(cls)
	inst.Attrs["args"] = Tuple{fmt.Sprintf(format, args...)}
	return &Raised{Value: inst}
}
