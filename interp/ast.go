package interp

// The syntax tree is a closed union: every node is one of the structs
// below, and the evaluator dispatches with an exhaustive type switch.
// Anything the parser cannot shape into these nodes is a hard error,
// never a silent no-op.

// Node is the common interface of expressions and statements.
type Node interface {
	// Kind names the node for error reporting ("call", "while", ...).
	Kind() string
	// Pos returns the 1-based source line of the node.
	Pos() int
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

type pos struct{ Line int }

func (p pos) Pos() int { return p.Line }

// ---- expressions ----

// NameExpr references a variable, tool, or builtin by name.
type NameExpr struct {
	pos
	Name string
}

// IntLit is an integer literal.
type IntLit struct {
	pos
	Value int64
}

// FloatLit is a floating point literal.
type FloatLit struct {
	pos
	Value float64
}

// StringLit is a string literal.
type StringLit struct {
	pos
	Value string
}

// BoolLit is True or False.
type BoolLit struct {
	pos
	Value bool
}

// NoneLit is None.
type NoneLit struct{ pos }

// FStringExpr is a formatted string: literal segments interleaved with
// embedded expressions.
type FStringExpr struct {
	pos
	Parts []FStringPart
}

// FStringPart is one segment of an f-string. Exactly one of Literal or
// Value is meaningful; Value is nil for literal segments.
type FStringPart struct {
	Literal string
	Value   Expr
	// Conversion is "r" or "s" when an explicit !r / !s was given.
	Conversion string
	// Format is the literal format spec after a colon, if any.
	Format string
}

// ListExpr is a list display.
type ListExpr struct {
	pos
	Elts []Expr
}

// TupleExpr is a tuple display (parenthesized or bare).
type TupleExpr struct {
	pos
	Elts []Expr
}

// SetExpr is a set display.
type SetExpr struct {
	pos
	Elts []Expr
}

// DictExpr is a dict display. A nil key marks a **mapping unpacking.
type DictExpr struct {
	pos
	Keys   []Expr
	Values []Expr
}

// StarredExpr marks *x in call arguments and assignment targets.
type StarredExpr struct {
	pos
	Value Expr
}

// UnaryExpr applies -, +, ~ or not.
type UnaryExpr struct {
	pos
	Op      string
	Operand Expr
}

// BinaryExpr applies an arithmetic or bitwise operator.
type BinaryExpr struct {
	pos
	Op          string
	Left, Right Expr
}

// BoolOpExpr is an and/or chain with short-circuit evaluation.
type BoolOpExpr struct {
	pos
	Op     string // "and" | "or"
	Values []Expr
}

// CompareExpr is a chained comparison: Left op[0] Comparators[0] op[1]
// Comparators[1] ... Each pairwise comparison must hold; evaluation
// stops at the first false with nothing past it evaluated.
type CompareExpr struct {
	pos
	Left        Expr
	Ops         []string
	Comparators []Expr
}

// CondExpr is the ternary `a if cond else b`.
type CondExpr struct {
	pos
	Cond, Then, Else Expr
}

// CallExpr is a call with positional, starred, keyword and **kwargs
// arguments. A Keyword with empty Name is a **mapping unpacking.
type CallExpr struct {
	pos
	Func     Expr
	Args     []Expr
	Keywords []Keyword
	// Src is the call's source fragment for error messages.
	Src string
}

// Keyword is one keyword argument in a call.
type Keyword struct {
	Name  string
	Value Expr
}

// AttrExpr is attribute access `value.attr`.
type AttrExpr struct {
	pos
	Value Expr
	Attr  string
}

// SubscriptExpr is `value[index]`.
type SubscriptExpr struct {
	pos
	Value Expr
	Index Expr
}

// SliceExpr is the `a:b:c` form inside a subscript. Any bound may be
// nil.
type SliceExpr struct {
	pos
	Low, High, Step Expr
}

// LambdaExpr is an anonymous function.
type LambdaExpr struct {
	pos
	Params ParamSpec
	Body   Expr
}

// CompExpr is a list/set/dict/generator comprehension. For dict
// comprehensions Value is non-nil and Elt is the key expression.
type CompExpr struct {
	pos
	Form       string // "list" | "set" | "dict" | "generator"
	Elt        Expr
	Value      Expr
	Generators []CompFor
}

// CompFor is one `for target in iter [if cond]*` clause.
type CompFor struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
}

func (*NameExpr) exprNode()      {}
func (*IntLit) exprNode()        {}
func (*FloatLit) exprNode()      {}
func (*StringLit) exprNode()     {}
func (*BoolLit) exprNode()       {}
func (*NoneLit) exprNode()       {}
func (*FStringExpr) exprNode()   {}
func (*ListExpr) exprNode()      {}
func (*TupleExpr) exprNode()     {}
func (*SetExpr) exprNode()       {}
func (*DictExpr) exprNode()      {}
func (*StarredExpr) exprNode()   {}
func (*UnaryExpr) exprNode()     {}
func (*BinaryExpr) exprNode()    {}
func (*BoolOpExpr) exprNode()    {}
func (*CompareExpr) exprNode()   {}
func (*CondExpr) exprNode()      {}
func (*CallExpr) exprNode()      {}
func (*AttrExpr) exprNode()      {}
func (*SubscriptExpr) exprNode() {}
func (*SliceExpr) exprNode()     {}
func (*LambdaExpr) exprNode()    {}
func (*CompExpr) exprNode()      {}

func (*NameExpr) Kind() string      { return "name" }
func (*IntLit) Kind() string        { return "int" }
func (*FloatLit) Kind() string      { return "float" }
func (*StringLit) Kind() string     { return "str" }
func (*BoolLit) Kind() string       { return "bool" }
func (*NoneLit) Kind() string       { return "none" }
func (*FStringExpr) Kind() string   { return "fstring" }
func (*ListExpr) Kind() string      { return "list" }
func (*TupleExpr) Kind() string     { return "tuple" }
func (*SetExpr) Kind() string       { return "set" }
func (*DictExpr) Kind() string      { return "dict" }
func (*StarredExpr) Kind() string   { return "starred" }
func (*UnaryExpr) Kind() string     { return "unaryop" }
func (*BinaryExpr) Kind() string    { return "binop" }
func (*BoolOpExpr) Kind() string    { return "boolop" }
func (*CompareExpr) Kind() string   { return "compare" }
func (*CondExpr) Kind() string      { return "ifexp" }
func (*CallExpr) Kind() string      { return "call" }
func (*AttrExpr) Kind() string      { return "attribute" }
func (*SubscriptExpr) Kind() string { return "subscript" }
func (*SliceExpr) Kind() string     { return "slice" }
func (*LambdaExpr) Kind() string    { return "lambda" }
func (*CompExpr) Kind() string      { return "comprehension" }

// ---- statements ----

// ExprStmt is a bare expression statement.
type ExprStmt struct {
	pos
	Value Expr
}

// AssignStmt is `target = value` (possibly chained `a = b = value`).
type AssignStmt struct {
	pos
	Targets []Expr
	Value   Expr
}

// AugAssignStmt is `target op= value`.
type AugAssignStmt struct {
	pos
	Target Expr
	Op     string // operator without the trailing "="
	Value  Expr
}

// IfStmt covers if/elif/else; elif chains nest in Else.
type IfStmt struct {
	pos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// ForStmt is `for target in iter: body [else: orelse]`.
type ForStmt struct {
	pos
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

// WhileStmt is `while cond: body [else: orelse]`.
type WhileStmt struct {
	pos
	Cond Expr
	Body []Stmt
	Else []Stmt
}

// BreakStmt breaks the innermost loop.
type BreakStmt struct{ pos }

// ContinueStmt continues the innermost loop.
type ContinueStmt struct{ pos }

// PassStmt does nothing.
type PassStmt struct{ pos }

// ReturnStmt returns from the innermost function.
type ReturnStmt struct {
	pos
	Value Expr // nil for bare return
}

// RaiseStmt raises an exception. Exc nil means bare re-raise.
type RaiseStmt struct {
	pos
	Exc   Expr
	Cause Expr // `raise X from Y`, evaluated then discarded
}

// AssertStmt is `assert cond[, msg]`.
type AssertStmt struct {
	pos
	Cond Expr
	Msg  Expr
}

// TryStmt is try/except/else/finally.
type TryStmt struct {
	pos
	Body     []Stmt
	Handlers []ExceptClause
	Else     []Stmt
	Finally  []Stmt
}

// ExceptClause is one except handler. Type nil catches everything.
type ExceptClause struct {
	Type Expr
	Name string
	Body []Stmt
}

// WithStmt is `with expr [as name]: body` (single item).
type WithStmt struct {
	pos
	Expr Expr
	Name string
	Body []Stmt
}

// FuncDefStmt defines a named function.
type FuncDefStmt struct {
	pos
	Name   string
	Params ParamSpec
	Body   []Stmt
}

// ParamSpec describes a parameter list.
type ParamSpec struct {
	Names    []string
	Defaults []Expr // aligned to the tail of Names
	VarArg   string // *args name, "" if absent
	KwArg    string // **kwargs name, "" if absent
}

// ClassDefStmt defines a class.
type ClassDefStmt struct {
	pos
	Name  string
	Bases []Expr
	Body  []Stmt
}

// ImportStmt is `import a.b [as c]` with one or more targets.
type ImportStmt struct {
	pos
	Names []ImportName
}

// ImportName is one dotted import target.
type ImportName struct {
	Path  string
	Alias string
}

// ImportFromStmt is `from a.b import c [as d], e`.
type ImportFromStmt struct {
	pos
	Module string
	Names  []ImportName
}

// DeleteStmt is `del target[, target]`.
type DeleteStmt struct {
	pos
	Targets []Expr
}

func (*ExprStmt) stmtNode()     {}
func (*AssignStmt) stmtNode()   {}
func (*AugAssignStmt) stmtNode(){}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*PassStmt) stmtNode()     {}
func (*ReturnStmt) stmtNode()   {}
func (*RaiseStmt) stmtNode()    {}
func (*AssertStmt) stmtNode()   {}
func (*TryStmt) stmtNode()      {}
func (*WithStmt) stmtNode()     {}
func (*FuncDefStmt) stmtNode()  {}
func (*ClassDefStmt) stmtNode() {}
func (*ImportStmt) stmtNode()   {}
func (*ImportFromStmt) stmtNode() {}
func (*DeleteStmt) stmtNode()   {}

func (*ExprStmt) Kind() string       { return "expr" }
func (*AssignStmt) Kind() string     { return "assign" }
func (*AugAssignStmt) Kind() string  { return "augassign" }
func (*IfStmt) Kind() string         { return "if" }
func (*ForStmt) Kind() string        { return "for" }
func (*WhileStmt) Kind() string      { return "while" }
func (*BreakStmt) Kind() string      { return "break" }
func (*ContinueStmt) Kind() string   { return "continue" }
func (*PassStmt) Kind() string       { return "pass" }
func (*ReturnStmt) Kind() string     { return "return" }
func (*RaiseStmt) Kind() string      { return "raise" }
func (*AssertStmt) Kind() string     { return "assert" }
func (*TryStmt) Kind() string        { return "try" }
func (*WithStmt) Kind() string       { return "with" }
func (*FuncDefStmt) Kind() string    { return "functiondef" }
func (*ClassDefStmt) Kind() string   { return "classdef" }
func (*ImportStmt) Kind() string     { return "import" }
func (*ImportFromStmt) Kind() string { return "importfrom" }
func (*DeleteStmt) Kind() string     { return "delete" }
