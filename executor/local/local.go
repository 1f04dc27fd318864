package local

import (
	"context"
	"fmt"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/interp"
	"github.com/pyrite-run/pyrite/tools"
)

// Option configures an Executor.
type Option func(*Executor)

// WithMaxOps caps the total number of evaluation steps per submission.
func WithMaxOps(n int64) Option {
	return func(e *Executor) { e.interpOpts = append(e.interpOpts, interp.WithMaxOps(n)) }
}

// WithMaxWhileIterations caps iterations of any single while loop.
func WithMaxWhileIterations(n int64) Option {
	return func(e *Executor) { e.interpOpts = append(e.interpOpts, interp.WithMaxWhileIterations(n)) }
}

// WithAuthorizedImports sets the import allow-list.
func WithAuthorizedImports(patterns []string) Option {
	return func(e *Executor) { e.interpOpts = append(e.interpOpts, interp.WithAuthorizedImports(patterns)) }
}

// WithModules sets the host module registry imports resolve against.
func WithModules(reg *interp.ModuleRegistry) Option {
	return func(e *Executor) { e.interpOpts = append(e.interpOpts, interp.WithModules(reg)) }
}

// WithMaxLogBytes caps captured print output per submission.
func WithMaxLogBytes(n int) Option {
	return func(e *Executor) { e.interpOpts = append(e.interpOpts, interp.WithMaxLogBytes(n)) }
}

// WithLogger sets an optional logger for session events.
func WithLogger(logger executor.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor runs submissions in-process against one evaluator session.
// Not safe for concurrent use.
type Executor struct {
	interpOpts []interp.Option
	interp     *interp.Interpreter
	logger     executor.Logger
	installed  map[string]bool
	// ctx is the context of the Execute call currently running, so
	// tool handlers installed at SendTools time see the right one.
	ctx context.Context
}

// New creates an in-process session with the final-answer tool
// installed.
func New(opts ...Option) *Executor {
	e := &Executor{
		logger:    executor.NopLogger{},
		installed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.interp = interp.New(e.interpOpts...)
	e.install(tools.FinalAnswer())
	e.interp.Tools().SetFinalAnswer(tools.FinalAnswerName)
	return e
}

// SendTools installs tool handlers as static tools. A tool already
// installed under the same name is skipped.
func (e *Executor) SendTools(ctx context.Context, defs []tools.Tool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, def := range defs {
		if e.installed[def.Name] {
			continue
		}
		if err := def.Validate(); err != nil {
			return err
		}
		if def.Handler == nil {
			return fmt.Errorf("%w: tool %s has no handler for in-process execution",
				executor.ErrConfiguration, def.Name)
		}
		e.install(def)
		e.logger.Logf("installed tool %s", def.Name)
	}
	return nil
}

func (e *Executor) install(def tools.Tool) {
	handler := def.Handler
	bound := def // copy for the closure
	e.interp.Tools().AddStatic(def.Name, interp.NewHostTool(def.Name,
		func(args []any, kwargs map[string]any) (any, error) {
			named, err := bound.BindArgs(args, kwargs)
			if err != nil {
				return nil, err
			}
			ctx := e.ctx
			if ctx == nil {
				ctx = context.Background()
			}
			return handler(ctx, named)
		}))
	e.installed[def.Name] = true
}

// SendVariables merges a snapshot into the session environment.
func (e *Executor) SendVariables(ctx context.Context, vars map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for name, value := range vars {
		if err := e.interp.SetVariable(name, value); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs one submission. The returned Result carries the
// captured log even when the submission fails.
func (e *Executor) Execute(ctx context.Context, code string) (executor.Result, error) {
	if err := ctx.Err(); err != nil {
		return executor.Result{}, err
	}
	e.ctx = ctx
	defer func() { e.ctx = nil }()

	res, err := e.interp.Run(code)
	out := executor.Result{
		Output:        res.Output,
		Logs:          res.Logs,
		IsFinalAnswer: res.IsFinalAnswer,
	}
	if err != nil {
		return out, fmt.Errorf("%w: %w", executor.ErrCodeExecution, err)
	}
	return out, nil
}

// InstallPackages is a no-op in-process: tool handlers are compiled Go
// and carry their own dependencies.
func (e *Executor) InstallPackages(ctx context.Context, packages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(packages) > 0 {
		e.logger.Logf("ignoring package install request (in-process backend): %v", packages)
	}
	return nil
}

// Cleanup releases nothing; the session owns no external resources.
// Idempotent.
func (e *Executor) Cleanup() error { return nil }

// Variables returns a snapshot of the session environment, for
// orchestrators that persist state between steps.
func (e *Executor) Variables() map[string]any { return e.interp.Variables() }

var _ executor.Executor = (*Executor)(nil)
