package sandboxapi

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

// Config configures a sandbox SDK session.
type Config struct {
	// Client is the sandbox SDK client. Required.
	Client Client

	// Logger is an optional logger for session events.
	Logger executor.Logger
}

// Executor runs submissions through a sandbox SDK. Not safe for
// concurrent use.
type Executor struct {
	client Client
	logger executor.Logger

	sent  map[string]bool
	setup []string

	cleanupOnce sync.Once
	cleaned     bool
}

// New creates a sandbox SDK session.
func New(cfg Config) (*Executor, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("%w: client is required", executor.ErrConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = executor.NopLogger{}
	}
	return &Executor{
		client: cfg.Client,
		logger: logger,
		sent:   make(map[string]bool),
	}, nil
}

// SendTools queues tool sources to run in the sandbox ahead of the
// next Execute call. Tools already sent under the same name are
// skipped.
func (e *Executor) SendTools(ctx context.Context, defs []tools.Tool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fresh := make([]tools.Tool, 0, len(defs))
	for _, def := range defs {
		if e.sent[def.Name] {
			continue
		}
		fresh = append(fresh, def)
	}
	if len(fresh) == 0 {
		return nil
	}
	src, err := tools.RemoteSources(fresh)
	if err != nil {
		return err
	}
	for _, def := range fresh {
		e.sent[def.Name] = true
	}
	e.setup = append(e.setup, src)
	return nil
}

// SendVariables queues a variable snapshot to merge into sandbox
// state.
func (e *Executor) SendVariables(ctx context.Context, vars map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	code, err := tools.VariableAssignments(vars)
	if err != nil {
		return err
	}
	if code != "" {
		e.setup = append(e.setup, code)
	}
	return nil
}

// InstallPackages runs pip install through the sandbox commands API.
func (e *Executor) InstallPackages(ctx context.Context, packages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.cleaned {
		return executor.ErrSessionClosed
	}
	if len(packages) == 0 {
		return nil
	}
	out, err := e.client.RunCommand(ctx, "pip install --quiet "+strings.Join(packages, " "))
	if err != nil {
		return err
	}
	if out != "" {
		e.logger.Logf("pip install: %s", out)
	}
	return nil
}

// Execute flushes queued setup code, submits the code, and maps the
// structured execution onto the result triple: the first main-result
// payload becomes the output, sandbox stdout/stderr become the logs,
// and an error named like the final-answer sentinel is decoded into
// the final answer.
func (e *Executor) Execute(ctx context.Context, code string) (executor.Result, error) {
	if e.cleaned {
		return executor.Result{}, executor.ErrSessionClosed
	}
	for len(e.setup) > 0 {
		snippet := e.setup[0]
		exec, err := e.client.RunCode(ctx, snippet)
		if err != nil {
			return executor.Result{}, fmt.Errorf("session setup: %w", err)
		}
		if exec.Error != nil {
			return executor.Result{}, fmt.Errorf("session setup: %w", &executor.CodeError{
				Name:      exec.Error.Name,
				Message:   exec.Error.Value,
				Traceback: exec.Error.Traceback,
			})
		}
		e.setup = e.setup[1:]
	}

	exec, err := e.client.RunCode(ctx, code)
	if err != nil {
		return executor.Result{}, err
	}
	res := executor.Result{Logs: exec.Logs.Text()}

	if exec.Error != nil {
		if exec.Error.Name == tools.FinalAnswerException {
			res.Output = tools.DecodeFinalAnswer(exec.Error.Value)
			res.IsFinalAnswer = true
			return res, nil
		}
		return res, &executor.CodeError{
			Name:      exec.Error.Name,
			Message:   exec.Error.Value,
			Traceback: exec.Error.Traceback,
		}
	}

	if main, ok := exec.MainResult(); ok {
		res.Output = main.Value()
	}
	return res, nil
}

// Cleanup releases the sandbox. Idempotent.
func (e *Executor) Cleanup() error {
	var err error
	e.cleanupOnce.Do(func() {
		e.cleaned = true
		err = e.client.Close()
	})
	return err
}

var _ executor.Executor = (*Executor)(nil)
