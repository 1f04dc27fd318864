package cloudvm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/executor/kernel"
	"github.com/pyrite-run/pyrite/tools"
)

// Config configures a micro-VM session.
type Config struct {
	// Provisioner allocates the sandbox VM. Required.
	Provisioner Provisioner

	// ExecuteTimeout bounds one execute round-trip.
	ExecuteTimeout time.Duration

	// Logger is an optional logger for session events.
	Logger executor.Logger
}

// Executor runs submissions in a provisioned micro-VM. Not safe for
// concurrent use.
type Executor struct {
	provisioner Provisioner
	execTimeout time.Duration
	logger      executor.Logger

	sandbox Sandbox
	session *kernel.Session
	client  *kernel.Client

	sent  map[string]bool
	setup []string

	cleanupOnce sync.Once
	cleaned     bool
}

// New creates a micro-VM session. The VM is provisioned lazily on the
// first Execute call.
func New(cfg Config) (*Executor, error) {
	if cfg.Provisioner == nil {
		return nil, fmt.Errorf("%w: provisioner is required", executor.ErrConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = executor.NopLogger{}
	}
	return &Executor{
		provisioner: cfg.Provisioner,
		execTimeout: cfg.ExecuteTimeout,
		logger:      logger,
		sent:        make(map[string]bool),
	}, nil
}

// SendTools queues tool sources to run in the VM ahead of the next
// Execute call. Tools already sent under the same name are skipped.
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

// SendVariables queues a variable snapshot to merge into VM state.
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

// InstallPackages queues a pip install to run in the VM.
func (e *Executor) InstallPackages(ctx context.Context, packages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(packages) == 0 {
		return nil
	}
	e.setup = append(e.setup, "%pip install --quiet "+strings.Join(packages, " "))
	return nil
}

// Execute provisions the VM on first use, flushes queued setup code,
// then runs the submission.
func (e *Executor) Execute(ctx context.Context, code string) (executor.Result, error) {
	if e.cleaned {
		return executor.Result{}, executor.ErrSessionClosed
	}
	if err := e.start(ctx); err != nil {
		return executor.Result{}, err
	}
	for len(e.setup) > 0 {
		snippet := e.setup[0]
		if _, err := e.session.Execute(ctx, snippet); err != nil {
			return executor.Result{}, fmt.Errorf("session setup: %w", err)
		}
		e.setup = e.setup[1:]
	}
	return e.session.Execute(ctx, code)
}

// Cleanup closes the kernel channel and terminates the VM. Idempotent.
func (e *Executor) Cleanup() error {
	var err error
	e.cleanupOnce.Do(func() {
		e.cleaned = true
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if e.session != nil {
			if cerr := e.session.Close(); cerr != nil && err == nil {
				err = cerr
			}
			e.session = nil
		}
		if e.sandbox.ID != "" {
			if terr := e.provisioner.Terminate(ctx, e.sandbox.ID); terr != nil && err == nil {
				err = terr
			}
			e.logger.Logf("terminated sandbox %s", e.sandbox.ID)
			e.sandbox = Sandbox{}
		}
	})
	return err
}

func (e *Executor) start(ctx context.Context) error {
	if e.session != nil {
		return nil
	}
	sb, err := e.provisioner.CreateSandbox(ctx)
	if err != nil {
		return err
	}
	e.sandbox = sb
	e.logger.Logf("provisioned sandbox %s at %s", sb.ID, sb.KernelURL)

	opts := []kernel.Option{kernel.WithLogger(e.logger)}
	if sb.Token != "" {
		opts = append(opts, kernel.WithToken(sb.Token))
	}
	if e.execTimeout > 0 {
		opts = append(opts, kernel.WithExecuteTimeout(e.execTimeout))
	}
	e.client = kernel.NewClient(sb.KernelURL, opts...)

	kernelID, err := e.client.CreateKernel(ctx)
	if err != nil {
		// The VM is up but useless; release it rather than leak it.
		_ = e.provisioner.Terminate(ctx, sb.ID)
		e.sandbox = Sandbox{}
		return err
	}
	session, err := e.client.Connect(ctx, kernelID)
	if err != nil {
		_ = e.provisioner.Terminate(ctx, sb.ID)
		e.sandbox = Sandbox{}
		return err
	}
	e.session = session
	return nil
}

var _ executor.Executor = (*Executor)(nil)
