package docker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/executor/kernel"
	"github.com/pyrite-run/pyrite/tools"
)

const (
	defaultImage        = "pyrite-kernel:latest"
	defaultPort         = 8888
	defaultStartTimeout = 30 * time.Second
)

// Config configures a Docker-backed session.
type Config struct {
	// Image is the kernel gateway container image.
	// Default: pyrite-kernel:latest
	Image string

	// Port is the host port mapped to the gateway.
	// Default: 8888
	Port int

	// Token is the gateway auth token, if the image requires one.
	Token string

	// StartTimeout bounds container start plus gateway readiness.
	// Default: 30s
	StartTimeout time.Duration

	// ExecuteTimeout bounds one execute round-trip.
	ExecuteTimeout time.Duration

	// GatewayURL attaches to an already running gateway instead of
	// starting a container. Cleanup then leaves the gateway alone.
	GatewayURL string

	// Runner executes docker CLI commands.
	// Default: ExecRunner
	Runner CommandRunner

	// Logger is an optional logger for session events.
	Logger executor.Logger
}

// Executor runs submissions in a kernel gateway container. Not safe
// for concurrent use.
type Executor struct {
	image        string
	port         int
	token        string
	startTimeout time.Duration
	execTimeout  time.Duration
	gatewayURL   string
	external     bool
	runner       CommandRunner
	logger       executor.Logger

	containerID string
	client      *kernel.Client
	session     *kernel.Session

	sent  map[string]bool
	setup []string

	cleanupOnce sync.Once
	cleaned     bool
}

// New creates a Docker-backed session. The container starts lazily on
// the first Execute call.
func New(cfg Config) *Executor {
	image := cfg.Image
	if image == "" {
		image = defaultImage
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	startTimeout := cfg.StartTimeout
	if startTimeout == 0 {
		startTimeout = defaultStartTimeout
	}
	runner := cfg.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = executor.NopLogger{}
	}
	return &Executor{
		image:        image,
		port:         port,
		token:        cfg.Token,
		startTimeout: startTimeout,
		execTimeout:  cfg.ExecuteTimeout,
		gatewayURL:   cfg.GatewayURL,
		external:     cfg.GatewayURL != "",
		runner:       runner,
		logger:       logger,
		sent:         make(map[string]bool),
	}
}

// SendTools queues tool sources for the sandbox. Tools already sent
// under the same name are skipped; the sources run ahead of the next
// Execute call.
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
// state ahead of the next Execute call.
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

// InstallPackages queues a pip install to run in the sandbox ahead of
// the next Execute call.
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

// Execute starts the container on first use, flushes queued setup
// code, then runs the submission.
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

// Cleanup tears down the kernel and removes the container. Idempotent;
// an externally supplied gateway is left running.
func (e *Executor) Cleanup() error {
	var err error
	e.cleanupOnce.Do(func() {
		e.cleaned = true
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if e.session != nil {
			if cerr := e.session.Close(); cerr != nil && err == nil {
				err = cerr
			}
			if e.client != nil {
				if derr := e.client.DeleteKernel(ctx, e.session.KernelID()); derr != nil && err == nil {
					err = derr
				}
			}
			e.session = nil
		}
		if e.containerID != "" {
			if _, rerr := e.runner.Run(ctx, "docker", "rm", "-f", e.containerID); rerr != nil && err == nil {
				err = &executor.InfraError{Op: "remove container", Err: rerr}
			}
			e.logger.Logf("removed container %s", e.containerID)
			e.containerID = ""
		}
	})
	return err
}

func (e *Executor) start(ctx context.Context) error {
	if e.session != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.startTimeout)
	defer cancel()

	if !e.external {
		name := "pyrite-" + uuid.NewString()[:8]
		args := []string{
			"run", "-d", "--rm",
			"--name", name,
			"-p", fmt.Sprintf("%d:8888", e.port),
		}
		if e.token != "" {
			args = append(args, "-e", "KG_AUTH_TOKEN="+e.token)
		}
		args = append(args, e.image)
		id, err := e.runner.Run(ctx, "docker", args...)
		if err != nil {
			return &executor.InfraError{Op: "start container", Err: err}
		}
		e.containerID = id
		e.gatewayURL = fmt.Sprintf("http://127.0.0.1:%d", e.port)
		e.logger.Logf("started container %s (%s)", name, e.image)
	}

	opts := []kernel.Option{kernel.WithLogger(e.logger)}
	if e.token != "" {
		opts = append(opts, kernel.WithToken(e.token))
	}
	if e.execTimeout > 0 {
		opts = append(opts, kernel.WithExecuteTimeout(e.execTimeout))
	}
	e.client = kernel.NewClient(e.gatewayURL, opts...)

	if err := e.waitReady(ctx); err != nil {
		return err
	}

	kernelID, err := e.client.CreateKernel(ctx)
	if err != nil {
		return err
	}
	session, err := e.client.Connect(ctx, kernelID)
	if err != nil {
		return err
	}
	e.session = session
	return nil
}

// waitReady polls the gateway until it answers or the start timeout
// expires.
func (e *Executor) waitReady(ctx context.Context) error {
	var lastErr error
	for {
		if lastErr = e.client.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return &executor.InfraError{
				Op:  "wait for gateway",
				Err: fmt.Errorf("%v (last: %v)", ctx.Err(), lastErr),
			}
		case <-time.After(250 * time.Millisecond):
		}
	}
}

var _ executor.Executor = (*Executor)(nil)
