package wasm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

//go:embed server.js
var serverScript string

const (
	defaultCommand      = "deno"
	defaultPort         = 8642
	defaultStartTimeout = 60 * time.Second
)

// Config configures a WASM-backed session.
type Config struct {
	// Command is the JavaScript runtime binary.
	// Default: deno
	Command string

	// Port is the loopback port the server listens on.
	// Default: 8642
	Port int

	// StartTimeout bounds subprocess start plus first readiness check.
	// The WASM interpreter itself loads lazily on the first request,
	// so this only covers the HTTP server coming up.
	// Default: 60s
	StartTimeout time.Duration

	// RequestTimeout bounds one execute round-trip. Zero leaves it to
	// the caller's context.
	RequestTimeout time.Duration

	// BaseURL attaches to an already running server instead of
	// spawning one. Cleanup then leaves the server alone.
	BaseURL string

	// Logger is an optional logger for session events.
	Logger executor.Logger
}

// Executor runs submissions in a WASM interpreter behind a loopback
// HTTP server. Not safe for concurrent use.
type Executor struct {
	command      string
	port         int
	startTimeout time.Duration
	reqTimeout   time.Duration
	baseURL      string
	external     bool
	logger       executor.Logger

	cmd        *exec.Cmd
	scriptPath string
	ready      bool
	http       *http.Client

	sent     map[string]bool
	setup    []string
	packages []string
	havePkg  map[string]bool

	cleanupOnce sync.Once
	cleaned     bool
}

// New creates a WASM-backed session. The subprocess starts lazily on
// the first Execute call.
func New(cfg Config) *Executor {
	command := cfg.Command
	if command == "" {
		command = defaultCommand
	}
	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}
	startTimeout := cfg.StartTimeout
	if startTimeout == 0 {
		startTimeout = defaultStartTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = executor.NopLogger{}
	}
	return &Executor{
		command:      command,
		port:         port,
		startTimeout: startTimeout,
		reqTimeout:   cfg.RequestTimeout,
		baseURL:      cfg.BaseURL,
		external:     cfg.BaseURL != "",
		logger:       logger,
		http:         &http.Client{},
		sent:         make(map[string]bool),
		havePkg:      make(map[string]bool),
	}
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

// InstallPackages records packages for the session; the server
// installs them lazily with the next request that carries them.
func (e *Executor) InstallPackages(ctx context.Context, packages []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, pkg := range packages {
		if !e.havePkg[pkg] {
			e.havePkg[pkg] = true
			e.packages = append(e.packages, pkg)
		}
	}
	return nil
}

// Execute starts the subprocess on first use, flushes queued setup
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
		if _, err := e.roundTrip(ctx, snippet); err != nil {
			return executor.Result{}, fmt.Errorf("session setup: %w", err)
		}
		e.setup = e.setup[1:]
	}
	return e.roundTrip(ctx, code)
}

// response is the server's reply frame.
type response struct {
	Result any    `json:"result"`
	Stdout string `json:"stdout"`
	Error  *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Stack   string `json:"stack"`
	} `json:"error"`
}

func (e *Executor) roundTrip(ctx context.Context, code string) (executor.Result, error) {
	if e.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(map[string]any{
		"code":     code,
		"packages": e.packages,
	})
	if err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return executor.Result{}, &executor.InfraError{
			Op:  "execute",
			Err: fmt.Errorf("server returned %d: %s", resp.StatusCode, msg),
		}
	}

	var reply response
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}

	res := executor.Result{Output: reply.Result, Logs: reply.Stdout}
	if reply.Error != nil {
		if reply.Error.Name == tools.FinalAnswerException {
			res.Output = tools.DecodeFinalAnswer(reply.Error.Message)
			res.IsFinalAnswer = true
			return res, nil
		}
		return res, &executor.CodeError{
			Name:      reply.Error.Name,
			Message:   reply.Error.Message,
			Traceback: reply.Error.Stack,
		}
	}
	return res, nil
}

func (e *Executor) start(ctx context.Context) error {
	if e.ready {
		return nil
	}
	if e.external {
		// External server: verify it answers once.
		waitCtx, cancel := context.WithTimeout(ctx, e.startTimeout)
		defer cancel()
		if err := e.waitReady(waitCtx); err != nil {
			return err
		}
		e.ready = true
		return nil
	}

	script, err := os.CreateTemp("", "pyrite-wasm-*.js")
	if err != nil {
		return &executor.InfraError{Op: "start server", Err: err}
	}
	if _, err := script.WriteString(serverScript); err != nil {
		script.Close()
		os.Remove(script.Name())
		return &executor.InfraError{Op: "start server", Err: err}
	}
	script.Close()
	e.scriptPath = script.Name()

	// Network access restricted to the loopback listener; no file,
	// env, or subprocess permissions beyond the npm cache the runtime
	// manages itself.
	cmd := exec.Command(e.command,
		"run",
		"--quiet",
		"--allow-net=127.0.0.1:"+strconv.Itoa(e.port),
		"--allow-read",
		"--node-modules-dir=auto",
		e.scriptPath,
		strconv.Itoa(e.port),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		os.Remove(e.scriptPath)
		e.scriptPath = ""
		return &executor.InfraError{Op: "start server", Err: err}
	}
	e.cmd = cmd
	e.baseURL = fmt.Sprintf("http://127.0.0.1:%d", e.port)
	e.logger.Logf("started wasm server pid %d on port %d", cmd.Process.Pid, e.port)

	waitCtx, cancel := context.WithTimeout(ctx, e.startTimeout)
	defer cancel()
	if err := e.waitReady(waitCtx); err != nil {
		return err
	}
	e.ready = true
	return nil
}

// waitReady polls the health endpoint until the server answers or the
// context expires.
func (e *Executor) waitReady(ctx context.Context) error {
	var lastErr error
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
		if err != nil {
			return &executor.InfraError{Op: "wait for server", Err: err}
		}
		resp, err := e.http.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			err = fmt.Errorf("server returned %d", resp.StatusCode)
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return &executor.InfraError{
				Op:  "wait for server",
				Err: fmt.Errorf("%v (last: %v)", ctx.Err(), lastErr),
			}
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Cleanup kills the subprocess group and removes the script file.
// Idempotent; an externally supplied server is left running.
func (e *Executor) Cleanup() error {
	var err error
	e.cleanupOnce.Do(func() {
		e.cleaned = true
		if e.cmd != nil && e.cmd.Process != nil {
			// Negative pid targets the process group, so helpers the
			// runtime spawned die with it.
			if kerr := syscall.Kill(-e.cmd.Process.Pid, syscall.SIGKILL); kerr != nil && kerr != syscall.ESRCH {
				err = &executor.InfraError{Op: "stop server", Err: kerr}
			}
			_, _ = e.cmd.Process.Wait()
			e.cmd = nil
		}
		if e.scriptPath != "" {
			_ = os.Remove(e.scriptPath)
			e.scriptPath = ""
		}
	})
	return err
}

var _ executor.Executor = (*Executor)(nil)
