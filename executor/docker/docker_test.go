package docker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

// recordingRunner records CLI invocations and returns canned output.
type recordingRunner struct {
	mu    sync.Mutex
	calls [][]string
	out   string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.out, r.err
}

func (r *recordingRunner) call(i int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i >= len(r.calls) {
		return nil
	}
	return r.calls[i]
}

// fakeGateway is a minimal kernel gateway: every execute_request is
// recorded and answered with an idle status.
type fakeGateway struct {
	mu       sync.Mutex
	executed []string
	server   *httptest.Server
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/kernels", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "k"})
	})
	mux.HandleFunc("GET /api/kernels", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("DELETE /api/kernels/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/kernels/{id}/channels", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var req struct {
				Header struct {
					MsgID string `json:"msg_id"`
				} `json:"header"`
				Content struct {
					Code string `json:"code"`
				} `json:"content"`
			}
			if json.Unmarshal(data, &req) != nil {
				return
			}
			g.mu.Lock()
			g.executed = append(g.executed, req.Content.Code)
			g.mu.Unlock()
			idle, _ := json.Marshal(map[string]any{
				"header":        map[string]any{"msg_id": "r", "msg_type": "status"},
				"parent_header": map[string]any{"msg_id": req.Header.MsgID},
				"content":       map[string]any{"execution_state": "idle"},
			})
			_ = conn.Write(ctx, websocket.MessageText, idle)
		}
	})
	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) codes() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.executed...)
}

func TestSetupFlushOrder(t *testing.T) {
	g := newFakeGateway(t)
	e := New(Config{GatewayURL: g.server.URL})
	defer e.Cleanup()
	ctx := context.Background()

	defs := []tools.Tool{{Name: "greet", Source: "def greet(name):\n    return name"}}
	if err := e.SendTools(ctx, defs); err != nil {
		t.Fatal(err)
	}
	// Idempotent re-send queues nothing new.
	if err := e.SendTools(ctx, defs); err != nil {
		t.Fatal(err)
	}
	if err := e.SendVariables(ctx, map[string]any{"x": 1}); err != nil {
		t.Fatal(err)
	}
	if err := e.InstallPackages(ctx, []string{"numpy"}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Execute(ctx, "greet('a')"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	codes := g.codes()
	if len(codes) != 4 {
		t.Fatalf("gateway ran %d snippets, want 4: %q", len(codes), codes)
	}
	if !strings.Contains(codes[0], "def greet") {
		t.Errorf("first snippet should define tools: %q", codes[0])
	}
	if codes[1] != "x = 1\n" {
		t.Errorf("second snippet should assign variables: %q", codes[1])
	}
	if !strings.Contains(codes[2], "pip install") {
		t.Errorf("third snippet should install packages: %q", codes[2])
	}
	if codes[3] != "greet('a')" {
		t.Errorf("last snippet should be the submission: %q", codes[3])
	}
}

func TestContainerLifecycle(t *testing.T) {
	runner := &recordingRunner{out: "abc123"}
	e := New(Config{
		Runner:       runner,
		StartTimeout: 300 * time.Millisecond,
		Port:         18889,
	})

	// No gateway is listening, so start fails waiting for readiness —
	// but the container must have been started and must be removed.
	_, err := e.Execute(context.Background(), "1")
	if !errors.Is(err, executor.ErrInfrastructure) {
		t.Fatalf("err = %v, want ErrInfrastructure", err)
	}

	run := runner.call(0)
	if run == nil || run[0] != "docker" || run[1] != "run" {
		t.Fatalf("first call = %v, want docker run", run)
	}
	joined := strings.Join(run, " ")
	if !strings.Contains(joined, "-p 18889:8888") {
		t.Errorf("port mapping missing: %v", run)
	}
	if !strings.Contains(joined, defaultImage) {
		t.Errorf("image missing: %v", run)
	}

	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	rm := runner.call(1)
	if rm == nil || strings.Join(rm[:3], " ") != "docker rm -f" {
		t.Fatalf("cleanup call = %v, want docker rm -f", rm)
	}
	if rm[3] != "abc123" {
		t.Errorf("removed %s, want abc123", rm[3])
	}

	// Idempotent: no second removal, session stays closed.
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if runner.call(2) != nil {
		t.Error("second Cleanup ran another command")
	}
	if _, err := e.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestExternalGatewayNotRemoved(t *testing.T) {
	g := newFakeGateway(t)
	runner := &recordingRunner{}
	e := New(Config{GatewayURL: g.server.URL, Runner: runner})
	if _, err := e.Execute(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if runner.call(0) != nil {
		t.Errorf("no docker commands expected for an external gateway: %v", runner.calls)
	}
}
