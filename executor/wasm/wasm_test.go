package wasm

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

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

type request struct {
	Code     string   `json:"code"`
	Packages []string `json:"packages"`
}

// fakeServer mimics the loopback execution server.
type fakeServer struct {
	mu       sync.Mutex
	requests []request
	respond  func(req request) map[string]any
	server   *httptest.Server
}

func newFakeServer(t *testing.T, respond func(req request) map[string]any) *fakeServer {
	f := &fakeServer{respond: respond}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /{$}", func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.mu.Unlock()
		json.NewEncoder(w).Encode(f.respond(req))
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeServer) all() []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]request(nil), f.requests...)
}

func TestExecuteResultAndStdout(t *testing.T) {
	f := newFakeServer(t, func(req request) map[string]any {
		return map[string]any{"result": 9.0, "stdout": "computing\n", "error": nil}
	})
	e := New(Config{BaseURL: f.server.URL})
	defer e.Cleanup()

	res, err := e.Execute(context.Background(), "3 ** 2")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != 9.0 {
		t.Errorf("Output = %v, want 9", res.Output)
	}
	if res.Logs != "computing\n" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestExecuteError(t *testing.T) {
	f := newFakeServer(t, func(req request) map[string]any {
		return map[string]any{
			"result": nil,
			"stdout": "before\n",
			"error": map[string]any{
				"name":    "NameError",
				"message": "name 'x' is not defined",
				"stack":   "Traceback...",
			},
		}
	})
	e := New(Config{BaseURL: f.server.URL})
	defer e.Cleanup()

	res, err := e.Execute(context.Background(), "x")
	if !errors.Is(err, executor.ErrCodeExecution) {
		t.Fatalf("err = %v, want ErrCodeExecution", err)
	}
	var codeErr *executor.CodeError
	if !errors.As(err, &codeErr) || codeErr.Name != "NameError" {
		t.Errorf("err = %#v", err)
	}
	if res.Logs != "before\n" {
		t.Errorf("partial logs lost: %q", res.Logs)
	}
}

func TestExecuteFinalAnswer(t *testing.T) {
	encoded, err := tools.EncodeFinalAnswer(map[string]any{"city": "paris"})
	if err != nil {
		t.Fatal(err)
	}
	f := newFakeServer(t, func(req request) map[string]any {
		return map[string]any{
			"result": nil,
			"stdout": "",
			"error": map[string]any{
				"name":    tools.FinalAnswerException,
				"message": encoded,
			},
		}
	})
	e := New(Config{BaseURL: f.server.URL})
	defer e.Cleanup()

	res, err := e.Execute(context.Background(), "final_answer({'city': 'paris'})")
	if err != nil {
		t.Fatalf("final answer must not be an error: %v", err)
	}
	if !res.IsFinalAnswer {
		t.Error("IsFinalAnswer = false")
	}
	out, ok := res.Output.(map[string]any)
	if !ok || out["city"] != "paris" {
		t.Errorf("Output = %v", res.Output)
	}
}

func TestSetupFlushAndPackages(t *testing.T) {
	f := newFakeServer(t, func(req request) map[string]any {
		return map[string]any{"result": nil, "stdout": "", "error": nil}
	})
	e := New(Config{BaseURL: f.server.URL})
	defer e.Cleanup()
	ctx := context.Background()

	defs := []tools.Tool{{Name: "parse", Source: "def parse(s):\n    return s"}}
	if err := e.SendTools(ctx, defs); err != nil {
		t.Fatal(err)
	}
	if err := e.SendTools(ctx, defs); err != nil { // idempotent
		t.Fatal(err)
	}
	if err := e.SendVariables(ctx, map[string]any{"n": 2}); err != nil {
		t.Fatal(err)
	}
	if err := e.InstallPackages(ctx, []string{"beautifulsoup4"}); err != nil {
		t.Fatal(err)
	}
	if err := e.InstallPackages(ctx, []string{"beautifulsoup4"}); err != nil { // dedup
		t.Fatal(err)
	}

	if _, err := e.Execute(ctx, "parse('x')"); err != nil {
		t.Fatal(err)
	}

	reqs := f.all()
	if len(reqs) != 3 {
		t.Fatalf("server saw %d requests, want 3: %+v", len(reqs), reqs)
	}
	if !strings.Contains(reqs[0].Code, "def parse") {
		t.Errorf("first request should define tools: %q", reqs[0].Code)
	}
	if reqs[1].Code != "n = 2\n" {
		t.Errorf("second request should assign variables: %q", reqs[1].Code)
	}
	if reqs[2].Code != "parse('x')" {
		t.Errorf("last request should be the submission: %q", reqs[2].Code)
	}
	for i, req := range reqs {
		if len(req.Packages) != 1 || req.Packages[0] != "beautifulsoup4" {
			t.Errorf("request %d packages = %v", i, req.Packages)
		}
	}
}

func TestServerUnreachable(t *testing.T) {
	e := New(Config{BaseURL: "http://127.0.0.1:1", StartTimeout: 150 * time.Millisecond})
	defer e.Cleanup()
	_, err := e.Execute(context.Background(), "1")
	if !errors.Is(err, executor.ErrInfrastructure) {
		t.Errorf("err = %v, want ErrInfrastructure", err)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	f := newFakeServer(t, func(req request) map[string]any {
		return map[string]any{"result": nil, "stdout": "", "error": nil}
	})
	e := New(Config{BaseURL: f.server.URL})
	if _, err := e.Execute(context.Background(), "1"); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}
