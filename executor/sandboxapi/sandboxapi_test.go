package sandboxapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

// fakeClient scripts RunCode responses keyed by substring match on
// the submitted code.
type fakeClient struct {
	runs     []string
	commands []string
	respond  func(code string) (Execution, error)
	closes   int
}

func (c *fakeClient) RunCode(_ context.Context, code string) (Execution, error) {
	c.runs = append(c.runs, code)
	if c.respond != nil {
		return c.respond(code)
	}
	return Execution{}, nil
}

func (c *fakeClient) RunCommand(_ context.Context, command string) (string, error) {
	c.commands = append(c.commands, command)
	return "", nil
}

func (c *fakeClient) Close() error {
	c.closes++
	return nil
}

func TestExecuteMainResult(t *testing.T) {
	client := &fakeClient{respond: func(code string) (Execution, error) {
		return Execution{
			Results: []Payload{
				{Text: "rendering", IsMainResult: false},
				{JSON: map[string]any{"answer": 42.0}, IsMainResult: true},
				{Text: "also main", IsMainResult: true},
			},
			Logs: Logs{Stdout: []string{"working\n"}, Stderr: []string{"warn\n"}},
		}, nil
	}}
	e, err := New(Config{Client: client})
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.Execute(context.Background(), "compute()")
	if err != nil {
		t.Fatal(err)
	}
	// First main-result payload wins.
	out, ok := res.Output.(map[string]any)
	if !ok || out["answer"] != 42.0 {
		t.Errorf("Output = %v", res.Output)
	}
	if res.Logs != "working\nwarn\n" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestExecuteFinalAnswerError(t *testing.T) {
	encoded, err := tools.EncodeFinalAnswer([]any{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	client := &fakeClient{respond: func(code string) (Execution, error) {
		return Execution{
			Logs:  Logs{Stdout: []string{"step\n"}},
			Error: &RunError{Name: tools.FinalAnswerException, Value: encoded},
		}, nil
	}}
	e, _ := New(Config{Client: client})

	res, err := e.Execute(context.Background(), "final_answer(['a','b'])")
	if err != nil {
		t.Fatalf("final answer must not be an error: %v", err)
	}
	if !res.IsFinalAnswer {
		t.Error("IsFinalAnswer = false")
	}
	list, ok := res.Output.([]any)
	if !ok || len(list) != 2 || list[0] != "a" {
		t.Errorf("Output = %v", res.Output)
	}
	if res.Logs != "step\n" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestExecuteCodeError(t *testing.T) {
	client := &fakeClient{respond: func(code string) (Execution, error) {
		return Execution{
			Logs:  Logs{Stdout: []string{"before crash\n"}},
			Error: &RunError{Name: "ZeroDivisionError", Value: "division by zero"},
		}, nil
	}}
	e, _ := New(Config{Client: client})

	res, err := e.Execute(context.Background(), "1/0")
	if !errors.Is(err, executor.ErrCodeExecution) {
		t.Fatalf("err = %v, want ErrCodeExecution", err)
	}
	if res.Logs != "before crash\n" {
		t.Errorf("partial logs lost: %q", res.Logs)
	}
}

func TestSetupFlushAndInstall(t *testing.T) {
	client := &fakeClient{}
	e, _ := New(Config{Client: client})
	ctx := context.Background()

	defs := []tools.Tool{{Name: "fetch", Source: "def fetch(url):\n    return url", Packages: []string{"requests"}}}
	if err := e.SendTools(ctx, defs); err != nil {
		t.Fatal(err)
	}
	if err := e.SendTools(ctx, defs); err != nil { // idempotent
		t.Fatal(err)
	}
	if err := e.SendVariables(ctx, map[string]any{"base": "http://x"}); err != nil {
		t.Fatal(err)
	}
	if err := e.InstallPackages(ctx, tools.Packages(defs)); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, "fetch(base)"); err != nil {
		t.Fatal(err)
	}

	if len(client.commands) != 1 || !strings.Contains(client.commands[0], "pip install --quiet requests") {
		t.Errorf("commands = %v", client.commands)
	}
	if len(client.runs) != 3 {
		t.Fatalf("runs = %d, want 3 (tools, vars, code): %q", len(client.runs), client.runs)
	}
	if !strings.Contains(client.runs[0], "def fetch") {
		t.Errorf("first run should define tools: %q", client.runs[0])
	}
	if client.runs[1] != "base = \"http://x\"\n" {
		t.Errorf("second run should assign variables: %q", client.runs[1])
	}
}

func TestCleanupIdempotent(t *testing.T) {
	client := &fakeClient{}
	e, _ := New(Config{Client: client})
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if client.closes != 1 {
		t.Errorf("Close called %d times, want 1", client.closes)
	}
	if _, err := e.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestHTTPClient(t *testing.T) {
	var gotKey string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		var body struct {
			Code string `json:"code"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		json.NewEncoder(w).Encode(Execution{
			Results: []Payload{{Text: "ok", IsMainResult: true}},
			Logs:    Logs{Stdout: []string{body.Code + "\n"}},
		})
	})
	mux.HandleFunc("POST /commands", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"output": "installed"})
	})
	mux.HandleFunc("DELETE /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "key123")
	exec, err := c.RunCode(context.Background(), "print(1)")
	if err != nil {
		t.Fatal(err)
	}
	if gotKey != "key123" {
		t.Errorf("api key = %q", gotKey)
	}
	if main, ok := exec.MainResult(); !ok || main.Text != "ok" {
		t.Errorf("execution = %+v", exec)
	}
	out, err := c.RunCommand(context.Background(), "pip install x")
	if err != nil || out != "installed" {
		t.Errorf("RunCommand = %q, %v", out, err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPClientInfraError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	c := NewHTTPClient(server.URL, "")
	if _, err := c.RunCode(context.Background(), "1"); !errors.Is(err, executor.ErrInfrastructure) {
		t.Errorf("err = %v, want ErrInfrastructure", err)
	}
}
