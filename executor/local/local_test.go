package local

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

func TestExecuteFinalAnswer(t *testing.T) {
	e := New()
	code := "x = 1\nfor i in range(3):\n    x += i\nfinal_answer(x)"
	res, err := e.Execute(context.Background(), code)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.IsFinalAnswer {
		t.Error("IsFinalAnswer = false, want true")
	}
	if res.Output != int64(4) {
		t.Errorf("Output = %v, want 4", res.Output)
	}
}

func TestExecuteLastExpression(t *testing.T) {
	e := New()
	res, err := e.Execute(context.Background(), "a = 10\na * 2")
	if err != nil {
		t.Fatal(err)
	}
	if res.IsFinalAnswer {
		t.Error("IsFinalAnswer = true, want false")
	}
	if res.Output != int64(20) {
		t.Errorf("Output = %v, want 20", res.Output)
	}
}

func TestExecuteUnauthorizedImport(t *testing.T) {
	e := New(WithAuthorizedImports([]string{"math"}))
	res, err := e.Execute(context.Background(), "print('before')\nimport os")
	if err == nil {
		t.Fatal("import os should fail")
	}
	if !errors.Is(err, executor.ErrCodeExecution) {
		t.Errorf("err = %v, want ErrCodeExecution", err)
	}
	if !strings.Contains(err.Error(), "os") {
		t.Errorf("error should name the unauthorized module: %v", err)
	}
	if !strings.Contains(res.Logs, "before") {
		t.Errorf("logs before the failure must survive, got %q", res.Logs)
	}
}

func TestExecuteLogsOnSuccess(t *testing.T) {
	e := New()
	res, err := e.Execute(context.Background(), "print('hello')\nprint('world')")
	if err != nil {
		t.Fatal(err)
	}
	if res.Logs != "hello\nworld\n" {
		t.Errorf("Logs = %q", res.Logs)
	}
}

func TestSendTools(t *testing.T) {
	e := New()
	calls := 0
	def := tools.Tool{
		Name:       "double",
		Parameters: []string{"n"},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			calls++
			return args["n"].(int64) * 2, nil
		},
	}
	ctx := context.Background()
	if err := e.SendTools(ctx, []tools.Tool{def}); err != nil {
		t.Fatal(err)
	}
	// Idempotent re-send.
	if err := e.SendTools(ctx, []tools.Tool{def}); err != nil {
		t.Fatal(err)
	}

	res, err := e.Execute(ctx, "double(21)")
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != int64(42) {
		t.Errorf("Output = %v, want 42", res.Output)
	}

	res, err = e.Execute(ctx, "double(n=5)")
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != int64(10) {
		t.Errorf("keyword call Output = %v, want 10", res.Output)
	}
	if calls != 2 {
		t.Errorf("handler ran %d times, want 2", calls)
	}
}

func TestSendToolsWithoutHandler(t *testing.T) {
	e := New()
	def := tools.Tool{Name: "remote_only", Source: "def remote_only():\n    pass"}
	err := e.SendTools(context.Background(), []tools.Tool{def})
	if !errors.Is(err, executor.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestStaticToolNameProtected(t *testing.T) {
	e := New()
	// Handing a variable the name of an installed static tool fails
	// and leaves the environment unchanged.
	err := e.SendVariables(context.Background(), map[string]any{"final_answer": 1})
	if err == nil {
		t.Fatal("assigning a static tool name should fail")
	}
	if _, ok := e.Variables()["final_answer"]; ok {
		t.Error("environment mutated despite the error")
	}

	if _, err := e.Execute(context.Background(), "final_answer = 3"); err == nil {
		t.Error("assignment to static tool in code should fail")
	}
}

func TestSendVariables(t *testing.T) {
	e := New()
	ctx := context.Background()
	if err := e.SendVariables(ctx, nil); err != nil {
		t.Fatalf("empty snapshot must be a no-op, got %v", err)
	}
	if err := e.SendVariables(ctx, map[string]any{"seed": int64(7)}); err != nil {
		t.Fatal(err)
	}
	res, err := e.Execute(ctx, "seed + 1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Output != int64(8) {
		t.Errorf("Output = %v, want 8", res.Output)
	}
}

func TestVariablesPersistAcrossExecutes(t *testing.T) {
	e := New()
	ctx := context.Background()
	if _, err := e.Execute(ctx, "counter = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(ctx, "counter += 1"); err != nil {
		t.Fatal(err)
	}
	vars := e.Variables()
	if vars["counter"] != int64(2) {
		t.Errorf("counter = %v, want 2", vars["counter"])
	}
}

func TestInstallPackagesNoOp(t *testing.T) {
	e := New()
	if err := e.InstallPackages(context.Background(), []string{"numpy"}); err != nil {
		t.Errorf("InstallPackages = %v, want nil", err)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	e := New()
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	e := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Execute(ctx, "1 + 1"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
