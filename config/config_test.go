package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pyrite-run/pyrite/executor/local"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.Kind != "local" {
		t.Errorf("kind = %s, want local", cfg.Executor.Kind)
	}
	if cfg.Executor.MaxOps != 10_000_000 {
		t.Errorf("max_ops = %d", cfg.Executor.MaxOps)
	}
	if cfg.ExecuteTimeout() != 60*time.Second {
		t.Errorf("ExecuteTimeout = %v", cfg.ExecuteTimeout())
	}
	if cfg.Logging.Mode != "production" {
		t.Errorf("logging mode = %s", cfg.Logging.Mode)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
executor:
  kind: wasm
  max_ops: 500
  authorized_imports: ["math", "json"]
wasm:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.Kind != "wasm" {
		t.Errorf("kind = %s, want wasm", cfg.Executor.Kind)
	}
	if cfg.Executor.MaxOps != 500 {
		t.Errorf("max_ops = %d, want 500", cfg.Executor.MaxOps)
	}
	if len(cfg.Executor.AuthorizedImports) != 2 {
		t.Errorf("authorized_imports = %v", cfg.Executor.AuthorizedImports)
	}
	if cfg.Wasm.Port != 9000 {
		t.Errorf("wasm.port = %d, want 9000", cfg.Wasm.Port)
	}
	// Defaults still fill the gaps.
	if cfg.Wasm.Command != "deno" {
		t.Errorf("wasm.command = %s, want deno", cfg.Wasm.Command)
	}
}

func TestParse(t *testing.T) {
	raw := []byte(`
executor:
  kind: docker
  max_log_bytes: 1024
docker:
  image: custom:dev
  token: secret
`)
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Executor.Kind != "docker" {
		t.Errorf("kind = %s, want docker", cfg.Executor.Kind)
	}
	if cfg.Executor.MaxLogBytes != 1024 {
		t.Errorf("max_log_bytes = %d, want 1024", cfg.Executor.MaxLogBytes)
	}
	if cfg.Docker.Image != "custom:dev" {
		t.Errorf("docker.image = %s", cfg.Docker.Image)
	}
	// Defaults still fill the gaps.
	if cfg.Docker.Port != 8888 {
		t.Errorf("docker.port = %d, want 8888", cfg.Docker.Port)
	}
	if cfg.Executor.MaxOps != 10_000_000 {
		t.Errorf("max_ops = %d", cfg.Executor.MaxOps)
	}

	if _, err := Parse([]byte("executor:\n  kind: mainframe\n")); err == nil {
		t.Error("Parse accepted unsupported kind")
	}
	if _, err := Parse([]byte(":\tnot yaml")); err == nil {
		t.Error("Parse accepted malformed yaml")
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad kind", "executor:\n  kind: mainframe\n"},
		{"negative ops", "executor:\n  max_ops: -1\n"},
		{"cloudvm without url", "executor:\n  kind: cloudvm\n"},
		{"sandboxapi without url", "executor:\n  kind: sandboxapi\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load succeeded, want validation error")
			}
		})
	}
}

func TestRegistryKinds(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	r := cfg.Registry(nil)
	kinds := r.Kinds()
	want := []string{"cloudvm", "docker", "local", "sandboxapi", "wasm"}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kinds()[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}
}

func TestNewExecutorLocal(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	e, err := cfg.NewExecutor(nil)
	if err != nil {
		t.Fatalf("NewExecutor failed: %v", err)
	}
	defer e.Cleanup()
	if _, ok := e.(*local.Executor); !ok {
		t.Errorf("executor is %T, want *local.Executor", e)
	}
}
