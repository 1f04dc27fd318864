package executor

import (
	"errors"
	"testing"
)

func TestInfraErrorIs(t *testing.T) {
	err := &InfraError{Op: "create kernel", Err: errors.New("connection refused")}
	if !errors.Is(err, ErrInfrastructure) {
		t.Error("InfraError should match ErrInfrastructure")
	}
	if errors.Is(err, ErrCodeExecution) {
		t.Error("InfraError must not match ErrCodeExecution")
	}
	if got := err.Error(); got != "create kernel: connection refused" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCodeErrorIs(t *testing.T) {
	err := &CodeError{Name: "ValueError", Message: "bad input"}
	if !errors.Is(err, ErrCodeExecution) {
		t.Error("CodeError should match ErrCodeExecution")
	}
	if errors.Is(err, ErrInfrastructure) {
		t.Error("CodeError must not match ErrInfrastructure")
	}
	if got := err.Error(); got != "ValueError: bad input" {
		t.Errorf("Error() = %q", got)
	}
	bare := &CodeError{Name: "KeyboardInterrupt"}
	if got := bare.Error(); got != "KeyboardInterrupt" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.RegisterFactory("fake", func(name string) (Executor, error) { return nil, nil })
	r.RegisterFactory("other", func(name string) (Executor, error) { return nil, nil })
	r.RegisterFactory("", func(name string) (Executor, error) { return nil, nil })
	r.RegisterFactory("nilfactory", nil)

	kinds := r.Kinds()
	want := []string{"fake", "other"}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("Kinds()[%d] = %s, want %s", i, kinds[i], want[i])
		}
	}

	if _, err := r.Create("missing", "x"); !errors.Is(err, ErrKindNotFound) {
		t.Errorf("Create(missing) err = %v, want ErrKindNotFound", err)
	}
	if _, err := r.Create("fake", "x"); err != nil {
		t.Errorf("Create(fake) err = %v", err)
	}
}
