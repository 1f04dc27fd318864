package cloudvm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/coder/websocket"

	"github.com/pyrite-run/pyrite/executor"
)

// fakeProvisioner hands out a fixed sandbox and records terminations.
type fakeProvisioner struct {
	mu         sync.Mutex
	sandbox    Sandbox
	createErr  error
	terminated []string
}

func (p *fakeProvisioner) CreateSandbox(_ context.Context) (Sandbox, error) {
	if p.createErr != nil {
		return Sandbox{}, p.createErr
	}
	return p.sandbox, nil
}

func (p *fakeProvisioner) Terminate(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = append(p.terminated, id)
	return nil
}

func (p *fakeProvisioner) terminations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.terminated...)
}

// startGateway serves a kernel gateway that answers every execute with
// a result of "7" and idle.
func startGateway(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/kernels", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "k"})
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
			}
			if json.Unmarshal(data, &req) != nil {
				return
			}
			send := func(msgType string, content map[string]any) {
				frame, _ := json.Marshal(map[string]any{
					"header":        map[string]any{"msg_id": "r", "msg_type": msgType},
					"parent_header": map[string]any{"msg_id": req.Header.MsgID},
					"content":       content,
				})
				_ = conn.Write(ctx, websocket.MessageText, frame)
			}
			send("execute_result", map[string]any{"data": map[string]any{"text/plain": "7"}})
			send("status", map[string]any{"execution_state": "idle"})
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestExecuteThroughProvisionedVM(t *testing.T) {
	gw := startGateway(t)
	prov := &fakeProvisioner{sandbox: Sandbox{ID: "vm-1", KernelURL: gw.URL}}
	e, err := New(Config{Provisioner: prov})
	if err != nil {
		t.Fatal(err)
	}

	res, err := e.Execute(context.Background(), "3 + 4")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "7" {
		t.Errorf("Output = %v, want 7", res.Output)
	}

	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if got := prov.terminations(); len(got) != 1 || got[0] != "vm-1" {
		t.Errorf("terminations = %v, want [vm-1]", got)
	}
	// Idempotent.
	if err := e.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if got := prov.terminations(); len(got) != 1 {
		t.Errorf("second Cleanup terminated again: %v", got)
	}
}

func TestProvisionFailure(t *testing.T) {
	prov := &fakeProvisioner{
		createErr: &executor.InfraError{Op: "create sandbox", Err: errors.New("quota exceeded")},
	}
	e, err := New(Config{Provisioner: prov})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrInfrastructure) {
		t.Errorf("err = %v, want ErrInfrastructure", err)
	}
}

func TestKernelCreationFailureTerminatesVM(t *testing.T) {
	// Gateway that rejects kernel creation: the VM must be released.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no kernels here", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	prov := &fakeProvisioner{sandbox: Sandbox{ID: "vm-2", KernelURL: server.URL}}
	e, err := New(Config{Provisioner: prov})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrInfrastructure) {
		t.Fatalf("err = %v, want ErrInfrastructure", err)
	}
	if got := prov.terminations(); len(got) != 1 || got[0] != "vm-2" {
		t.Errorf("terminations = %v, want [vm-2]", got)
	}
}

func TestNewRequiresProvisioner(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, executor.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestRESTProvisioner(t *testing.T) {
	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandboxes", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-9", KernelURL: "http://tunnel.example", Token: "t"})
	})
	mux.HandleFunc("DELETE /sandboxes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewRESTProvisioner(server.URL, "secret")
	sb, err := p.CreateSandbox(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sb.ID != "sb-9" || sb.KernelURL != "http://tunnel.example" {
		t.Errorf("sandbox = %+v", sb)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if err := p.Terminate(context.Background(), "sb-9"); err != nil {
		t.Fatal(err)
	}
}
