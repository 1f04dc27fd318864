package cloudvm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pyrite-run/pyrite/executor"
)

// Sandbox is one provisioned micro-VM.
type Sandbox struct {
	ID        string `json:"id"`
	KernelURL string `json:"kernel_url"`
	Token     string `json:"token"`
}

// Provisioner allocates and terminates sandbox VMs.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation and deadlines.
// - Errors: failures are infrastructure errors, never code errors.
type Provisioner interface {
	// CreateSandbox allocates a VM and returns the kernel gateway it
	// exposes.
	CreateSandbox(ctx context.Context) (Sandbox, error)

	// Terminate releases the VM. Terminating an unknown id is not an
	// error.
	Terminate(ctx context.Context, id string) error
}

// RESTProvisioner provisions sandboxes through a provider's REST API:
// POST /sandboxes to create, DELETE /sandboxes/{id} to terminate.
type RESTProvisioner struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewRESTProvisioner creates a provisioner against the provider API at
// baseURL, authenticating with apiKey as a bearer token.
func NewRESTProvisioner(baseURL, apiKey string) *RESTProvisioner {
	return &RESTProvisioner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// SetHTTPClient replaces the HTTP client, mainly for tests.
func (p *RESTProvisioner) SetHTTPClient(hc *http.Client) { p.http = hc }

func (p *RESTProvisioner) CreateSandbox(ctx context.Context) (Sandbox, error) {
	body, _ := json.Marshal(map[string]any{"runtime": "kernel"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/sandboxes", bytes.NewReader(body))
	if err != nil {
		return Sandbox{}, &executor.InfraError{Op: "create sandbox", Err: err}
	}
	p.auth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Sandbox{}, &executor.InfraError{Op: "create sandbox", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Sandbox{}, &executor.InfraError{
			Op:  "create sandbox",
			Err: fmt.Errorf("provider returned %d: %s", resp.StatusCode, data),
		}
	}

	var sb Sandbox
	if err := json.NewDecoder(resp.Body).Decode(&sb); err != nil {
		return Sandbox{}, &executor.InfraError{Op: "create sandbox", Err: err}
	}
	if sb.ID == "" || sb.KernelURL == "" {
		return Sandbox{}, &executor.InfraError{
			Op:  "create sandbox",
			Err: fmt.Errorf("provider response missing id or kernel_url"),
		}
	}
	return sb, nil
}

func (p *RESTProvisioner) Terminate(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		p.baseURL+"/sandboxes/"+id, nil)
	if err != nil {
		return &executor.InfraError{Op: "terminate sandbox", Err: err}
	}
	p.auth(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return &executor.InfraError{Op: "terminate sandbox", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &executor.InfraError{
			Op:  "terminate sandbox",
			Err: fmt.Errorf("provider returned %d", resp.StatusCode),
		}
	}
	return nil
}

func (p *RESTProvisioner) auth(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

var _ Provisioner = (*RESTProvisioner)(nil)
