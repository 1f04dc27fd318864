package sandboxapi

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

// Client is the sandbox SDK surface the backend needs.
//
// Contract:
// - Context: methods must honor cancellation and deadlines.
// - Errors: transport failures are infrastructure errors; an
//   Execution with a non-nil Error is NOT a client error.
type Client interface {
	// RunCode submits code and returns the structured execution.
	RunCode(ctx context.Context, code string) (Execution, error)

	// RunCommand runs a shell command in the sandbox and returns its
	// combined output.
	RunCommand(ctx context.Context, command string) (string, error)

	// Close releases the sandbox. Idempotent.
	Close() error
}

// HTTPClient speaks the sandbox provider's REST API:
// POST /execute {code} and POST /commands {command}, DELETE / on
// close.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	closed  bool
}

// NewHTTPClient creates a client for a sandbox at baseURL.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// SetHTTPClient replaces the HTTP client, mainly for tests.
func (c *HTTPClient) SetHTTPClient(hc *http.Client) { c.http = hc }

func (c *HTTPClient) RunCode(ctx context.Context, code string) (Execution, error) {
	var exec Execution
	if err := c.post(ctx, "/execute", map[string]string{"code": code}, &exec); err != nil {
		return Execution{}, err
	}
	return exec, nil
}

func (c *HTTPClient) RunCommand(ctx context.Context, command string) (string, error) {
	var out struct {
		Output string `json:"output"`
	}
	if err := c.post(ctx, "/commands", map[string]string{"command": command}, &out); err != nil {
		return "", err
	}
	return out.Output, nil
}

func (c *HTTPClient) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/", nil)
	if err != nil {
		return &executor.InfraError{Op: "close sandbox", Err: err}
	}
	c.auth(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return &executor.InfraError{Op: "close sandbox", Err: err}
	}
	resp.Body.Close()
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &executor.InfraError{Op: "sandbox request", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &executor.InfraError{Op: "sandbox request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return &executor.InfraError{Op: "sandbox request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &executor.InfraError{
			Op:  "sandbox request",
			Err: fmt.Errorf("sandbox returned %d: %s", resp.StatusCode, msg),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &executor.InfraError{Op: "sandbox request", Err: err}
	}
	return nil
}

func (c *HTTPClient) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

var _ Client = (*HTTPClient)(nil)
