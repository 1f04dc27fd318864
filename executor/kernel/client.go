package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/pyrite-run/pyrite/executor"
)

const defaultExecuteTimeout = 60 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithToken sets the gateway auth token, sent as a query parameter on
// every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client used for kernel management.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithExecuteTimeout bounds one execute round-trip.
func WithExecuteTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets an optional logger for protocol events.
func WithLogger(logger executor.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client manages kernels on one gateway.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	timeout time.Duration
	logger  executor.Logger
}

// NewClient creates a client for a kernel gateway at baseURL
// (e.g. "http://127.0.0.1:8888").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		timeout: defaultExecuteTimeout,
		logger:  executor.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateKernel starts a kernel and returns its id.
func (c *Client) CreateKernel(ctx context.Context) (string, error) {
	body, _ := json.Marshal(map[string]string{"name": "python3"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.url("/api/kernels"), bytes.NewReader(body))
	if err != nil {
		return "", &executor.InfraError{Op: "create kernel", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &executor.InfraError{Op: "create kernel", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &executor.InfraError{
			Op:  "create kernel",
			Err: fmt.Errorf("gateway returned %d: %s", resp.StatusCode, data),
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &executor.InfraError{Op: "create kernel", Err: err}
	}
	if created.ID == "" {
		return "", &executor.InfraError{Op: "create kernel", Err: fmt.Errorf("gateway returned no kernel id")}
	}
	c.logger.Logf("created kernel %s", created.ID)
	return created.ID, nil
}

// DeleteKernel shuts a kernel down. A kernel the gateway no longer
// knows is treated as already deleted.
func (c *Client) DeleteKernel(ctx context.Context, kernelID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.url("/api/kernels/"+kernelID), nil)
	if err != nil {
		return &executor.InfraError{Op: "delete kernel", Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &executor.InfraError{Op: "delete kernel", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return &executor.InfraError{
			Op:  "delete kernel",
			Err: fmt.Errorf("gateway returned %d", resp.StatusCode),
		}
	}
	return nil
}

// Ping reports whether the gateway answers its kernel listing
// endpoint, used by backends waiting for a fresh runtime to come up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/kernels"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return nil
}

// Connect opens the websocket channel to a kernel.
func (c *Client) Connect(ctx context.Context, kernelID string) (*Session, error) {
	wsURL := c.wsURL("/api/kernels/" + kernelID + "/channels")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, &executor.InfraError{Op: "connect", Err: err}
	}
	// Kernel replies can be large; stream output alone may exceed the
	// library default.
	conn.SetReadLimit(16 << 20)
	return &Session{
		conn:     conn,
		kernelID: kernelID,
		timeout:  c.timeout,
		logger:   c.logger,
	}, nil
}

func (c *Client) url(path string) string {
	u := c.baseURL + path
	if c.token != "" {
		u += "?token=" + c.token
	}
	return u
}

func (c *Client) wsURL(path string) string {
	u := c.url(path)
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
