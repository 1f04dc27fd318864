package kernel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

// fakeGateway serves the kernel REST surface and a scripted websocket
// channel. The handler func decides the replies for one
// execute_request based on the submitted code.
type fakeGateway struct {
	t       *testing.T
	server  *httptest.Server
	handler func(code string, reply func(msgType string, content map[string]any))
}

func newFakeGateway(t *testing.T, handler func(code string, reply func(string, map[string]any))) *fakeGateway {
	g := &fakeGateway{t: t, handler: handler}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/kernels", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "kernel-1"})
	})
	mux.HandleFunc("GET /api/kernels", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("DELETE /api/kernels/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/kernels/{id}/channels", g.serveChannel)
	g.server = httptest.NewServer(mux)
	t.Cleanup(g.server.Close)
	return g
}

func (g *fakeGateway) serveChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.t.Errorf("accept: %v", err)
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
			Header  header `json:"header"`
			Content struct {
				Code string `json:"code"`
			} `json:"content"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			g.t.Errorf("bad request frame: %v", err)
			return
		}
		reply := func(msgType string, content map[string]any) {
			frame := map[string]any{
				"header":        map[string]any{"msg_id": "r", "msg_type": msgType},
				"parent_header": map[string]any{"msg_id": req.Header.MsgID},
				"content":       content,
			}
			out, _ := json.Marshal(frame)
			// Writes may fail when the client timed out and went away;
			// that is the client's business, not a fixture failure.
			_ = conn.Write(ctx, websocket.MessageText, out)
		}
		// Unrelated chatter the client must skip.
		noise, _ := json.Marshal(map[string]any{
			"header":        map[string]any{"msg_id": "n", "msg_type": "status"},
			"parent_header": map[string]any{"msg_id": "some-other-request"},
			"content":       map[string]any{"execution_state": "busy"},
		})
		conn.Write(ctx, websocket.MessageText, noise)

		g.handler(req.Content.Code, reply)
		reply("status", map[string]any{"execution_state": "idle"})
	}
}

func (g *fakeGateway) connect(t *testing.T, opts ...Option) (*Client, *Session) {
	c := NewClient(g.server.URL, opts...)
	ctx := context.Background()
	id, err := c.CreateKernel(ctx)
	if err != nil {
		t.Fatalf("CreateKernel: %v", err)
	}
	s, err := c.Connect(ctx, id)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return c, s
}

func TestExecuteCollectsStreamAndResult(t *testing.T) {
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {
		reply("stream", map[string]any{"name": "stdout", "text": "line one\n"})
		reply("stream", map[string]any{"name": "stdout", "text": "line two\n"})
		reply("execute_result", map[string]any{
			"data": map[string]any{"text/plain": "42"},
		})
	})
	_, s := g.connect(t)

	res, err := s.Execute(context.Background(), "6 * 7")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Output != "42" {
		t.Errorf("Output = %v, want 42", res.Output)
	}
	if res.Logs != "line one\nline two\n" {
		t.Errorf("Logs = %q", res.Logs)
	}
	if res.IsFinalAnswer {
		t.Error("IsFinalAnswer = true, want false")
	}
}

func TestExecuteErrorReply(t *testing.T) {
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {
		reply("stream", map[string]any{"name": "stdout", "text": "partial\n"})
		reply("error", map[string]any{
			"ename":     "ValueError",
			"evalue":    "bad input",
			"traceback": []string{"Traceback:", "ValueError: bad input"},
		})
	})
	_, s := g.connect(t)

	res, err := s.Execute(context.Background(), "raise ValueError('bad input')")
	if err == nil {
		t.Fatal("want error")
	}
	if !errors.Is(err, executor.ErrCodeExecution) {
		t.Errorf("err = %v, want ErrCodeExecution", err)
	}
	var codeErr *executor.CodeError
	if !errors.As(err, &codeErr) || codeErr.Name != "ValueError" {
		t.Errorf("err = %#v", err)
	}
	if res.Logs != "partial\n" {
		t.Errorf("partial logs lost: %q", res.Logs)
	}
}

func TestExecuteFinalAnswerException(t *testing.T) {
	encoded, err := tools.EncodeFinalAnswer("paris")
	if err != nil {
		t.Fatal(err)
	}
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {
		reply("error", map[string]any{
			"ename":  tools.FinalAnswerException,
			"evalue": encoded,
		})
	})
	_, s := g.connect(t)

	res, err := s.Execute(context.Background(), "final_answer('paris')")
	if err != nil {
		t.Fatalf("final answer must not be an error: %v", err)
	}
	if !res.IsFinalAnswer {
		t.Error("IsFinalAnswer = false, want true")
	}
	if res.Output != "paris" {
		t.Errorf("Output = %v, want paris", res.Output)
	}
}

func TestExecuteTimeout(t *testing.T) {
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {
		reply("stream", map[string]any{"name": "stdout", "text": "started\n"})
		// Never reach idle within the client timeout: the scripted
		// idle reply after this handler is delayed past it.
		time.Sleep(300 * time.Millisecond)
	})
	_, s := g.connect(t, WithExecuteTimeout(100*time.Millisecond))

	res, err := s.Execute(context.Background(), "while True: pass")
	if !errors.Is(err, executor.ErrInfrastructure) {
		t.Fatalf("err = %v, want ErrInfrastructure", err)
	}
	if !strings.Contains(res.Logs, "started") {
		t.Errorf("partial logs lost: %q", res.Logs)
	}
}

func TestExecuteAfterClose(t *testing.T) {
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {})
	_, s := g.connect(t)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close must be idempotent: %v", err)
	}
	if _, err := s.Execute(context.Background(), "1"); !errors.Is(err, executor.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestCreateKernelGatewayDown(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))
	_, err := c.CreateKernel(context.Background())
	if !errors.Is(err, executor.ErrInfrastructure) {
		t.Errorf("err = %v, want ErrInfrastructure", err)
	}
}

func TestDeleteKernel(t *testing.T) {
	g := newFakeGateway(t, func(code string, reply func(string, map[string]any)) {})
	c, _ := g.connect(t)
	if err := c.DeleteKernel(context.Background(), "kernel-1"); err != nil {
		t.Fatal(err)
	}
}
