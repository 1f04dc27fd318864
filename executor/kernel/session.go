package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/pyrite-run/pyrite/executor"
	"github.com/pyrite-run/pyrite/tools"
)

// Session is one open websocket channel to a kernel. Not safe for
// concurrent Execute calls.
type Session struct {
	conn     *websocket.Conn
	kernelID string
	timeout  time.Duration
	logger   executor.Logger
	closed   bool
}

// envelope is the kernel message frame. Only the fields the protocol
// needs are modeled.
type envelope struct {
	Header       header          `json:"header"`
	ParentHeader header          `json:"parent_header"`
	Metadata     map[string]any  `json:"metadata"`
	Content      json.RawMessage `json:"content"`
	Channel      string          `json:"channel,omitempty"`
	MsgType      string          `json:"msg_type,omitempty"`
}

type header struct {
	MsgID    string `json:"msg_id"`
	MsgType  string `json:"msg_type"`
	Session  string `json:"session,omitempty"`
	Username string `json:"username,omitempty"`
	Version  string `json:"version,omitempty"`
	Date     string `json:"date,omitempty"`
}

// KernelID returns the id of the kernel this session speaks to.
func (s *Session) KernelID() string { return s.kernelID }

// Execute submits code and collects replies until the kernel reports
// idle for this request. Stream output accumulates into Result.Logs;
// an execute_result becomes Result.Output; an error reply becomes a
// *executor.CodeError unless its exception name is the final-answer
// sentinel, which instead decodes the payload and sets IsFinalAnswer.
// A timeout returns an *executor.InfraError carrying the partial log.
func (s *Session) Execute(ctx context.Context, code string) (executor.Result, error) {
	if s.closed {
		return executor.Result{}, executor.ErrSessionClosed
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	msgID := uuid.NewString()
	request := envelope{
		Header: header{
			MsgID:    msgID,
			MsgType:  "execute_request",
			Session:  s.kernelID,
			Username: "pyrite",
			Version:  "5.3",
			Date:     time.Now().UTC().Format(time.RFC3339),
		},
		Metadata: map[string]any{},
		Content: mustJSON(map[string]any{
			"code":             code,
			"silent":           false,
			"store_history":    true,
			"user_expressions": map[string]any{},
			"allow_stdin":      false,
		}),
		Channel: "shell",
	}
	data, err := json.Marshal(request)
	if err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return executor.Result{}, &executor.InfraError{Op: "execute", Err: err}
	}

	return s.collect(ctx, msgID)
}

func (s *Session) collect(ctx context.Context, msgID string) (executor.Result, error) {
	var (
		logs     strings.Builder
		result   executor.Result
		codeErr  *executor.CodeError
		finished bool
	)
	for !finished {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			result.Logs = logs.String()
			return result, &executor.InfraError{
				Op:  "execute",
				Err: fmt.Errorf("reading kernel reply: %w", err),
			}
		}
		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Logf("skipping malformed kernel message: %v", err)
			continue
		}
		if msg.ParentHeader.MsgID != msgID {
			continue
		}

		msgType := msg.Header.MsgType
		if msgType == "" {
			msgType = msg.MsgType
		}
		switch msgType {
		case "stream":
			var content struct {
				Name string `json:"name"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(msg.Content, &content); err == nil {
				logs.WriteString(content.Text)
			}
		case "execute_result":
			var content struct {
				Data map[string]any `json:"data"`
			}
			if err := json.Unmarshal(msg.Content, &content); err == nil {
				if text, ok := content.Data["text/plain"]; ok {
					result.Output = text
				}
			}
		case "error":
			var content struct {
				EName     string   `json:"ename"`
				EValue    string   `json:"evalue"`
				Traceback []string `json:"traceback"`
			}
			if err := json.Unmarshal(msg.Content, &content); err != nil {
				break
			}
			if content.EName == tools.FinalAnswerException {
				result.Output = tools.DecodeFinalAnswer(content.EValue)
				result.IsFinalAnswer = true
				codeErr = nil
				break
			}
			codeErr = &executor.CodeError{
				Name:      content.EName,
				Message:   content.EValue,
				Traceback: strings.Join(content.Traceback, "\n"),
			}
		case "status":
			var content struct {
				ExecutionState string `json:"execution_state"`
			}
			if err := json.Unmarshal(msg.Content, &content); err == nil &&
				content.ExecutionState == "idle" {
				finished = true
			}
		}
	}

	result.Logs = logs.String()
	if codeErr != nil {
		return result, codeErr
	}
	return result, nil
}

// Close shuts the channel down. Idempotent.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close(websocket.StatusNormalClosure, "session cleanup")
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err) // map[string]any of JSON-native values cannot fail
	}
	return data
}
