package sandboxapi

import "strings"

// Payload is one typed result channel from a sandbox execution. Image
// channels carry base64 data.
type Payload struct {
	IsMainResult bool   `json:"is_main_result"`
	Text         string `json:"text,omitempty"`
	HTML         string `json:"html,omitempty"`
	Markdown     string `json:"markdown,omitempty"`
	PNG          string `json:"png,omitempty"`
	JPEG         string `json:"jpeg,omitempty"`
	SVG          string `json:"svg,omitempty"`
	JSON         any    `json:"json,omitempty"`
	Chart        any    `json:"chart,omitempty"`
	Data         any    `json:"data,omitempty"`
}

// Value returns the payload's content, preferring structured channels
// over renderings.
func (p Payload) Value() any {
	switch {
	case p.JSON != nil:
		return p.JSON
	case p.Data != nil:
		return p.Data
	case p.Chart != nil:
		return p.Chart
	case p.Text != "":
		return p.Text
	case p.Markdown != "":
		return p.Markdown
	case p.HTML != "":
		return p.HTML
	case p.PNG != "":
		return p.PNG
	case p.JPEG != "":
		return p.JPEG
	case p.SVG != "":
		return p.SVG
	}
	return nil
}

// Logs is the captured output of one execution.
type Logs struct {
	Stdout []string `json:"stdout"`
	Stderr []string `json:"stderr"`
}

// Text joins stdout and stderr in that order.
func (l Logs) Text() string {
	var b strings.Builder
	for _, line := range l.Stdout {
		b.WriteString(line)
	}
	for _, line := range l.Stderr {
		b.WriteString(line)
	}
	return b.String()
}

// RunError is a sandbox-reported execution error.
type RunError struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

// Execution is the structured result of one RunCode call.
type Execution struct {
	Results []Payload `json:"results"`
	Logs    Logs      `json:"logs"`
	Error   *RunError `json:"error"`
}

// MainResult returns the first payload flagged as the main result, or
// false when none is.
func (e Execution) MainResult() (Payload, bool) {
	for _, p := range e.Results {
		if p.IsMainResult {
			return p, true
		}
	}
	return Payload{}, false
}
