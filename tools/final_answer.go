package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// FinalAnswerName is the reserved name of the tool that completes a
// submission instead of returning normally.
const FinalAnswerName = "final_answer"

// FinalAnswerException is the exception name remote sandboxes raise to
// smuggle the final answer out through their error channel. Every
// backend recognizes it and decodes the payload instead of reporting
// an error.
const FinalAnswerException = "FinalAnswerException"

// FinalAnswer returns the standard final-answer tool. The handler
// echoes its argument; in-process the evaluator intercepts the call
// before the handler matters, and remote backends replace it with the
// exception-raising shim from RemoteSources.
func FinalAnswer() Tool {
	return Tool{
		Name:        FinalAnswerName,
		Description: "Provides a final answer to the given problem.",
		Parameters:  []string{"answer"},
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"answer": map[string]any{
					"type":        "string",
					"description": "The final answer to the problem",
				},
			},
			"required": []any{"answer"},
		},
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return args["answer"], nil
		},
	}
}

// EncodeFinalAnswer encodes a final-answer payload the way the remote
// shim does: JSON, then base64.
func EncodeFinalAnswer(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encoding final answer: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeFinalAnswer reverses EncodeFinalAnswer. Remote backends call
// it on the exception message when the exception name matches
// FinalAnswerException. A payload that is not valid base64 JSON is
// returned as the raw string, so a hand-raised exception still
// surfaces something usable.
func DecodeFinalAnswer(encoded string) any {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return encoded
	}
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return encoded
	}
	return value
}
