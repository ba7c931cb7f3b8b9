package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// anthropicStreamEvent is one Server-Sent Events chunk from the streaming
// Messages API.
type anthropicStreamEvent struct {
	Type    string             `json:"type"` // "message_start", "content_block_start", "content_block_delta", "content_block_stop", "message_delta", "message_stop"
	Message *anthropicResponse `json:"message,omitempty"`
	Index   int                `json:"index,omitempty"`
	Delta   *struct {
		Type       string `json:"type,omitempty"`
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Usage *struct {
		OutputTokens int `json:"output_tokens,omitempty"`
	} `json:"usage,omitempty"`
	Error *anthropicError `json:"error,omitempty"`
}

// StreamCompletion opens a streamed Messages API call. Text fragments and
// usage updates are forwarded to onDelta in arrival order; the accumulated
// response is returned once the stream ends.
func (a *AnthropicAdapter) StreamCompletion(ctx context.Context, req CompletionRequest, onDelta DeltaFunc) (CompletionResponse, error) {
	httpResp, key, err := a.post(ctx, req, true)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return CompletionResponse{}, a.classifyError(httpResp.StatusCode, body, key)
	}

	var (
		answer       strings.Builder
		inputTokens  int
		outputTokens int
	)

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		// SSE framing: "event: <type>" lines are redundant with the JSON
		// type field, so only "data:" lines are parsed.
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				inputTokens = event.Message.Usage.InputTokens
			}

		case "content_block_delta":
			if event.Delta == nil || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			answer.WriteString(event.Delta.Text)
			if onDelta != nil {
				if err := onDelta(StreamDelta{Text: event.Delta.Text}); err != nil {
					return CompletionResponse{}, err
				}
			}

		case "message_delta":
			if event.Usage == nil {
				continue
			}
			outputTokens = event.Usage.OutputTokens
			if onDelta != nil {
				if err := onDelta(StreamDelta{OutputTokens: event.Usage.OutputTokens}); err != nil {
					return CompletionResponse{}, err
				}
			}

		case "error":
			// Mid-stream provider errors arrive as SSE events, not HTTP
			// statuses; route them through the same classification.
			if event.Error != nil {
				body, _ := json.Marshal(anthropicErrorResponse{Type: "error", Error: *event.Error})
				return CompletionResponse{}, a.classifyError(httpResp.StatusCode, body, key)
			}

		case "message_stop":
			// Terminal event; the scanner loop ends when the body closes.
		}
	}

	if err := scanner.Err(); err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic: reading stream: %w", err)
	}

	return CompletionResponse{
		Answer:       answer.String(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}, nil
}
