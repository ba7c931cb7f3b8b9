// Package adapter implements the outbound integration with the Anthropic
// Messages API. It hides the wire format behind a small provider interface
// so the completion client can be tested against a fake.
package adapter

import "context"

// Message is one entry of the ordered conversation sent to the model.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// CompletionRequest holds everything needed for one remote completion call.
type CompletionRequest struct {
	// Model is the Claude model identifier.
	Model string

	// System is the mode's system prompt. It is sent as a top-level field,
	// never inlined into Messages.
	System string

	// Messages is the ordered, strictly alternating user/assistant list,
	// ending with the new user message.
	Messages []Message

	// Sampling configuration.
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// CompletionResponse is the provider's answer to a completion call.
type CompletionResponse struct {
	// Answer is the raw answer text (not yet trimmed).
	Answer string

	// InputTokens and OutputTokens are the provider-reported usage counts.
	// Zero when the provider did not report a value.
	InputTokens  int
	OutputTokens int
}

// StreamDelta is one incremental update from a streamed completion.
// Exactly one of the fields is meaningful per delta: a text fragment, or
// an authoritative running output-token count from a usage event.
type StreamDelta struct {
	// Text is the next answer fragment. Empty for usage-only updates.
	Text string

	// OutputTokens is the provider-reported output token count so far.
	// Zero when this delta carries no usage update.
	OutputTokens int
}

// DeltaFunc receives stream deltas in arrival order. It is called from the
// goroutine driving the stream; returning an error aborts the stream and
// propagates the error to the StreamCompletion caller.
type DeltaFunc func(StreamDelta) error

// CompletionProvider is the interface for the remote completion service.
type CompletionProvider interface {
	// Complete performs a single blocking completion call.
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)

	// StreamCompletion opens a server-streamed completion call, invoking
	// onDelta for each incremental update, and returns the final
	// accumulated response once the stream ends.
	StreamCompletion(ctx context.Context, req CompletionRequest, onDelta DeltaFunc) (CompletionResponse, error)
}
