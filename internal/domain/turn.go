// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

// Turn represents one past user/assistant exchange in the dialog history.
// Turns are ordered oldest-first; when the model's context overflows, the
// relay discards turns from the front of the slice.
type Turn struct {
	// User is the user's message in this exchange.
	User string `json:"user"`

	// Assistant is the model's reply to that message.
	Assistant string `json:"assistant"`
}

// CompletionResult is the final outcome of a blocking completion call.
type CompletionResult struct {
	// Answer is the model's reply with surrounding whitespace trimmed.
	Answer string `json:"answer"`

	// InputTokens is the number of prompt tokens consumed.
	// Provider-reported when available, locally estimated otherwise.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int `json:"output_tokens"`

	// DiscardedTurns is how many of the oldest history turns were dropped
	// to make the request fit the model's context window.
	DiscardedTurns int `json:"discarded_turns"`
}

// StreamStatus tags an event emitted during a streamed completion.
type StreamStatus string

const (
	// StatusNotFinished marks an intermediate event carrying the running answer.
	StatusNotFinished StreamStatus = "not_finished"

	// StatusFinished marks the single trailing event carrying the final answer.
	StatusFinished StreamStatus = "finished"
)

// StreamEvent is one element of the lazy sequence produced by a streamed
// completion. A stream consists of zero or more not_finished events followed
// by exactly one finished event. If Err is non-nil the event is terminal and
// the remaining fields carry no completion data.
type StreamEvent struct {
	Status         StreamStatus `json:"status"`
	Answer         string       `json:"answer"`
	InputTokens    int          `json:"input_tokens"`
	OutputTokens   int          `json:"output_tokens"`
	DiscardedTurns int          `json:"discarded_turns"`
	Err            error        `json:"-"`
}
