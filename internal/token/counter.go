// Package token provides local token accounting for completion requests.
// Counts produced here are estimates used when the provider has not yet
// reported authoritative usage (notably while streaming); provider-reported
// counts always take precedence.
package token

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/domain"
)

// overhead holds the fixed token costs of message framing for one model.
type overhead struct {
	// perMessage is added for every message (role markers, separators).
	perMessage int

	// perConversation is added once per request (reply priming).
	perConversation int
}

// modelOverheads is the static overhead table keyed by model identifier.
// Adding a model is a data change here, not a logic change.
var modelOverheads = map[string]overhead{
	"claude-3-opus-20240229":     {perMessage: 3, perConversation: 2},
	"claude-3-sonnet-20240229":   {perMessage: 3, perConversation: 2},
	"claude-3-5-sonnet-20240620": {perMessage: 3, perConversation: 2},
}

var (
	encOnce sync.Once
	enc     tokenizer.Codec
	encErr  error
)

// encoder returns the singleton BPE encoder (cl100k_base).
func encoder() (tokenizer.Codec, error) {
	encOnce.Do(func() {
		enc, encErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return enc, encErr
}

// CountText returns the number of BPE tokens in the given text.
func CountText(text string) (int, error) {
	codec, err := encoder()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountRequest estimates the input token count for an assembled message
// list: tokenized role and content per message, plus the model's fixed
// per-message and per-conversation overheads.
func CountRequest(model string, messages []adapter.Message) (int, error) {
	oh, ok := modelOverheads[model]
	if !ok {
		return 0, &domain.UnknownModelError{Model: model}
	}

	total := oh.perConversation
	for _, m := range messages {
		total += oh.perMessage
		roleTokens, err := CountText(m.Role)
		if err != nil {
			return 0, err
		}
		contentTokens, err := CountText(m.Content)
		if err != nil {
			return 0, err
		}
		total += roleTokens + contentTokens
	}
	return total, nil
}

// CountAnswer estimates the output token count for an answer: the tokenized
// length plus one for the terminating marker.
func CountAnswer(model, answer string) (int, error) {
	if _, ok := modelOverheads[model]; !ok {
		return 0, &domain.UnknownModelError{Model: model}
	}
	n, err := CountText(answer)
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

// KnownModel reports whether overhead constants exist for the model.
func KnownModel(model string) bool {
	_, ok := modelOverheads[model]
	return ok
}
