// Package chat implements the completion client: it assembles a prompt from
// dialog history and a mode preset, calls the remote completion service, and
// handles context overflow by discarding the oldest turns and retrying.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/domain"
)

// Fixed sampling configuration for every completion call.
const (
	Temperature = 0.7
	MaxTokens   = 4000
	TopP        = 1.0
)

// ModeSource resolves a mode key to its system prompt.
// *config.Configuration satisfies this.
type ModeSource interface {
	ModePrompt(key string) (string, bool)
}

// Client produces completions for user messages given dialog history and a
// mode. It holds no per-call state: concurrent calls are independent, and a
// caller's history slice is never mutated.
type Client struct {
	provider adapter.CompletionProvider
	modes    ModeSource
	model    string
	logger   *slog.Logger
}

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a completion client for the given model.
func NewClient(provider adapter.CompletionProvider, modes ModeSource, model string, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		modes:    modes,
		model:    model,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Model returns the model identifier this client addresses.
func (c *Client) Model() string {
	return c.model
}

// Send produces a completion for message given the dialog history and mode.
//
// When the remote service signals that the request exceeds the model's
// context window, the oldest history turn is discarded and the call retried
// until it fits; the result reports how many turns were dropped. With no
// history left to shrink the call fails with HistoryExhaustedError. A rate
// limit from the provider is surfaced immediately as RateLimitedError and
// never retried; any other error propagates unmodified.
func (c *Client) Send(ctx context.Context, message string, history []domain.Turn, mode string) (*domain.CompletionResult, error) {
	system, ok := c.modes.ModePrompt(mode)
	if !ok {
		return nil, &domain.UnsupportedModeError{Mode: mode}
	}

	remaining := slices.Clone(history)
	initial := len(remaining)

	for {
		req := c.buildRequest(system, message, remaining)

		resp, err := c.provider.Complete(ctx, req)
		if err != nil {
			remaining, err = c.shrinkOrFail(remaining, err)
			if err != nil {
				return nil, err
			}
			continue
		}

		return &domain.CompletionResult{
			Answer:         strings.TrimSpace(resp.Answer),
			InputTokens:    resp.InputTokens,
			OutputTokens:   resp.OutputTokens,
			DiscardedTurns: initial - len(remaining),
		}, nil
	}
}

// shrinkOrFail decides what a completion error means for the retry loop.
// For a context overflow with history left it drops the oldest turn and
// returns the shorter history; every other case returns a terminal error.
func (c *Client) shrinkOrFail(remaining []domain.Turn, err error) ([]domain.Turn, error) {
	var tooLarge *domain.ContextTooLargeError
	if !errors.As(err, &tooLarge) {
		return nil, err
	}
	if len(remaining) == 0 {
		return nil, &domain.HistoryExhaustedError{Cause: err}
	}

	c.logger.Warn("request exceeds context window, discarding oldest turn",
		slog.String("model", c.model),
		slog.Int("turns_left", len(remaining)-1),
	)
	return remaining[1:], nil
}

// buildRequest assembles the completion request: each history turn becomes a
// user entry followed by an assistant entry, in original order, with the new
// message appended as the final user entry. The mode's system prompt rides
// in the request's System field, never in the message list.
func (c *Client) buildRequest(system, message string, history []domain.Turn) adapter.CompletionRequest {
	return adapter.CompletionRequest{
		Model:       c.model,
		System:      system,
		Messages:    buildMessages(message, history),
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		TopP:        TopP,
	}
}

func buildMessages(message string, history []domain.Turn) []adapter.Message {
	messages := make([]adapter.Message, 0, 2*len(history)+1)
	for _, turn := range history {
		messages = append(messages,
			adapter.Message{Role: "user", Content: turn.User},
			adapter.Message{Role: "assistant", Content: turn.Assistant},
		)
	}
	return append(messages, adapter.Message{Role: "user", Content: message})
}
