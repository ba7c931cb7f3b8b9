package chat

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/domain"
	"github.com/tnphuc/claude-relay/internal/token"
)

// Stream produces a completion incrementally. The returned channel is a
// finite, consume-once sequence: zero or more not_finished events carrying
// the running answer and token estimates, then exactly one finished event
// with the final trimmed answer, after which the channel closes.
//
// The trim-and-retry policy matches Send. When an attempt fails with a
// context overflow mid-stream, the running answer resets and the next
// attempt starts over with one turn less; events from the abandoned attempt
// have already been delivered, so consumers must treat each event's Answer
// as the full running text, not a fragment.
//
// A terminal failure is delivered as a final event with Err set (and no
// finished event). The consumer cancels by cancelling ctx; the producer
// goroutine then stops without sending further events.
func (c *Client) Stream(ctx context.Context, message string, history []domain.Turn, mode string) (<-chan domain.StreamEvent, error) {
	system, ok := c.modes.ModePrompt(mode)
	if !ok {
		return nil, &domain.UnsupportedModeError{Mode: mode}
	}
	// Streaming needs local estimates between usage events, so the model
	// must have overhead constants before the stream opens.
	if !token.KnownModel(c.model) {
		return nil, &domain.UnknownModelError{Model: c.model}
	}

	events := make(chan domain.StreamEvent)
	go c.streamLoop(ctx, events, system, message, slices.Clone(history))
	return events, nil
}

func (c *Client) streamLoop(ctx context.Context, events chan<- domain.StreamEvent, system, message string, remaining []domain.Turn) {
	defer close(events)

	emit := func(ev domain.StreamEvent) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	initial := len(remaining)

	for {
		messages := buildMessages(message, remaining)
		inputEstimate, err := token.CountRequest(c.model, messages)
		if err != nil {
			_ = emit(domain.StreamEvent{Err: err})
			return
		}

		discarded := initial - len(remaining)

		// Per-attempt state: the answer buffer resets on retry.
		var answer strings.Builder
		reportedOutput := 0

		req := adapter.CompletionRequest{
			Model:       c.model,
			System:      system,
			Messages:    messages,
			Temperature: Temperature,
			MaxTokens:   MaxTokens,
			TopP:        TopP,
		}

		resp, err := c.provider.StreamCompletion(ctx, req, func(d adapter.StreamDelta) error {
			switch {
			case d.Text != "":
				answer.WriteString(d.Text)
				out := reportedOutput
				if out == 0 {
					// Model already validated, the count cannot fail here.
					out, _ = token.CountAnswer(c.model, answer.String())
				}
				return emit(domain.StreamEvent{
					Status:         domain.StatusNotFinished,
					Answer:         answer.String(),
					InputTokens:    inputEstimate,
					OutputTokens:   out,
					DiscardedTurns: discarded,
				})
			case d.OutputTokens > 0:
				reportedOutput = d.OutputTokens
				return emit(domain.StreamEvent{
					Status:         domain.StatusNotFinished,
					Answer:         answer.String(),
					InputTokens:    inputEstimate,
					OutputTokens:   d.OutputTokens,
					DiscardedTurns: discarded,
				})
			}
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				// Consumer cancelled; it is no longer listening.
				return
			}
			var tooLarge *domain.ContextTooLargeError
			if errors.As(err, &tooLarge) {
				if len(remaining) == 0 {
					_ = emit(domain.StreamEvent{Err: &domain.HistoryExhaustedError{Cause: err}})
					return
				}
				c.logger.Warn("stream exceeds context window, discarding oldest turn",
					slog.String("model", c.model),
					slog.Int("turns_left", len(remaining)-1),
				)
				remaining = remaining[1:]
				continue
			}
			_ = emit(domain.StreamEvent{Err: err})
			return
		}

		finalInput := resp.InputTokens
		if finalInput == 0 {
			finalInput = inputEstimate
		}
		finalOutput := resp.OutputTokens
		if finalOutput == 0 {
			if reportedOutput > 0 {
				finalOutput = reportedOutput
			} else {
				finalOutput, _ = token.CountAnswer(c.model, resp.Answer)
			}
		}

		_ = emit(domain.StreamEvent{
			Status:         domain.StatusFinished,
			Answer:         strings.TrimSpace(resp.Answer),
			InputTokens:    finalInput,
			OutputTokens:   finalOutput,
			DiscardedTurns: discarded,
		})
		return
	}
}
