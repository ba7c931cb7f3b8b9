package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/domain"
)

// collect drains an event channel into a slice.
func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

// checkEventShape asserts the zero-or-more not_finished then exactly-one
// trailing finished structure.
func checkEventShape(t *testing.T, events []domain.StreamEvent) {
	t.Helper()
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	for i, ev := range events[:len(events)-1] {
		if ev.Err != nil {
			t.Fatalf("event %d carries error %v before the end of the stream", i, ev.Err)
		}
		if ev.Status != domain.StatusNotFinished {
			t.Errorf("event %d status = %s, want %s", i, ev.Status, domain.StatusNotFinished)
		}
	}
	last := events[len(events)-1]
	if last.Err != nil {
		t.Fatalf("final event carries error %v, want finished", last.Err)
	}
	if last.Status != domain.StatusFinished {
		t.Errorf("final event status = %s, want %s", last.Status, domain.StatusFinished)
	}
}

func TestStream_Success(t *testing.T) {
	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, onDelta adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			for _, fragment := range []string{"Hello", ", ", "world"} {
				if err := onDelta(adapter.StreamDelta{Text: fragment}); err != nil {
					return adapter.CompletionResponse{}, err
				}
			}
			if err := onDelta(adapter.StreamDelta{OutputTokens: 7}); err != nil {
				return adapter.CompletionResponse{}, err
			}
			return adapter.CompletionResponse{Answer: " Hello, world ", InputTokens: 12, OutputTokens: 7}, nil
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "greet me", nil, "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)
	checkEventShape(t, got)

	// Running answer grows by concatenating fragments in arrival order.
	wantRunning := []string{"Hello", "Hello, ", "Hello, world"}
	for i, want := range wantRunning {
		if got[i].Answer != want {
			t.Errorf("event %d Answer = %q, want %q", i, got[i].Answer, want)
		}
	}

	// The usage delta carries the provider's authoritative output count.
	usageEv := got[3]
	if usageEv.OutputTokens != 7 {
		t.Errorf("usage event OutputTokens = %d, want 7", usageEv.OutputTokens)
	}

	final := got[len(got)-1]
	if final.Answer != "Hello, world" {
		t.Errorf("final Answer = %q, want %q", final.Answer, "Hello, world")
	}
	if final.InputTokens != 12 || final.OutputTokens != 7 {
		t.Errorf("final tokens = (%d, %d), want (12, 7)", final.InputTokens, final.OutputTokens)
	}
	if final.DiscardedTurns != 0 {
		t.Errorf("final DiscardedTurns = %d, want 0", final.DiscardedTurns)
	}
}

func TestStream_TrimRetryResetsAnswer(t *testing.T) {
	// First attempt streams a partial answer and then overflows; the second
	// attempt, one turn shorter, succeeds with different text.
	provider := &fakeProvider{
		streamFn: func(call int, req adapter.CompletionRequest, onDelta adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			if call == 1 {
				if err := onDelta(adapter.StreamDelta{Text: "partial"}); err != nil {
					return adapter.CompletionResponse{}, err
				}
				return adapter.CompletionResponse{}, tooLarge()
			}
			if err := onDelta(adapter.StreamDelta{Text: "fresh start"}); err != nil {
				return adapter.CompletionResponse{}, err
			}
			return adapter.CompletionResponse{Answer: "fresh start", InputTokens: 9, OutputTokens: 3}, nil
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "hello", historyOf(2), "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)
	checkEventShape(t, got)

	if len(provider.requests) != 2 {
		t.Fatalf("remote calls = %d, want 2", len(provider.requests))
	}
	if a, b := len(provider.requests[0].Messages), len(provider.requests[1].Messages); a != 5 || b != 3 {
		t.Errorf("attempt message counts = (%d, %d), want (5, 3)", a, b)
	}

	// The second attempt's first event must not carry text from the first.
	var secondFirst domain.StreamEvent
	for _, ev := range got {
		if ev.DiscardedTurns == 1 {
			secondFirst = ev
			break
		}
	}
	if secondFirst.Answer != "fresh start" {
		t.Errorf("first event after retry Answer = %q, want %q", secondFirst.Answer, "fresh start")
	}

	final := got[len(got)-1]
	if final.DiscardedTurns != 1 {
		t.Errorf("final DiscardedTurns = %d, want 1", final.DiscardedTurns)
	}
	if final.Answer != "fresh start" {
		t.Errorf("final Answer = %q", final.Answer)
	}
}

func TestStream_ExactlyOneFinished(t *testing.T) {
	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, _ adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			return adapter.CompletionResponse{Answer: "done", InputTokens: 3, OutputTokens: 1}, nil
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "hi", nil, "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)

	finished := 0
	for _, ev := range got {
		if ev.Status == domain.StatusFinished {
			finished++
		}
	}
	if finished != 1 {
		t.Errorf("finished events = %d, want exactly 1", finished)
	}
	if got[len(got)-1].Status != domain.StatusFinished {
		t.Error("finished event is not last")
	}
}

func TestStream_LocalEstimateWithoutUsage(t *testing.T) {
	// The provider never reports usage; the finished event falls back to
	// local estimates.
	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, onDelta adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			if err := onDelta(adapter.StreamDelta{Text: "estimated answer"}); err != nil {
				return adapter.CompletionResponse{}, err
			}
			return adapter.CompletionResponse{Answer: "estimated answer"}, nil
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "hi", nil, "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)
	checkEventShape(t, got)

	final := got[len(got)-1]
	if final.InputTokens <= 0 {
		t.Errorf("final InputTokens = %d, want a positive local estimate", final.InputTokens)
	}
	if final.OutputTokens <= 0 {
		t.Errorf("final OutputTokens = %d, want a positive local estimate", final.OutputTokens)
	}
}

func TestStream_HistoryExhausted(t *testing.T) {
	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, _ adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			return adapter.CompletionResponse{}, tooLarge()
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "hello", historyOf(1), "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)

	if len(got) != 1 {
		t.Fatalf("events = %d, want 1 terminal error event", len(got))
	}
	var exhausted *domain.HistoryExhaustedError
	if !errors.As(got[0].Err, &exhausted) {
		t.Fatalf("event error = %v, want HistoryExhaustedError", got[0].Err)
	}
	// 1 turn then 0 turns, one attempt each.
	if len(provider.requests) != 2 {
		t.Errorf("remote calls = %d, want 2", len(provider.requests))
	}
}

func TestStream_RateLimitNotRetried(t *testing.T) {
	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, onDelta adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			if err := onDelta(adapter.StreamDelta{Text: "partial"}); err != nil {
				return adapter.CompletionResponse{}, err
			}
			return adapter.CompletionResponse{}, &domain.RateLimitedError{StatusCode: 429, Message: "slow down"}
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(context.Background(), "hello", historyOf(2), "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	got := collect(t, events)

	last := got[len(got)-1]
	var limited *domain.RateLimitedError
	if !errors.As(last.Err, &limited) {
		t.Fatalf("final event error = %v, want RateLimitedError", last.Err)
	}
	if len(provider.requests) != 1 {
		t.Errorf("remote calls = %d, want exactly 1", len(provider.requests))
	}
	for _, ev := range got {
		if ev.Status == domain.StatusFinished {
			t.Error("finished event emitted on a failed stream")
		}
	}
}

func TestStream_UnsupportedMode(t *testing.T) {
	client := NewClient(&fakeProvider{}, testModes, testModel)

	_, err := client.Stream(context.Background(), "hello", nil, "pirate")
	var unsupported *domain.UnsupportedModeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("error = %v, want UnsupportedModeError", err)
	}
}

func TestStream_UnknownModel(t *testing.T) {
	client := NewClient(&fakeProvider{}, testModes, "claude-999")

	_, err := client.Stream(context.Background(), "hello", nil, "assistant")
	var unknown *domain.UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownModelError", err)
	}
}

func TestStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	provider := &fakeProvider{
		streamFn: func(_ int, _ adapter.CompletionRequest, onDelta adapter.DeltaFunc) (adapter.CompletionResponse, error) {
			if err := onDelta(adapter.StreamDelta{Text: "first"}); err != nil {
				return adapter.CompletionResponse{}, err
			}
			// The consumer cancels after the first event; delivering the
			// next one must fail instead of blocking forever.
			return adapter.CompletionResponse{}, onDelta(adapter.StreamDelta{Text: "second"})
		},
	}
	client := NewClient(provider, testModes, testModel)

	events, err := client.Stream(ctx, "hello", nil, "assistant")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	first := <-events
	if first.Answer != "first" {
		t.Fatalf("first event Answer = %q", first.Answer)
	}
	cancel()

	select {
	case _, open := <-events:
		if open {
			// A second event may have been in flight before cancel landed;
			// the channel must still close promptly.
			select {
			case _, open = <-events:
				if open {
					t.Error("channel still delivering events after cancel")
				}
			case <-time.After(time.Second):
				t.Fatal("channel not closed after cancel")
			}
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}
