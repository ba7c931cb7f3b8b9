package token

import (
	"errors"
	"testing"

	"github.com/tnphuc/claude-relay/internal/adapter"
	"github.com/tnphuc/claude-relay/internal/domain"
)

const testModel = "claude-3-5-sonnet-20240620"

func TestCountText(t *testing.T) {
	empty, err := CountText("")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if empty != 0 {
		t.Errorf("CountText(\"\") = %d, want 0", empty)
	}

	some, err := CountText("hello world")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	if some <= 0 {
		t.Errorf("CountText(\"hello world\") = %d, want > 0", some)
	}
}

func TestCountRequest_UnknownModel(t *testing.T) {
	_, err := CountRequest("claude-999", nil)
	var unknown *domain.UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want UnknownModelError", err)
	}
	if unknown.Model != "claude-999" {
		t.Errorf("Model = %s", unknown.Model)
	}
}

func TestCountRequest_Overheads(t *testing.T) {
	// Empty conversation still costs the per-conversation overhead.
	base, err := CountRequest(testModel, nil)
	if err != nil {
		t.Fatalf("CountRequest() error = %v", err)
	}
	if base != 2 {
		t.Errorf("CountRequest(no messages) = %d, want 2", base)
	}

	one, err := CountRequest(testModel, []adapter.Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatalf("CountRequest() error = %v", err)
	}
	if one <= base {
		t.Errorf("CountRequest(one message) = %d, want > %d", one, base)
	}

	two, err := CountRequest(testModel, []adapter.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	})
	if err != nil {
		t.Fatalf("CountRequest() error = %v", err)
	}
	if two <= one {
		t.Errorf("CountRequest(two messages) = %d, want > %d", two, one)
	}
}

func TestCountRequest_Deterministic(t *testing.T) {
	msgs := []adapter.Message{
		{Role: "user", Content: "what is the weather like?"},
		{Role: "assistant", Content: "I cannot check the weather."},
		{Role: "user", Content: "fair enough"},
	}

	a, err := CountRequest(testModel, msgs)
	if err != nil {
		t.Fatalf("CountRequest() error = %v", err)
	}
	b, err := CountRequest(testModel, msgs)
	if err != nil {
		t.Fatalf("CountRequest() error = %v", err)
	}
	if a != b {
		t.Errorf("CountRequest not deterministic: %d != %d", a, b)
	}
}

func TestCountAnswer(t *testing.T) {
	// Empty answer still costs the terminating marker.
	n, err := CountAnswer(testModel, "")
	if err != nil {
		t.Fatalf("CountAnswer() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountAnswer(\"\") = %d, want 1", n)
	}

	text, err := CountText("the quick brown fox")
	if err != nil {
		t.Fatalf("CountText() error = %v", err)
	}
	full, err := CountAnswer(testModel, "the quick brown fox")
	if err != nil {
		t.Fatalf("CountAnswer() error = %v", err)
	}
	if full != text+1 {
		t.Errorf("CountAnswer = %d, want %d", full, text+1)
	}

	if _, err := CountAnswer("claude-999", "x"); err == nil {
		t.Error("CountAnswer(unknown model) error = nil, want UnknownModelError")
	}
}

func TestKnownModel(t *testing.T) {
	for _, model := range []string{
		"claude-3-opus-20240229",
		"claude-3-sonnet-20240229",
		"claude-3-5-sonnet-20240620",
	} {
		if !KnownModel(model) {
			t.Errorf("KnownModel(%s) = false", model)
		}
	}
	if KnownModel("gpt-4") {
		t.Error("KnownModel(gpt-4) = true")
	}
}
