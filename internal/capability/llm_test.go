package capability

import (
	"context"
	"errors"
	"testing"

	"github.com/triagehq/triage/internal/llm"
	"github.com/triagehq/triage/internal/ticket"
)

// fakeProvider returns a canned completion or error.
type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Content: f.content}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func TestLLMClassifierParsesResponse(t *testing.T) {
	provider := &fakeProvider{content: `Here you go:
{"intent":"refund_request","domain":"support","requires_knowledge":true,"recommended_tool":["refund"],"confidence":1.4}`}

	c := NewLLMClassifier(provider, "test-model")
	got, err := c.Classify(context.Background(), &ticket.Ticket{ID: "t1", Text: "refund"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Intent != "refund_request" {
		t.Errorf("intent: got %q", got.Intent)
	}
	if !got.RequiresKnowledge {
		t.Error("requires_knowledge lost")
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence should be clamped to 1, got %g", got.Confidence)
	}
}

func TestLLMClassifierFillsDefaults(t *testing.T) {
	provider := &fakeProvider{content: `{"confidence":0.5}`}

	c := NewLLMClassifier(provider, "test-model")
	got, err := c.Classify(context.Background(), &ticket.Ticket{ID: "t1", Text: "hi"})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Intent != "unknown" || got.Domain != "support" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.RecommendedTools == nil {
		t.Error("recommended tools should be an empty slice, not nil")
	}
}

func TestLLMClassifierPropagatesProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}

	c := NewLLMClassifier(provider, "test-model")
	if _, err := c.Classify(context.Background(), &ticket.Ticket{ID: "t1"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestLLMResolverDegradesOnProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("timeout")}

	r := NewLLMResolver(provider, "test-model")
	got, err := r.Resolve(context.Background(), ResolveInput{Ticket: &ticket.Ticket{ID: "t1"}})
	if err != nil {
		t.Fatalf("resolver must degrade, not error: %v", err)
	}
	if got.Confidence != 0 {
		t.Errorf("fallback confidence should be 0, got %g", got.Confidence)
	}
	if got.Response == "" {
		t.Error("fallback should still carry a response")
	}
}

func TestLLMResolverDegradesOnGarbageOutput(t *testing.T) {
	provider := &fakeProvider{content: "sorry, I cannot help with that"}

	r := NewLLMResolver(provider, "test-model")
	got, err := r.Resolve(context.Background(), ResolveInput{Ticket: &ticket.Ticket{ID: "t1"}})
	if err != nil {
		t.Fatalf("resolver must degrade, not error: %v", err)
	}
	if got.Confidence != 0 {
		t.Errorf("fallback confidence should be 0, got %g", got.Confidence)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`prose before {"a":{"b":2}} prose after`, `{"a":{"b":2}}`},
		{"no json at all", "no json at all"},
	}
	for _, tt := range tests {
		if got := extractJSON(tt.in); got != tt.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClamp01(t *testing.T) {
	if clamp01(-0.5) != 0 {
		t.Error("negative should clamp to 0")
	}
	if clamp01(1.5) != 1 {
		t.Error("above one should clamp to 1")
	}
	if clamp01(0.42) != 0.42 {
		t.Error("in-range value should pass through")
	}
}
