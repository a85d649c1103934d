package capability

import (
	"context"
	"testing"

	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
)

func TestRuleClassifierIntents(t *testing.T) {
	c := NewRuleClassifier()
	ctx := context.Background()

	tests := []struct {
		name              string
		text              string
		intent            string
		tools             []string
		requiresKnowledge bool
		confidence        float64
	}{
		{
			name:              "refund keyword",
			text:              "I want a refund for order 12345",
			intent:            "refund_request",
			tools:             []string{"refund"},
			requiresKnowledge: true,
			confidence:        0.9,
		},
		{
			name:       "money back phrasing",
			text:       "Can I get my money back?",
			intent:     "refund_request",
			tools:      []string{"refund"},
			confidence: 0.9,
			requiresKnowledge: true,
		},
		{
			name:       "address change",
			text:       "Please change address on my account",
			intent:     "account_update",
			tools:      []string{"account_lookup"},
			confidence: 0.9,
		},
		{
			name:              "cancellation",
			text:              "I need to cancel order ASAP",
			intent:            "cancel_order",
			tools:             []string{"refund", "account_lookup"},
			requiresKnowledge: true,
			confidence:        0.9,
		},
		{
			name:       "unrecognized",
			text:       "The sky is very blue today",
			intent:     "unknown",
			tools:      []string{},
			confidence: 0.25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(ctx, &ticket.Ticket{ID: "t1", Text: tt.text})
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Intent != tt.intent {
				t.Errorf("intent: got %q, want %q", got.Intent, tt.intent)
			}
			if got.Confidence != tt.confidence {
				t.Errorf("confidence: got %g, want %g", got.Confidence, tt.confidence)
			}
			if got.RequiresKnowledge != tt.requiresKnowledge {
				t.Errorf("requires_knowledge: got %v, want %v", got.RequiresKnowledge, tt.requiresKnowledge)
			}
			if len(got.RecommendedTools) != len(tt.tools) {
				t.Fatalf("tools: got %v, want %v", got.RecommendedTools, tt.tools)
			}
			for i, tool := range tt.tools {
				if got.RecommendedTools[i] != tool {
					t.Errorf("tools[%d]: got %q, want %q", i, got.RecommendedTools[i], tool)
				}
			}
		})
	}
}

func TestRuleResolverRefund(t *testing.T) {
	r := NewRuleResolver()

	got, err := r.Resolve(context.Background(), ResolveInput{
		Ticket: &ticket.Ticket{ID: "t1", UserID: "user_abc", Text: "refund please"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Confidence != 0.8 {
		t.Errorf("confidence: got %g, want 0.8", got.Confidence)
	}
	if len(got.Actions) != 1 || got.Actions[0].Tool != "refund" {
		t.Fatalf("expected one refund action, got %v", got.Actions)
	}
	// user_id is pre-filled, order details intentionally left open for the
	// engine to supply.
	params := got.Actions[0].Params
	if params["user_id"] != "user_abc" {
		t.Errorf("user_id: got %v", params["user_id"])
	}
	if params["order_id"] != nil {
		t.Errorf("order_id should be nil, got %v", params["order_id"])
	}
}

func TestRuleResolverFallback(t *testing.T) {
	r := NewRuleResolver()

	got, err := r.Resolve(context.Background(), ResolveInput{
		Ticket: &ticket.Ticket{ID: "t1", Text: "hello there"},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Confidence != 0.35 {
		t.Errorf("fallback confidence: got %g, want 0.35", got.Confidence)
	}
	if len(got.Actions) != 0 {
		t.Errorf("fallback must not propose actions, got %v", got.Actions)
	}
	if got.Response == "" {
		t.Error("fallback should still draft a response")
	}
}

func TestRuleResolverCountsSources(t *testing.T) {
	r := NewRuleResolver()

	got, err := r.Resolve(context.Background(), ResolveInput{
		Ticket: &ticket.Ticket{ID: "t1", Text: "refund"},
		ContextDocs: []retrieval.ContextDoc{
			{ID: "doc1", Source: "kb"},
			{ID: "mem1", Source: "ltm"},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.SourcesUsed != 2 {
		t.Errorf("sources_used: got %d, want 2", got.SourcesUsed)
	}
}
