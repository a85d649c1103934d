package capability

import (
	"context"
	"strings"

	"github.com/triagehq/triage/internal/ticket"
)

// RuleClassifier is a keyword-heuristic classifier. It is the zero-config
// default and the reference implementation of the Classifier contract.
type RuleClassifier struct{}

// NewRuleClassifier creates the heuristic classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(_ context.Context, t *ticket.Ticket) (*Classification, error) {
	text := strings.ToLower(t.Text)

	out := &Classification{
		Intent:           "unknown",
		Domain:           "support",
		RecommendedTools: []string{},
	}

	switch {
	case strings.Contains(text, "refund") || strings.Contains(text, "money back") || strings.Contains(text, "returned"):
		out.Intent = "refund_request"
		out.RecommendedTools = []string{"refund"}
		out.RequiresKnowledge = true
	case strings.Contains(text, "change address") || strings.Contains(text, "update address"):
		out.Intent = "account_update"
		out.RecommendedTools = []string{"account_lookup"}
	case strings.Contains(text, "cancel order") || strings.Contains(text, "cancel my order"):
		out.Intent = "cancel_order"
		out.RecommendedTools = []string{"refund", "account_lookup"}
		out.RequiresKnowledge = true
	}

	if out.Intent != "unknown" {
		out.Confidence = 0.9
	} else {
		out.Confidence = 0.25
	}
	return out, nil
}

// RuleResolver is a keyword-heuristic resolver, the zero-config default
// counterpart to RuleClassifier.
type RuleResolver struct{}

// NewRuleResolver creates the heuristic resolver.
func NewRuleResolver() *RuleResolver {
	return &RuleResolver{}
}

func (r *RuleResolver) Resolve(_ context.Context, in ResolveInput) (*Resolution, error) {
	text := strings.ToLower(in.Ticket.Text)

	out := &Resolution{
		Explanation: "rule-based resolver",
		SourcesUsed: len(in.ContextDocs),
	}

	switch {
	case strings.Contains(text, "refund"):
		out.Response = "We can process a refund. Please confirm your order id and the amount to proceed."
		out.Actions = []Action{{
			Tool:   "refund",
			Params: map[string]any{"user_id": in.Ticket.UserID, "order_id": nil, "amount": nil},
		}}
		out.Confidence = 0.8
	case strings.Contains(text, "address"):
		out.Response = "We can update your address. Please confirm the new address and last 4 digits of payment method."
		out.Actions = []Action{{
			Tool:   "account_lookup",
			Params: map[string]any{"user_id": in.Ticket.UserID, "update_fields": map[string]any{"address": nil}},
		}}
		out.Confidence = 0.75
	default:
		out.Response = "Thanks for contacting support. Could you clarify your request so we can help?"
		out.Confidence = 0.35
	}
	return out, nil
}
