package engine

import (
	"strings"
	"testing"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
)

func TestBuildEscalationFullContext(t *testing.T) {
	tk := &ticket.Ticket{
		ID:       "t-500",
		Platform: ticket.PlatformEmail,
		UserID:   "user_abc",
		Text:     "I demand a refund immediately",
		Metadata: map[string]string{"urgency": "high"},
	}
	c := &capability.Classification{Intent: "refund_request", Confidence: 0.9}
	r := &capability.Resolution{
		Response:    "We can process that refund.",
		Confidence:  0.8,
		Explanation: "matched refund policy",
	}
	docs := []retrieval.ContextDoc{
		{ID: "kb/refunds.md", Source: "kb", Score: 0.5},
		{ID: "mem-1", Source: "ltm", Score: 0.91},
	}
	trail := audit.NewTrail("t-500")
	trail.Append(audit.StepIngest, nil)
	trail.Append(audit.StepDecision, nil)

	md := BuildEscalation(tk, c, r, docs, trail.Last(5))

	for _, want := range []string{
		"t-500",
		"user_abc",
		"high",
		"refund_request",
		"I demand a refund immediately",
		"We can process that refund.",
		"matched refund policy",
		"kb `kb/refunds.md`",
		"ltm `mem-1`",
		"`ingest`",
		"`decision`",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %q:\n%s", want, md)
		}
	}
}

func TestBuildEscalationDegradesGracefully(t *testing.T) {
	tk := &ticket.Ticket{ID: "t-501", Text: "help"}

	md := BuildEscalation(tk, nil, nil, nil, nil)
	if !strings.Contains(md, "t-501") {
		t.Errorf("summary should still name the ticket:\n%s", md)
	}
	if strings.Contains(md, "Suggested resolution") {
		t.Error("missing resolution must not produce an empty section")
	}
	if strings.Contains(md, "Retrieved context") {
		t.Error("no docs must not produce an empty section")
	}
}
