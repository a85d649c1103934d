package engine

import (
	"fmt"
	"strings"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
)

// BuildEscalation renders the markdown handoff package a human agent
// receives when a ticket escalates. Any field may be missing; the summary
// degrades section by section rather than failing.
func BuildEscalation(t *ticket.Ticket, c *capability.Classification, r *capability.Resolution, docs []retrieval.ContextDoc, tail []audit.Event) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Escalation: ticket %s\n\n", t.ID)
	fmt.Fprintf(&b, "- **User:** %s\n", t.UserID)
	fmt.Fprintf(&b, "- **Platform:** %s\n", t.Platform)
	fmt.Fprintf(&b, "- **Urgency:** %s\n", t.Urgency())

	if c != nil {
		fmt.Fprintf(&b, "- **Intent:** %s (confidence=%.2f)\n", c.Intent, c.Confidence)
	}
	if r != nil {
		fmt.Fprintf(&b, "- **Resolver confidence:** %.2f\n", r.Confidence)
	}

	b.WriteString("\n## Ticket text\n\n")
	b.WriteString(t.Text)
	b.WriteString("\n")

	if r != nil {
		b.WriteString("\n## Suggested resolution\n\n")
		b.WriteString(r.Response)
		b.WriteString("\n")
		if r.Explanation != "" {
			fmt.Fprintf(&b, "\n_Reasoning: %s_\n", r.Explanation)
		}
	}

	if len(docs) > 0 {
		b.WriteString("\n## Retrieved context\n\n")
		for _, d := range docs {
			fmt.Fprintf(&b, "- %s `%s` (score=%.3f)\n", d.Source, d.ID, d.Score)
		}
	}

	if len(tail) > 0 {
		b.WriteString("\n## Recent processing events\n\n")
		for _, ev := range tail {
			fmt.Fprintf(&b, "- `%s` %s\n", ev.Step, ev.Timestamp.Format("15:04:05.000"))
		}
	}

	return b.String()
}
