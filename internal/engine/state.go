package engine

import (
	"encoding/json"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/memory"
	"github.com/triagehq/triage/internal/policy"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
	"github.com/triagehq/triage/internal/tools"
)

// Phase tracks how far a ticket has advanced through the step graph.
type Phase string

const (
	PhaseLoaded     Phase = "LOADED"
	PhaseClassified Phase = "CLASSIFIED"
	PhaseRetrieved  Phase = "RETRIEVED"
	PhaseResolved   Phase = "RESOLVED"
	PhaseDecided    Phase = "DECIDED"
	PhaseActed      Phase = "ACTED"
	PhaseEscalated  Phase = "ESCALATED"
	PhaseReviewed   Phase = "REVIEWED"
	PhaseFinalized  Phase = "FINALIZED"
)

// StepError marks which step failed and why. Set by fault containment; its
// presence never stops the pipeline from reaching finalize.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// ToolResult records one dispatched tool action and its structured outcome.
type ToolResult struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
	Result tools.Result   `json:"result"`
}

// State is the mutable record threaded through all steps. Every field
// except Ticket is absent until its producing step runs; later steps must
// tolerate absence. One State is owned by exactly one Run invocation.
type State struct {
	Ticket    *ticket.Ticket
	SessionID string

	ShortTerm      []memory.ShortTermEntry
	Messages       []memory.Message
	LongTerm       []memory.SearchHit
	Classification *capability.Classification
	ContextDocs    []retrieval.ContextDoc
	Resolution     *capability.Resolution
	Decision       *policy.Decision
	ToolResults    []ToolResult

	Trail *audit.Trail
	Err   *StepError
	Phase Phase
}

// Result is what Run hands back: the final verdicts plus the full trail.
type Result struct {
	TicketID       string                     `json:"ticket_id"`
	SessionID      string                     `json:"session_id"`
	Classification *capability.Classification `json:"classification,omitempty"`
	Resolution     *capability.Resolution     `json:"resolution,omitempty"`
	Decision       *policy.Decision           `json:"decision,omitempty"`
	ToolResults    []ToolResult               `json:"tool_results,omitempty"`
	Trail          *audit.Trail               `json:"audit"`
	Err            *StepError                 `json:"error,omitempty"`
	Phase          Phase                      `json:"phase"`
}

// FallbackResponse is returned to the user when no resolution text exists.
const FallbackResponse = "Thanks for contacting support. Your request has been received and a member of our team will follow up shortly."

// Response returns the user-facing reply, falling back to a generic message
// so a ticket never surfaces a crash to the end user.
func (r *Result) Response() string {
	if r.Resolution != nil && r.Resolution.Response != "" {
		return r.Resolution.Response
	}
	return FallbackResponse
}

// asPayload converts a typed verdict into the loose map shape audit events
// carry, via a JSON round-trip.
func asPayload(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"marshal_error": err.Error()}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"marshal_error": err.Error()}
	}
	return out
}
