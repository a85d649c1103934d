package audit

import (
	"time"

	"github.com/google/uuid"
)

// Step names recorded by the workflow engine. Error variants carry an
// `_error` suffix so trails stay greppable.
const (
	StepLoadContext  = "load_context"
	StepIngest       = "ingest"
	StepClassifier   = "classifier"
	StepLTMRetrieve  = "ltm_retrieve"
	StepRetrieve     = "retrieve"
	StepResolver     = "resolver"
	StepDecision     = "decision"
	StepToolCall     = "tool_call"
	StepEscalation   = "escalation"
	StepManualReview = "manual_review"
	StepFinalize     = "finalize"
	StepNodeError    = "node_error"
)

// Event is a single step record on a trail. Events are never mutated after
// being appended.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Step      string         `json:"step"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Trail is the append-only audit record for one ticket invocation. It lives
// in memory while the engine runs and is persisted exactly once at finalize.
type Trail struct {
	ID        string    `json:"trail_id"`
	TicketID  string    `json:"ticket_id"`
	CreatedAt time.Time `json:"created_at"`
	Events    []Event   `json:"events"`
}

// NewTrail creates an empty trail for the given ticket.
func NewTrail(ticketID string) *Trail {
	return &Trail{
		ID:        uuid.New().String(),
		TicketID:  ticketID,
		CreatedAt: time.Now().UTC(),
		Events:    []Event{},
	}
}

// Append adds an event to the trail and returns it. Existing events are
// only ever extended, never rewritten.
func (t *Trail) Append(step string, payload map[string]any) Event {
	e := Event{
		Timestamp: time.Now().UTC(),
		Step:      step,
		Payload:   payload,
	}
	t.Events = append(t.Events, e)
	return e
}

// AppendError records a failure for the given step under a `<step>_error`
// name so lookup failures stay distinguishable from step output events.
func (t *Trail) AppendError(step string, err error) Event {
	return t.Append(step+"_error", map[string]any{"error": err.Error()})
}

// Len returns the number of events on the trail.
func (t *Trail) Len() int {
	return len(t.Events)
}

// Last returns up to n most recent events, oldest first.
func (t *Trail) Last(n int) []Event {
	if n <= 0 || len(t.Events) == 0 {
		return nil
	}
	if n > len(t.Events) {
		n = len(t.Events)
	}
	return t.Events[len(t.Events)-n:]
}
