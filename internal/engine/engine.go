package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/memory"
	"github.com/triagehq/triage/internal/policy"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
	"github.com/triagehq/triage/internal/tools"
)

// DefaultTopK is the long-term memory search depth.
const DefaultTopK = 5

// auditTailEvents is how many trailing audit events an escalation summary
// includes.
const auditTailEvents = 5

// Deps are the collaborators one Engine instance is built from. One Engine
// serves many concurrent Run calls; all shared state lives in the stores.
type Deps struct {
	Memory     *memory.Store
	AuditStore *audit.Store
	Classifier capability.Classifier
	Resolver   capability.Resolver
	Policy     *policy.Policy
	Retriever  *retrieval.Retriever
	Tools      *tools.Registry
	TopK       int
}

// Engine drives the fixed step sequence for one ticket at a time per Run
// call: load context, classify, search memory, retrieve, resolve, decide,
// branch, finalize. Every step is fault-contained so a ticket always
// terminates in a recorded state.
type Engine struct {
	deps Deps
}

// New creates an engine. Memory, AuditStore, Classifier, Resolver and Tools
// are required; Policy and Retriever get defaults when nil.
func New(deps Deps) (*Engine, error) {
	switch {
	case deps.Memory == nil:
		return nil, fmt.Errorf("engine: memory store is required")
	case deps.AuditStore == nil:
		return nil, fmt.Errorf("engine: audit store is required")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("engine: classifier is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("engine: resolver is required")
	case deps.Tools == nil:
		return nil, fmt.Errorf("engine: tool registry is required")
	}
	if deps.Policy == nil {
		deps.Policy = policy.New(policy.DefaultConfig())
	}
	if deps.Retriever == nil {
		deps.Retriever = &retrieval.Retriever{}
	}
	if deps.TopK <= 0 {
		deps.TopK = DefaultTopK
	}
	return &Engine{deps: deps}, nil
}

// step is one node of the graph: a name for audit purposes plus its body.
type step struct {
	name string
	fn   func(ctx context.Context, s *State) error
}

// Run processes one ticket to completion. Step failures are contained into
// the result; the only returned error is a nil ticket.
func (e *Engine) Run(ctx context.Context, t *ticket.Ticket, sessionID string) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("engine: nil ticket")
	}

	s := &State{Ticket: t, SessionID: resolveSession(t, sessionID)}

	steps := []step{
		{audit.StepLoadContext, e.loadContext},
		{audit.StepIngest, e.ingest},
		{"classify", e.classify},
		{audit.StepLTMRetrieve, e.ltmRetrieve},
		{audit.StepRetrieve, e.retrieve},
		{"resolve", e.resolve},
		{"decide", e.decide},
		{"branch", e.branch},
		{audit.StepFinalize, e.finalize},
	}

	for _, st := range steps {
		e.runStep(ctx, s, st)
	}

	return &Result{
		TicketID:       t.ID,
		SessionID:      s.SessionID,
		Classification: s.Classification,
		Resolution:     s.Resolution,
		Decision:       s.Decision,
		ToolResults:    s.ToolResults,
		Trail:          s.Trail,
		Err:            s.Err,
		Phase:          s.Phase,
	}, nil
}

// runStep is the fault containment combinator. A failing step is recorded
// on the trail, marks the state, forces an escalate decision if none exists
// yet, and lets execution continue so finalize always runs.
func (e *Engine) runStep(ctx context.Context, s *State, st step) {
	err := st.fn(ctx, s)
	if err == nil {
		return
	}

	e.ensureTrail(s)
	s.Trail.Append(audit.StepNodeError, map[string]any{
		"node":  st.name,
		"error": err.Error(),
	})
	s.Err = &StepError{Step: st.name, Error: err.Error()}
	if s.Decision == nil {
		s.Decision = &policy.Decision{
			Retrieve:    true,
			AutoResolve: false,
			Escalate:    true,
			Reason:      "node_error",
		}
	}
}

// ensureTrail guarantees an audit trail exists, creating a minimal one keyed
// by the ticket id if a step failed before ingest could run.
func (e *Engine) ensureTrail(s *State) {
	if s.Trail == nil {
		s.Trail = audit.NewTrail(s.Ticket.ID)
	}
}

func resolveSession(t *ticket.Ticket, sessionID string) string {
	if sessionID != "" {
		return sessionID
	}
	if tid := t.ThreadID(); tid != "" {
		return tid
	}
	return "session_" + t.ID
}

// --- steps ---

func (e *Engine) loadContext(ctx context.Context, s *State) error {
	e.ensureTrail(s)

	short, err := e.deps.Memory.GetShort(ctx, s.SessionID)
	if err != nil {
		// Never abort on lookup failure: continue with empty context.
		s.Trail.AppendError(audit.StepLoadContext, err)
	} else {
		s.ShortTerm = short
	}

	msgs, err := e.deps.Memory.GetMessages(ctx, memory.MessageFilter{
		SessionID: s.SessionID,
		TicketID:  s.Ticket.ID,
		UserID:    s.Ticket.UserID,
		Limit:     100,
	})
	if err != nil {
		s.Trail.AppendError(audit.StepLoadContext, err)
	} else {
		s.Messages = msgs
	}

	s.Phase = PhaseLoaded
	return nil
}

func (e *Engine) ingest(_ context.Context, s *State) error {
	e.ensureTrail(s)
	s.Trail.Append(audit.StepIngest, map[string]any{
		"ticket_id": s.Ticket.ID,
		"platform":  string(s.Ticket.Platform),
		"user_id":   s.Ticket.UserID,
		"urgency":   s.Ticket.Urgency(),
	})
	return nil
}

func (e *Engine) classify(ctx context.Context, s *State) error {
	c, err := e.deps.Classifier.Classify(ctx, s.Ticket)
	if err != nil {
		return fmt.Errorf("classify: %w", err)
	}
	s.Classification = c
	s.Trail.Append(audit.StepClassifier, asPayload(c))
	s.Phase = PhaseClassified
	return nil
}

func (e *Engine) ltmRetrieve(ctx context.Context, s *State) error {
	if strings.TrimSpace(s.Ticket.Text) == "" {
		return nil
	}

	hits, err := e.deps.Memory.SemanticSearch(ctx, retrieval.Query(s.Ticket.Text), e.deps.TopK)
	if err != nil {
		// Search failure must not fail the ticket.
		s.Trail.AppendError(audit.StepLTMRetrieve, err)
		return nil
	}
	s.LongTerm = hits
	s.Trail.Append(audit.StepLTMRetrieve, map[string]any{"count": len(hits)})
	return nil
}

func (e *Engine) retrieve(ctx context.Context, s *State) error {
	if s.Classification == nil || !s.Classification.RequiresKnowledge {
		s.ContextDocs = []retrieval.ContextDoc{}
		s.Trail.Append(audit.StepRetrieve, map[string]any{"count": 0, "skipped": true})
		s.Phase = PhaseRetrieved
		return nil
	}

	docs, err := e.deps.Retriever.Retrieve(ctx, s.Ticket.Text, s.LongTerm)
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}
	s.ContextDocs = docs

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	s.Trail.Append(audit.StepRetrieve, map[string]any{"count": len(docs), "docs": ids})
	s.Phase = PhaseRetrieved
	return nil
}

func (e *Engine) resolve(ctx context.Context, s *State) error {
	var allowed []string
	if s.Classification != nil {
		allowed = s.Classification.RecommendedTools
	}

	r, err := e.deps.Resolver.Resolve(ctx, capability.ResolveInput{
		Ticket:       s.Ticket,
		ContextDocs:  s.ContextDocs,
		AllowedTools: allowed,
		ShortTerm:    s.ShortTerm,
		Messages:     s.Messages,
		LongTerm:     s.LongTerm,
	})
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}
	s.Resolution = r
	s.Trail.Append(audit.StepResolver, asPayload(r))
	s.Phase = PhaseResolved
	return nil
}

func (e *Engine) decide(_ context.Context, s *State) error {
	// A forced decision from an earlier step failure stands.
	if s.Err != nil && s.Decision != nil {
		s.Trail.Append(audit.StepDecision, asPayload(*s.Decision))
		s.Phase = PhaseDecided
		return nil
	}

	d := e.deps.Policy.Decide(s.Classification, s.Resolution, s.Ticket)
	s.Decision = &d
	s.Trail.Append(audit.StepDecision, asPayload(d))
	s.Phase = PhaseDecided
	return nil
}

// branch is the single conditional fan-out of the graph, keyed on the
// decision's two booleans.
func (e *Engine) branch(ctx context.Context, s *State) error {
	switch {
	case s.Decision != nil && s.Decision.AutoResolve:
		e.executeTools(ctx, s)
		s.Phase = PhaseActed
	case s.Decision != nil && s.Decision.Escalate:
		summary := BuildEscalation(s.Ticket, s.Classification, s.Resolution, s.ContextDocs, s.Trail.Last(auditTailEvents))
		s.Trail.Append(audit.StepEscalation, map[string]any{
			"ticket_id":     s.Ticket.ID,
			"escalation_md": summary,
		})
		s.Phase = PhaseEscalated
	default:
		// Hold-for-review is a deliberate third disposition, not a no-op.
		s.Trail.Append(audit.StepManualReview, map[string]any{"reason": "safe_resolve_path"})
		s.Phase = PhaseReviewed
	}
	return nil
}

func (e *Engine) executeTools(ctx context.Context, s *State) {
	if s.Resolution == nil {
		return
	}

	for _, action := range s.Resolution.Actions {
		params := fillParams(action.Params, s.Ticket)

		result, err := e.deps.Tools.Execute(ctx, action.Tool, params)
		if err != nil {
			// Infrastructure failure becomes a failure result, recorded
			// like any other tool outcome.
			result = tools.Result{"success": false, "error": err.Error()}
		}

		s.ToolResults = append(s.ToolResults, ToolResult{
			Tool:   action.Tool,
			Params: params,
			Result: result,
		})
		s.Trail.Append(audit.StepToolCall, map[string]any{
			"tool":   action.Tool,
			"params": params,
			"result": map[string]any(result),
		})
	}
}

// fillParams copies the action parameters, supplying user_id from the ticket
// and order_id from the rightmost purely numeric token of the ticket text.
func fillParams(params map[string]any, t *ticket.Ticket) map[string]any {
	out := make(map[string]any, len(params)+2)
	for k, v := range params {
		out[k] = v
	}

	if v, ok := out["user_id"]; !ok || v == nil || v == "" {
		out["user_id"] = t.UserID
	}
	if v, ok := out["order_id"]; !ok || v == nil || v == "" {
		if id := extractOrderID(t.Text); id != "" {
			out["order_id"] = id
		}
	}
	return out
}

// extractOrderID scans ticket text tokens right to left and returns the
// first purely numeric token, with trailing punctuation trimmed.
func extractOrderID(text string) string {
	tokens := strings.Fields(text)
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := strings.Trim(tokens[i], ".,")
		if tok != "" && isNumeric(tok) {
			return tok
		}
	}
	return ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// finalize persists the run. Its four sub-actions are independently
// contained: one failing never blocks the others.
func (e *Engine) finalize(ctx context.Context, s *State) error {
	e.ensureTrail(s)

	// 1. Short-term snapshot for the session.
	snapshot := map[string]any{}
	if s.Classification != nil {
		snapshot["classifier"] = asPayload(s.Classification)
	}
	if s.Resolution != nil {
		snapshot["resolver"] = asPayload(s.Resolution)
	}
	if s.Decision != nil {
		snapshot["decision"] = asPayload(s.Decision)
	}
	if _, err := e.deps.Memory.PutShort(ctx, s.SessionID, s.Ticket.ID, snapshot); err != nil {
		s.Trail.AppendError(audit.StepFinalize, fmt.Errorf("short-term snapshot: %w", err))
	}

	// 2. Conversation history: the user's message, then the agent reply.
	if strings.TrimSpace(s.Ticket.Text) != "" {
		if _, err := e.deps.Memory.PutMessage(ctx, s.SessionID, s.Ticket.ID, memory.RoleUser, s.Ticket.Text, nil); err != nil {
			s.Trail.AppendError(audit.StepFinalize, fmt.Errorf("user message: %w", err))
		}
	}
	if s.Resolution != nil && s.Resolution.Response != "" {
		if _, err := e.deps.Memory.PutMessage(ctx, s.SessionID, s.Ticket.ID, memory.RoleAgent, s.Resolution.Response, nil); err != nil {
			s.Trail.AppendError(audit.StepFinalize, fmt.Errorf("agent message: %w", err))
		}
	}

	// 3. Long-term memory of auto-resolved outcomes.
	if s.Decision != nil && s.Decision.AutoResolve && s.Resolution != nil && s.Resolution.Response != "" {
		meta := map[string]string{}
		if s.Classification != nil {
			meta["intent"] = s.Classification.Intent
		}
		summary := fmt.Sprintf("Ticket %s: %s\nResolution: %s", s.Ticket.ID, s.Ticket.Text, s.Resolution.Response)
		if _, err := e.deps.Memory.PutLong(ctx, s.Ticket.UserID, s.Ticket.ID, summary, nil, meta); err != nil {
			s.Trail.AppendError(audit.StepFinalize, fmt.Errorf("long-term entry: %w", err))
		}
	}

	// 4. The audit trail itself, persisted exactly once.
	s.Trail.Append(audit.StepFinalize, map[string]any{
		"session_id": s.SessionID,
		"events":     s.Trail.Len() + 1,
	})
	if err := e.deps.AuditStore.Persist(ctx, s.Trail); err != nil {
		log.Printf("engine: persisting audit trail for ticket %s: %v", s.Ticket.ID, err)
	}

	s.Phase = PhaseFinalized
	return nil
}
