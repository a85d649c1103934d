package policy

import (
	"fmt"

	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/ticket"
)

// Composite score weights: classification confidence carries more signal
// than resolution confidence.
const (
	classifierWeight = 0.6
	resolverWeight   = 0.4
)

// destructiveTools are tool names that must never run automatically on a
// high-urgency ticket.
var destructiveTools = map[string]bool{
	"refund":         true,
	"account_lookup": true,
}

// Config holds the policy thresholds.
type Config struct {
	// AutoThreshold is the minimum composite score for auto-resolution.
	AutoThreshold float64
	// SafeThreshold is the minimum composite score to hold for human QA
	// instead of escalating.
	SafeThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{AutoThreshold: 0.75, SafeThreshold: 0.5}
}

// Disposition is the three-way outcome of the policy.
type Disposition string

const (
	DispositionAutoResolve   Disposition = "auto_resolve"
	DispositionHoldForReview Disposition = "hold_for_review"
	DispositionEscalate      Disposition = "escalate"
)

// Decision is the policy output. AutoResolve and Escalate are never both
// true; both false is the deliberate hold-for-review disposition, not a
// no-op.
type Decision struct {
	Retrieve    bool   `json:"retrieve"`
	AutoResolve bool   `json:"auto_resolve"`
	Escalate    bool   `json:"escalate"`
	Reason      string `json:"reason"`
}

// Disposition maps the two booleans onto the explicit tri-state outcome.
func (d Decision) Disposition() Disposition {
	switch {
	case d.AutoResolve:
		return DispositionAutoResolve
	case d.Escalate:
		return DispositionEscalate
	default:
		return DispositionHoldForReview
	}
}

// Policy turns verdict confidences and ticket metadata into a Decision.
// Decide is pure: no side effects, deterministic for identical inputs.
type Policy struct {
	cfg Config
}

// New creates a policy with the given thresholds, falling back to defaults
// for unset values.
func New(cfg Config) *Policy {
	if cfg.AutoThreshold == 0 {
		cfg.AutoThreshold = 0.75
	}
	if cfg.SafeThreshold == 0 {
		cfg.SafeThreshold = 0.5
	}
	return &Policy{cfg: cfg}
}

// Decide evaluates the decision table. Confidences are assumed already
// clamped to [0,1] by the producing capabilities.
func (p *Policy) Decide(c *capability.Classification, r *capability.Resolution, t *ticket.Ticket) Decision {
	var cConf, rConf float64
	var requiresKnowledge bool
	if c != nil {
		cConf = c.Confidence
		requiresKnowledge = c.RequiresKnowledge
	}
	if r != nil {
		rConf = r.Confidence
	}

	composite := classifierWeight*cConf + resolverWeight*rConf
	reason := fmt.Sprintf("composite=%.3f (c=%g, r=%g)", composite, cConf, rConf)

	// Safety override comes before any threshold band.
	if t != nil && t.Urgency() == ticket.UrgencyHigh && hasDestructiveAction(r) {
		return Decision{
			Retrieve:    true,
			AutoResolve: false,
			Escalate:    true,
			Reason:      "high urgency + destructive action",
		}
	}

	switch {
	case composite >= p.cfg.AutoThreshold:
		return Decision{
			Retrieve:    requiresKnowledge,
			AutoResolve: true,
			Escalate:    false,
			Reason:      reason,
		}
	case composite >= p.cfg.SafeThreshold:
		return Decision{
			Retrieve:    requiresKnowledge,
			AutoResolve: false,
			Escalate:    false,
			Reason:      reason + " (safe resolution, QA required)",
		}
	default:
		return Decision{
			Retrieve:    true,
			AutoResolve: false,
			Escalate:    true,
			Reason:      reason + " (low confidence)",
		}
	}
}

func hasDestructiveAction(r *capability.Resolution) bool {
	if r == nil {
		return false
	}
	for _, a := range r.Actions {
		if destructiveTools[a.Tool] {
			return true
		}
	}
	return false
}
