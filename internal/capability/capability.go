package capability

import (
	"context"

	"github.com/triagehq/triage/internal/memory"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/ticket"
)

// Classification is the verdict produced by a classification capability.
type Classification struct {
	Intent            string   `json:"intent"`
	Domain            string   `json:"domain"`
	RequiresKnowledge bool     `json:"requires_knowledge"`
	RecommendedTools  []string `json:"recommended_tool"`
	Confidence        float64  `json:"confidence"`
}

// Action is one tool invocation proposed by a resolution capability.
type Action struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Resolution is the verdict produced by a resolution capability.
type Resolution struct {
	Response    string   `json:"response_text"`
	Confidence  float64  `json:"confidence"`
	Actions     []Action `json:"actions"`
	Explanation string   `json:"explanation"`
	SourcesUsed int      `json:"sources_used"`
}

// ResolveInput carries everything a resolver may consult.
type ResolveInput struct {
	Ticket       *ticket.Ticket
	ContextDocs  []retrieval.ContextDoc
	AllowedTools []string
	ShortTerm    []memory.ShortTermEntry
	Messages     []memory.Message
	LongTerm     []memory.SearchHit
}

// Classifier labels a ticket with intent, domain and tool recommendations.
// Implementations clamp confidence to [0,1]; downstream policy does not
// re-clamp.
type Classifier interface {
	Classify(ctx context.Context, t *ticket.Ticket) (*Classification, error)
}

// Resolver drafts a response and proposed actions for a ticket. Resolvers
// must degrade to a low-confidence fallback verdict instead of returning an
// error wherever possible; the engine's fault containment is a backstop, not
// the primary error path.
type Resolver interface {
	Resolve(ctx context.Context, in ResolveInput) (*Resolution, error)
}
