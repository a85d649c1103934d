package kb

import "context"

// Source tags carried on results so retrieval provenance survives merging.
const (
	SourceKB = "kb"
)

// Result is one knowledge-base document hit.
type Result struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Searcher finds knowledge-base documents relevant to a query. It is the
// fallback document retrieval consulted when a ticket requires external
// context.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
