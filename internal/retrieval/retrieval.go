package retrieval

import (
	"context"
	"strings"

	"github.com/triagehq/triage/internal/kb"
	"github.com/triagehq/triage/internal/memory"
)

// Source tags recorded on merged context documents.
const (
	SourceKB  = "kb"
	SourceLTM = "ltm"
)

// maxQueryTokens caps how much ticket text feeds the retrieval query.
const maxQueryTokens = 20

// ContextDoc is one provenance-tagged document handed to the resolution
// capability.
type ContextDoc struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Score    float64           `json:"score"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Query reduces ticket text to a retrieval query: the first 20 whitespace
// tokens. A placeholder for smarter query expansion.
func Query(ticketText string) string {
	tokens := strings.Fields(strings.TrimSpace(ticketText))
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}
	return strings.Join(tokens, " ")
}

// Merge combines fallback knowledge-base hits with long-term memory hits
// into one ordered context list. Fallback hits come first, then long-term
// hits whose document id is not already present. There is no score-based
// re-ranking across sources: keyword overlap and vector similarity are not
// commensurable, so provenance determines ordering.
func Merge(fallback []kb.Result, ltm []memory.SearchHit) []ContextDoc {
	merged := make([]ContextDoc, 0, len(fallback)+len(ltm))
	seen := make(map[string]bool, len(fallback))

	for _, r := range fallback {
		source := r.Source
		if source == "" {
			source = SourceKB
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		merged = append(merged, ContextDoc{
			ID:       r.ID,
			Source:   source,
			Score:    r.Score,
			Text:     r.Text,
			Metadata: r.Metadata,
		})
	}

	for _, h := range ltm {
		if seen[h.Entry.ID] {
			continue
		}
		seen[h.Entry.ID] = true
		merged = append(merged, ContextDoc{
			ID:       h.Entry.ID,
			Source:   SourceLTM,
			Score:    h.Score,
			Text:     h.Entry.Text,
			Metadata: h.Entry.Metadata,
		})
	}
	return merged
}

// Retriever runs the fallback document search and merges it with long-term
// memory hits gathered earlier in the pipeline.
type Retriever struct {
	Searcher kb.Searcher
	TopK     int
}

// Retrieve searches the knowledge base for the ticket text and merges the
// hits with the given long-term memory hits.
func (r *Retriever) Retrieve(ctx context.Context, ticketText string, ltm []memory.SearchHit) ([]ContextDoc, error) {
	topK := r.TopK
	if topK <= 0 {
		topK = 5
	}

	var fallback []kb.Result
	if r.Searcher != nil {
		var err error
		fallback, err = r.Searcher.Search(ctx, Query(ticketText), topK)
		if err != nil {
			return nil, err
		}
	}
	return Merge(fallback, ltm), nil
}
