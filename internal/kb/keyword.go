package kb

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// snippetLen caps how much of a matching document is returned.
const snippetLen = 400

// maxQueryTokens limits how many query tokens participate in matching.
const maxQueryTokens = 6

// kbPatterns are the file types treated as knowledge-base documents.
var kbPatterns = []string{"**/*.txt", "**/*.md"}

// KeywordSearcher is a naive containment search over a directory of text
// documents. It needs no index and no embeddings, which makes it the
// always-available fallback behind the semantic searcher.
type KeywordSearcher struct {
	dir string
}

// NewKeywordSearcher creates a searcher over the given knowledge-base directory.
func NewKeywordSearcher(dir string) *KeywordSearcher {
	return &KeywordSearcher{dir: dir}
}

func (s *KeywordSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) > maxQueryTokens {
		tokens = tokens[:maxQueryTokens]
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	paths, err := ListDocuments(s.dir)
	if err != nil {
		return nil, err
	}

	var results []Result
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		content := strings.ToLower(string(data))

		matched := false
		for _, tok := range tokens {
			if strings.Contains(content, tok) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		snippet := content
		if len(snippet) > snippetLen {
			snippet = snippet[:snippetLen]
		}
		results = append(results, Result{
			ID:     path,
			Source: SourceKB,
			Score:  0.5, // keyword match carries no meaningful relevance score
			Text:   snippet,
			Metadata: map[string]string{
				"path": path,
			},
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// ListDocuments returns all knowledge-base document paths under dir, sorted
// for deterministic iteration order.
func ListDocuments(dir string) ([]string, error) {
	var paths []string
	for _, pattern := range kbPatterns {
		matches, err := doublestar.FilepathGlob(dir + "/" + pattern)
		if err != nil {
			return nil, fmt.Errorf("globbing knowledge base %s: %w", dir, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}
