package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/triagehq/triage/internal/embeddings"
)

const collectionName = "kb"

// ChromemSearcher is a semantic knowledge-base index backed by chromem-go.
// It ranks documents by embedding similarity rather than keyword overlap.
type ChromemSearcher struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemSearcher creates an empty in-memory semantic index.
func NewChromemSearcher(embedder embeddings.Embedder) (*ChromemSearcher, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemSearcher{db: db, collection: col, embedFunc: ef}, nil
}

func (s *ChromemSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	// chromem-go requires nResults <= collection size.
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	hits, err := s.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		results[i] = Result{
			ID:       h.ID,
			Source:   SourceKB,
			Score:    float64(h.Similarity),
			Text:     h.Content,
			Metadata: h.Metadata,
		}
	}
	return results, nil
}

// IndexDir (re)builds the collection from every document under dir. The
// progress callback, if non-nil, is invoked once per indexed file.
func (s *ChromemSearcher) IndexDir(ctx context.Context, dir string, progress func(current, total int, path string)) (int, error) {
	paths, err := ListDocuments(dir)
	if err != nil {
		return 0, err
	}

	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return i, fmt.Errorf("reading %s: %w", path, err)
		}

		doc := chromem.Document{
			ID:      path,
			Content: string(data),
			Metadata: map[string]string{
				"path": path,
				"name": filepath.Base(path),
			},
		}
		if err := s.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
			return i, fmt.Errorf("indexing %s: %w", path, err)
		}
		if progress != nil {
			progress(i+1, len(paths), path)
		}
	}
	return len(paths), nil
}

// Persist saves the index to the given directory.
func (s *ChromemSearcher) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return s.db.ExportToFile(filepath.Join(dir, "kb.gob.gz"), true, "")
}

// Load restores the index from the given directory.
func (s *ChromemSearcher) Load(dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, "kb.gob.gz"), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// Count returns the number of indexed documents.
func (s *ChromemSearcher) Count() int {
	return s.collection.Count()
}
