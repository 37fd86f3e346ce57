// Package fake provides an in-memory vector store that returns documents in
// insertion order and records the searches made against it.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores"
)

// Search is one recorded SimilaritySearch call.
type Search struct {
	Query   string
	K       int
	Options vectorstores.Options
}

type Store struct {
	mu       sync.Mutex
	ids      []string
	docs     []schema.Document
	idSeq    int
	searches []Search

	// SearchErr is returned by every search when set.
	SearchErr error
	// IgnoreK makes searches return every stored document regardless of k.
	IgnoreK bool
}

var (
	_ vectorstores.VectorStore       = (*Store)(nil)
	_ vectorstores.CollectionManager = (*Store)(nil)
)

func New(docs ...schema.Document) *Store {
	s := &Store{}
	_, _ = s.AddDocuments(context.Background(), docs)
	return s
}

func (s *Store) AddDocuments(_ context.Context, docs []schema.Document, _ ...vectorstores.Option) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := fmt.Sprintf("fake-id-%d", s.idSeq)
		s.idSeq++
		s.ids = append(s.ids, id)
		s.docs = append(s.docs, doc)
		ids[i] = id
	}
	return ids, nil
}

// SimilaritySearch returns the first numDocuments stored documents.
func (s *Store) SimilaritySearch(_ context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searches = append(s.searches, Search{
		Query:   query,
		K:       numDocuments,
		Options: vectorstores.ParseOptions(options...),
	})
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}

	n := len(s.docs)
	if !s.IgnoreK {
		n = min(n, max(numDocuments, 0))
	}
	out := make([]schema.Document, n)
	copy(out, s.docs[:n])
	return out, nil
}

// SimilaritySearchWithScores scores results 1.0 and descending by 0.01 per rank.
func (s *Store) SimilaritySearchWithScores(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]vectorstores.DocumentWithScore, error) {
	docs, err := s.SimilaritySearch(ctx, query, numDocuments, options...)
	if err != nil {
		return nil, err
	}

	results := make([]vectorstores.DocumentWithScore, len(docs))
	for i, doc := range docs {
		results[i] = vectorstores.DocumentWithScore{
			Document: doc,
			Score:    1.0 - float32(i)*0.01,
		}
	}
	return results, nil
}

func (s *Store) DeleteCollection(_ context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.docs = nil
	return nil
}

func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	return []string{"fake-collection"}, nil
}

// Docs returns the stored documents in insertion order.
func (s *Store) Docs() []schema.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Store) Searches() []Search {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Search, len(s.searches))
	copy(out, s.searches)
	return out
}

// LastSearch returns the most recent search, or false if none was made.
func (s *Store) LastSearch() (Search, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.searches) == 0 {
		return Search{}, false
	}
	return s.searches[len(s.searches)-1], true
}
