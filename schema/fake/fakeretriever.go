package fake

import (
	"context"
	"sync"

	"github.com/sevigo/sourceqa/schema"
)

// Retriever is a scripted schema.Retriever that remembers the queries it served.
type Retriever struct {
	DocsToReturn []schema.Document
	ErrToReturn  error

	mu      sync.Mutex
	queries []string
}

// NewRetriever creates a new fake retriever returning docs.
func NewRetriever(docs ...schema.Document) *Retriever {
	return &Retriever{DocsToReturn: docs}
}

// GetRelevantDocuments returns the pre-configured documents and error.
func (r *Retriever) GetRelevantDocuments(_ context.Context, query string) ([]schema.Document, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()

	if r.ErrToReturn != nil {
		return nil, r.ErrToReturn
	}
	return r.DocsToReturn, nil
}

// Queries returns every query received so far.
func (r *Retriever) Queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}
