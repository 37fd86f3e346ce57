package vectorstores

import (
	"context"

	"github.com/sevigo/sourceqa/schema"
)

type retriever struct {
	store   VectorStore
	numDocs int
	options []Option
}

var _ schema.Retriever = retriever{}

func (r retriever) GetRelevantDocuments(ctx context.Context, query string) ([]schema.Document, error) {
	return r.store.SimilaritySearch(ctx, query, r.numDocs, r.options...)
}

// ToRetriever adapts a vector store to schema.Retriever. The options are
// passed to every search.
func ToRetriever(store VectorStore, numDocs int, options ...Option) schema.Retriever {
	return retriever{
		store:   store,
		numDocs: numDocs,
		options: options,
	}
}
