package chains

import (
	"context"
	"fmt"

	"github.com/sevigo/sourceqa/schema"
)

// RetrievalQAWithSources is VectorDBQAWithSources over any schema.Retriever.
// The retriever decides how many documents to return.
type RetrievalQAWithSources struct {
	Retriever             schema.Retriever
	Combine               CombineDocuments
	ReduceKBelowMaxTokens bool
	MaxTokensLimit        int

	qaWithSources
}

var _ Chain = (*RetrievalQAWithSources)(nil)

func NewRetrievalQAWithSources(retriever schema.Retriever, combine CombineDocuments, opts ...Option) (*RetrievalQAWithSources, error) {
	if retriever == nil {
		return nil, fmt.Errorf("%w: retriever", ErrNilDependency)
	}
	if combine == nil {
		return nil, fmt.Errorf("%w: combine documents chain", ErrNilDependency)
	}

	o := applyOptions(opts...)
	if o.maxTokensLimit <= 0 {
		return nil, fmt.Errorf("%w: max tokens limit must be positive, got %d", ErrInvalidConfig, o.maxTokensLimit)
	}

	return &RetrievalQAWithSources{
		Retriever:             retriever,
		Combine:               combine,
		ReduceKBelowMaxTokens: o.reduceKBelowMaxTokens,
		MaxTokensLimit:        o.maxTokensLimit,
		qaWithSources: qaWithSources{
			questionKey:           o.questionKey,
			returnSourceDocuments: o.returnSourceDocuments,
			logger:                o.logger.With("component", "retrieval_qa_with_sources_chain"),
		},
	}, nil
}

func (c *RetrievalQAWithSources) GetDocs(ctx context.Context, inputs map[string]any) ([]schema.Document, error) {
	question, err := c.question(inputs)
	if err != nil {
		return nil, err
	}
	docs, err := c.Retriever.GetRelevantDocuments(ctx, question)
	if err != nil {
		c.logger.ErrorContext(ctx, "Document retrieval failed", "error", err)
		return nil, err
	}
	return reduceTokensBelowLimit(ctx, c.Combine, docs, c.ReduceKBelowMaxTokens, c.MaxTokensLimit)
}

func (c *RetrievalQAWithSources) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	question, err := c.question(inputs)
	if err != nil {
		return nil, err
	}
	docs, err := c.GetDocs(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return c.answer(ctx, c.Combine, inputs, question, docs, opts...)
}

func (c *RetrievalQAWithSources) InputKeys() []string {
	return c.inputKeys()
}

func (c *RetrievalQAWithSources) OutputKeys() []string {
	return c.outputKeys()
}

func (c *RetrievalQAWithSources) ChainType() string {
	return "retrieval_qa_with_sources_chain"
}
