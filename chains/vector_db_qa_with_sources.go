package chains

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores"
)

// VectorDBQAWithSources answers a question from the top K documents of a
// vector store and reports which sources the answer used.
type VectorDBQAWithSources struct {
	VectorStore vectorstores.VectorStore
	Combine     CombineDocuments

	// K is the number of documents requested from the store.
	K int
	// ReduceKBelowMaxTokens drops trailing documents until the rest fit in
	// MaxTokensLimit. Only honoured when Combine uses StrategyStuff.
	ReduceKBelowMaxTokens bool
	MaxTokensLimit        int
	// SearchKwargs are passed opaquely to the store on every search.
	SearchKwargs map[string]any

	qaWithSources
}

var _ Chain = (*VectorDBQAWithSources)(nil)

func NewVectorDBQAWithSources(store vectorstores.VectorStore, combine CombineDocuments, opts ...Option) (*VectorDBQAWithSources, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: vector store", ErrNilDependency)
	}
	if combine == nil {
		return nil, fmt.Errorf("%w: combine documents chain", ErrNilDependency)
	}

	o := applyOptions(opts...)
	if o.k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidConfig, o.k)
	}
	if o.maxTokensLimit <= 0 {
		return nil, fmt.Errorf("%w: max tokens limit must be positive, got %d", ErrInvalidConfig, o.maxTokensLimit)
	}

	return &VectorDBQAWithSources{
		VectorStore:           store,
		Combine:               combine,
		K:                     o.k,
		ReduceKBelowMaxTokens: o.reduceKBelowMaxTokens,
		MaxTokensLimit:        o.maxTokensLimit,
		SearchKwargs:          o.searchKwargs,
		qaWithSources: qaWithSources{
			questionKey:           o.questionKey,
			returnSourceDocuments: o.returnSourceDocuments,
			logger:                o.logger.With("component", "vector_db_qa_with_sources_chain"),
		},
	}, nil
}

// GetDocs retrieves the documents for the question in inputs and trims them
// to the token limit. Store and token counter errors are returned as is.
func (c *VectorDBQAWithSources) GetDocs(ctx context.Context, inputs map[string]any) ([]schema.Document, error) {
	question, err := c.question(inputs)
	if err != nil {
		return nil, err
	}
	docs, err := c.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	return c.ReduceTokensBelowLimit(ctx, docs)
}

func (c *VectorDBQAWithSources) retrieve(ctx context.Context, question string) ([]schema.Document, error) {
	docs, err := c.VectorStore.SimilaritySearch(ctx, question, c.K, vectorstores.WithSearchKwargs(c.SearchKwargs))
	if err != nil {
		c.logger.ErrorContext(ctx, "Similarity search failed", "error", err, "k", c.K)
		return nil, err
	}
	if c.K > 0 && len(docs) > c.K {
		docs = docs[:c.K:c.K]
	}
	return docs, nil
}

// ReduceTokensBelowLimit returns the longest prefix of docs that fits in
// MaxTokensLimit when reduction is enabled and the combine step stuffs all
// documents into one prompt. In every other case docs is returned unchanged.
// The result may be empty.
func (c *VectorDBQAWithSources) ReduceTokensBelowLimit(ctx context.Context, docs []schema.Document) ([]schema.Document, error) {
	reduced, err := reduceTokensBelowLimit(ctx, c.Combine, docs, c.ReduceKBelowMaxTokens, c.MaxTokensLimit)
	if err != nil {
		c.logger.ErrorContext(ctx, "Token counting failed", "error", err)
		return nil, err
	}
	if len(reduced) < len(docs) {
		c.logger.DebugContext(ctx, "Dropped documents to fit token limit",
			"retrieved", len(docs), "kept", len(reduced), "max_tokens_limit", c.MaxTokensLimit)
	}
	return reduced, nil
}

func (c *VectorDBQAWithSources) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	question, err := c.question(inputs)
	if err != nil {
		return nil, err
	}
	docs, err := c.GetDocs(ctx, inputs)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "Answering question", "documents", len(docs))
	return c.answer(ctx, c.Combine, inputs, question, docs, opts...)
}

func (c *VectorDBQAWithSources) InputKeys() []string {
	return c.inputKeys()
}

func (c *VectorDBQAWithSources) OutputKeys() []string {
	return c.outputKeys()
}

func (c *VectorDBQAWithSources) ChainType() string {
	return "vector_db_qa_with_sources_chain"
}

type vectorDBQAWithSourcesJSON struct {
	Type                  string         `json:"_type"`
	K                     int            `json:"k"`
	ReduceKBelowMaxTokens bool           `json:"reduce_k_below_max_tokens"`
	MaxTokensLimit        int            `json:"max_tokens_limit"`
	SearchKwargs          map[string]any `json:"search_kwargs"`
	QuestionKey           string         `json:"question_key"`
	ReturnSourceDocuments bool           `json:"return_source_documents"`
	CombineDocumentsChain chainTypeJSON  `json:"combine_documents_chain"`
}

type chainTypeJSON struct {
	Type     string `json:"_type"`
	Strategy string `json:"strategy"`
}

// MarshalJSON serializes the configuration. The vector store is a live
// handle and is left out.
func (c *VectorDBQAWithSources) MarshalJSON() ([]byte, error) {
	kwargs := c.SearchKwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return json.Marshal(vectorDBQAWithSourcesJSON{
		Type:                  c.ChainType(),
		K:                     c.K,
		ReduceKBelowMaxTokens: c.ReduceKBelowMaxTokens,
		MaxTokensLimit:        c.MaxTokensLimit,
		SearchKwargs:          kwargs,
		QuestionKey:           c.questionKey,
		ReturnSourceDocuments: c.returnSourceDocuments,
		CombineDocumentsChain: chainTypeJSON{
			Type:     c.Combine.ChainType(),
			Strategy: c.Combine.Strategy().String(),
		},
	})
}
