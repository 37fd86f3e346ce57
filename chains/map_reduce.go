package chains

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

const defaultMapConcurrency = 4

// MapReduceDocuments asks the map chain about each document separately, then
// stuffs the per-document answers into the reduce step. The mapped answers
// keep the metadata, and so the sources, of their documents.
type MapReduceDocuments struct {
	MapChain         *LLMChain
	Reduce           *StuffDocuments
	DocumentVariable string
	MaxConcurrency   int
}

var _ CombineDocuments = (*MapReduceDocuments)(nil)

func NewMapReduceDocuments(mapChain *LLMChain, reduce *StuffDocuments) *MapReduceDocuments {
	return &MapReduceDocuments{
		MapChain:         mapChain,
		Reduce:           reduce,
		DocumentVariable: "context",
		MaxConcurrency:   defaultMapConcurrency,
	}
}

func (m *MapReduceDocuments) CombineDocs(ctx context.Context, docs []schema.Document, inputs map[string]any, opts ...ChainCallOption) (string, error) {
	mapped, err := m.mapDocuments(ctx, docs, inputs, opts...)
	if err != nil {
		return "", err
	}
	return m.Reduce.CombineDocs(ctx, mapped, inputs, opts...)
}

// mapDocuments runs the map chain over docs with bounded concurrency. The
// result has the same order as docs.
func (m *MapReduceDocuments) mapDocuments(ctx context.Context, docs []schema.Document, inputs map[string]any, opts ...ChainCallOption) ([]schema.Document, error) {
	llmOpts := parseChainCallOptions(opts...).llmOptions
	base := stringInputs(inputs)
	mapped := make([]schema.Document, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.MaxConcurrency, 1))
	for i, doc := range docs {
		g.Go(func() error {
			vars := maps.Clone(base)
			vars[m.DocumentVariable] = doc.PageContent

			text, err := m.MapChain.Predict(gctx, vars, llmOpts...)
			if err != nil {
				return fmt.Errorf("map step for document %d: %w", i, err)
			}
			mapped[i] = schema.Document{PageContent: text, Metadata: doc.Metadata}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mapped, nil
}

func (m *MapReduceDocuments) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	return callCombine(ctx, m, inputs, opts...)
}

func (m *MapReduceDocuments) InputKeys() []string {
	return m.Reduce.InputKeys()
}

func (m *MapReduceDocuments) OutputKeys() []string {
	return []string{combineDocumentsOutputKey}
}

func (m *MapReduceDocuments) ChainType() string {
	return "map_reduce_documents_chain"
}

func (m *MapReduceDocuments) Strategy() CombineStrategy {
	return StrategyMapReduce
}

func (m *MapReduceDocuments) LLM() llms.Model {
	return m.Reduce.LLM()
}
