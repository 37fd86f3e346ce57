package chains

import (
	"context"
	"fmt"
	"strings"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/prompts"
	"github.com/sevigo/sourceqa/schema"
)

// CombineStrategy names how a combine step turns many documents into one answer.
type CombineStrategy int

const (
	// StrategyStuff places every document into a single prompt.
	StrategyStuff CombineStrategy = iota + 1
	// StrategyMapReduce answers per document, then merges the partial answers.
	StrategyMapReduce
	// StrategyRefine builds an answer from the first document and refines it with each next one.
	StrategyRefine
)

func (s CombineStrategy) String() string {
	switch s {
	case StrategyStuff:
		return "stuff"
	case StrategyMapReduce:
		return "map_reduce"
	case StrategyRefine:
		return "refine"
	default:
		return fmt.Sprintf("CombineStrategy(%d)", int(s))
	}
}

const (
	combineDocumentsInputKey  = "input_documents"
	combineDocumentsOutputKey = "output_text"
)

// CombineDocuments is a chain that reduces documents to a single text.
// Strategy and LLM let callers decide policy, such as token budgeting,
// without inspecting the concrete type.
type CombineDocuments interface {
	Chain
	CombineDocs(ctx context.Context, docs []schema.Document, inputs map[string]any, opts ...ChainCallOption) (string, error)
	Strategy() CombineStrategy
	LLM() llms.Model
}

// callCombine implements Chain.Call for combine steps: documents are read
// from the "input_documents" input and the result is "output_text".
func callCombine(ctx context.Context, c CombineDocuments, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	raw, ok := inputs[combineDocumentsInputKey]
	if !ok {
		return nil, &MissingInputError{Key: combineDocumentsInputKey}
	}
	docs, ok := raw.([]schema.Document)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, want []schema.Document", ErrInvalidInputType, combineDocumentsInputKey, raw)
	}

	text, err := c.CombineDocs(ctx, docs, inputs, opts...)
	if err != nil {
		return nil, err
	}
	return map[string]any{combineDocumentsOutputKey: text}, nil
}

// formatDocument renders doc with prompt. The page_content and source
// variables are always set; other metadata is available by key.
func formatDocument(prompt prompts.PromptTemplate, doc schema.Document) string {
	vars := make(map[string]string, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		vars[k] = fmt.Sprint(v)
	}
	vars["page_content"] = doc.PageContent
	vars[schema.SourceKey] = doc.Source()
	return prompt.Format(vars)
}

func formatDocuments(prompt prompts.PromptTemplate, docs []schema.Document, separator string) string {
	parts := make([]string, len(docs))
	for i, doc := range docs {
		parts[i] = formatDocument(prompt, doc)
	}
	return strings.Join(parts, separator)
}
