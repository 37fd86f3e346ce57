package chains

import (
	"context"
	"fmt"
	"maps"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/prompts"
	"github.com/sevigo/sourceqa/schema"
)

// RefineDocuments answers from the first document, then asks the refine
// chain to improve that answer once per following document.
type RefineDocuments struct {
	InitialChain        *LLMChain
	RefineChain         *LLMChain
	DocumentPrompt      prompts.PromptTemplate
	DocumentVariable    string
	InitialResponseName string
}

var _ CombineDocuments = (*RefineDocuments)(nil)

func NewRefineDocuments(initial, refine *LLMChain) *RefineDocuments {
	return &RefineDocuments{
		InitialChain:        initial,
		RefineChain:         refine,
		DocumentPrompt:      prompts.DocumentPrompt,
		DocumentVariable:    "context_str",
		InitialResponseName: "existing_answer",
	}
}

func (r *RefineDocuments) CombineDocs(ctx context.Context, docs []schema.Document, inputs map[string]any, opts ...ChainCallOption) (string, error) {
	llmOpts := parseChainCallOptions(opts...).llmOptions
	base := stringInputs(inputs)

	vars := func(doc string) map[string]string {
		out := maps.Clone(base)
		out[r.DocumentVariable] = doc
		return out
	}

	first := ""
	if len(docs) > 0 {
		first = formatDocument(r.DocumentPrompt, docs[0])
	}
	answer, err := r.InitialChain.Predict(ctx, vars(first), llmOpts...)
	if err != nil {
		return "", err
	}

	for i := 1; i < len(docs); i++ {
		v := vars(formatDocument(r.DocumentPrompt, docs[i]))
		v[r.InitialResponseName] = answer
		answer, err = r.RefineChain.Predict(ctx, v, llmOpts...)
		if err != nil {
			return "", fmt.Errorf("refine step for document %d: %w", i, err)
		}
	}
	return answer, nil
}

func (r *RefineDocuments) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	return callCombine(ctx, r, inputs, opts...)
}

func (r *RefineDocuments) InputKeys() []string {
	keys := []string{combineDocumentsInputKey}
	for _, v := range r.InitialChain.InputKeys() {
		if v != r.DocumentVariable {
			keys = append(keys, v)
		}
	}
	return keys
}

func (r *RefineDocuments) OutputKeys() []string {
	return []string{combineDocumentsOutputKey}
}

func (r *RefineDocuments) ChainType() string {
	return "refine_documents_chain"
}

func (r *RefineDocuments) Strategy() CombineStrategy {
	return StrategyRefine
}

func (r *RefineDocuments) LLM() llms.Model {
	return r.InitialChain.LLM()
}
