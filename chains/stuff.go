package chains

import (
	"context"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/prompts"
	"github.com/sevigo/sourceqa/schema"
)

const (
	defaultDocumentVariable  = "summaries"
	defaultDocumentSeparator = "\n\n"
)

// StuffDocuments renders every document into one prompt variable and makes a
// single model call.
type StuffDocuments struct {
	LLMChain          *LLMChain
	DocumentPrompt    prompts.PromptTemplate
	DocumentVariable  string
	DocumentSeparator string
}

var _ CombineDocuments = (*StuffDocuments)(nil)

func NewStuffDocuments(llmChain *LLMChain) *StuffDocuments {
	return &StuffDocuments{
		LLMChain:          llmChain,
		DocumentPrompt:    prompts.DocumentPrompt,
		DocumentVariable:  defaultDocumentVariable,
		DocumentSeparator: defaultDocumentSeparator,
	}
}

func (s *StuffDocuments) CombineDocs(ctx context.Context, docs []schema.Document, inputs map[string]any, opts ...ChainCallOption) (string, error) {
	vars := stringInputs(inputs)
	vars[s.DocumentVariable] = formatDocuments(s.DocumentPrompt, docs, s.DocumentSeparator)
	return s.LLMChain.Predict(ctx, vars, parseChainCallOptions(opts...).llmOptions...)
}

func (s *StuffDocuments) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	return callCombine(ctx, s, inputs, opts...)
}

// InputKeys are the documents plus the prompt variables other than the document variable.
func (s *StuffDocuments) InputKeys() []string {
	keys := []string{combineDocumentsInputKey}
	for _, v := range s.LLMChain.InputKeys() {
		if v != s.DocumentVariable {
			keys = append(keys, v)
		}
	}
	return keys
}

func (s *StuffDocuments) OutputKeys() []string {
	return []string{combineDocumentsOutputKey}
}

func (s *StuffDocuments) ChainType() string {
	return "stuff_documents_chain"
}

func (s *StuffDocuments) Strategy() CombineStrategy {
	return StrategyStuff
}

func (s *StuffDocuments) LLM() llms.Model {
	return s.LLMChain.LLM()
}
