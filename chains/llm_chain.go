package chains

import (
	"context"
	"fmt"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/prompts"
)

const defaultLLMChainOutputKey = "text"

// LLMChain formats a prompt template with its inputs and sends it to a model.
type LLMChain struct {
	Prompt    prompts.PromptTemplate
	OutputKey string
	llm       llms.Model
}

var _ Chain = (*LLMChain)(nil)

func NewLLMChain(llm llms.Model, prompt prompts.PromptTemplate) *LLMChain {
	return &LLMChain{
		Prompt:    prompt,
		OutputKey: defaultLLMChainOutputKey,
		llm:       llm,
	}
}

func (c *LLMChain) LLM() llms.Model {
	return c.llm
}

// Predict formats the prompt with vars and returns the model's text.
func (c *LLMChain) Predict(ctx context.Context, vars map[string]string, opts ...llms.CallOption) (string, error) {
	prompt, err := c.Prompt.FormatStrict(vars)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMissingInput, err)
	}
	return c.llm.Call(ctx, prompt, opts...)
}

func (c *LLMChain) Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	vars := make(map[string]string, len(inputs))
	for _, key := range c.InputKeys() {
		v, err := stringInput(inputs, key)
		if err != nil {
			return nil, err
		}
		vars[key] = v
	}

	text, err := c.Predict(ctx, vars, parseChainCallOptions(opts...).llmOptions...)
	if err != nil {
		return nil, err
	}
	return map[string]any{c.OutputKey: text}, nil
}

func (c *LLMChain) InputKeys() []string {
	return c.Prompt.InputVariables()
}

func (c *LLMChain) OutputKeys() []string {
	return []string{c.OutputKey}
}

func (c *LLMChain) ChainType() string {
	return "llm_chain"
}
