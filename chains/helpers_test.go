package chains_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

// funcLLM answers every prompt with fn. It has no tokenizer.
type funcLLM func(prompt string) (string, error)

func (f funcLLM) GenerateContent(_ context.Context, messages []schema.MessageContent, _ ...llms.CallOption) (*schema.ContentResponse, error) {
	out, err := f(messages[0].GetTextContent())
	if err != nil {
		return nil, err
	}
	return &schema.ContentResponse{Choices: []*schema.ContentChoice{{Content: out}}}, nil
}

func (f funcLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doc(content, source string) schema.Document {
	return schema.NewDocument(content, map[string]any{schema.SourceKey: source})
}

func contents(docs []schema.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.PageContent
	}
	return out
}
