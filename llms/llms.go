package llms

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/sevigo/sourceqa/schema"
)

// ErrEmptyResponse is returned when a provider answers without any choice.
var ErrEmptyResponse = errors.New("empty response from model")

type Model interface {
	GenerateContent(ctx context.Context, messages []schema.MessageContent, options ...CallOption) (*schema.ContentResponse, error)
	Call(ctx context.Context, prompt string, options ...CallOption) (string, error)
}

// Tokenizer is implemented by models that can count tokens with their own vocabulary.
type Tokenizer interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// charsPerToken is the rough ratio used when a model has no tokenizer.
const charsPerToken = 4

// CountTokens counts the tokens of text as seen by model. Models that implement
// Tokenizer are asked directly and their errors are returned unchanged;
// all others fall back to EstimateTokens.
func CountTokens(ctx context.Context, model Model, text string) (int, error) {
	if tok, ok := model.(Tokenizer); ok {
		return tok.CountTokens(ctx, text)
	}
	return EstimateTokens(text), nil
}

// EstimateTokens approximates a token count from the number of runes in text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

func GenerateFromSinglePrompt(ctx context.Context, llm Model, prompt string, options ...CallOption) (string, error) {
	msg := schema.NewHumanMessage(prompt)

	resp, err := llm.GenerateContent(ctx, []schema.MessageContent{msg}, options...)
	if err != nil {
		return "", err
	}

	choices := resp.Choices
	if len(choices) < 1 {
		return "", ErrEmptyResponse
	}
	return choices[0].Content, nil
}

func TextParts(role schema.ChatMessageType, parts ...string) schema.MessageContent {
	result := schema.MessageContent{
		Role:  role,
		Parts: make([]schema.ContentPart, 0, len(parts)),
	}
	for _, part := range parts {
		result.Parts = append(result.Parts, schema.TextContent{Text: part})
	}
	return result
}
