// Package openai adapts the OpenAI chat and embedding APIs to the llms and
// embeddings interfaces. The API has no token counting endpoint, so callers
// counting tokens through llms.CountTokens get the character based estimate.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

var (
	ErrNoAPIKey   = errors.New("openai: API key is required")
	ErrNoContent  = errors.New("openai: no content generated")
	ErrEmbeddings = errors.New("openai: failed to generate embeddings")
)

type LLM struct {
	client  openai.Client
	options options
	logger  *slog.Logger
}

var (
	_ llms.Model          = (*LLM)(nil)
	_ embeddings.Embedder = (*LLM)(nil)
)

// New creates an OpenAI client. The API key falls back to OPENAI_API_KEY.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)
	if o.apiKey == "" {
		o.apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(o.apiKey),
		option.WithMaxRetries(o.maxRetries),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}

	llm := &LLM{
		client:  openai.NewClient(reqOpts...),
		options: o,
		logger:  o.logger.With("component", "openai_llm", "model", o.model),
	}
	llm.logger.Info("OpenAI LLM initialized successfully")
	return llm, nil
}

func (l *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, l, prompt, options...)
}

func (l *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.ParseCallOptions(options...)
	model := l.options.model
	if opts.Model != "" {
		model = opts.Model
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: convertMessages(messages),
	}
	if opts.Temperature > 0 {
		params.Temperature = openai.Float(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	if opts.StreamingFunc != nil {
		return l.stream(ctx, params, opts, model, start)
	}

	resp, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		l.logger.ErrorContext(ctx, "OpenAI chat completion failed", "error", err, "duration", time.Since(start))
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoContent
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    resp.Choices[0].Message.Content,
				StopReason: resp.Choices[0].FinishReason,
				GenerationInfo: map[string]any{
					"CompletionTokens": resp.Usage.CompletionTokens,
					"PromptTokens":     resp.Usage.PromptTokens,
					"TotalTokens":      resp.Usage.TotalTokens,
					"Duration":         time.Since(start),
					"Model":            model,
				},
			},
		},
	}, nil
}

func (l *LLM) stream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	opts llms.CallOptions,
	model string,
	start time.Time,
) (*schema.ContentResponse, error) {
	stream := l.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := opts.StreamingFunc(ctx, []byte(delta)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}
	if err := stream.Err(); err != nil {
		l.logger.ErrorContext(ctx, "OpenAI stream failed", "error", err)
		return nil, err
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content: full.String(),
				GenerationInfo: map[string]any{
					"Duration": time.Since(start),
					"Model":    model,
				},
			},
		},
	}, nil
}

func convertMessages(messages []schema.MessageContent) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		text := msg.GetTextContent()
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			out = append(out, openai.SystemMessage(text))
		case schema.ChatMessageTypeAI:
			out = append(out, openai.AssistantMessage(text))
		default:
			out = append(out, openai.UserMessage(text))
		}
	}
	return out
}

func (l *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := l.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(l.options.embeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddings, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, but got %d", ErrEmbeddings, len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddings, d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		vectors[d.Index] = vec
	}
	return vectors, nil
}

func (l *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := l.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (l *LLM) GetDimension(ctx context.Context) (int, error) {
	v, err := l.EmbedQuery(ctx, "dimension")
	if err != nil {
		return 0, err
	}
	return len(v), nil
}
