package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

var (
	ErrNoAPIKey      = errors.New("gemini: API key is required")
	ErrInvalidModel  = errors.New("gemini: invalid model specified")
	ErrNoContent     = errors.New("gemini: no content generated")
	ErrNoMessages    = errors.New("gemini: no messages to send")
	ErrSystemMessage = errors.New("gemini: system message must be the first message in the conversation")
	ErrEmbeddings    = errors.New("gemini: failed to generate embeddings")
)

// LLM implements the Model, Embedder and Tokenizer interfaces for Gemini.
type LLM struct {
	client  *genai.Client
	options options
	logger  *slog.Logger

	// dimension is cached after the first successful call to GetDimension
	dimension int
	dimMu     sync.Mutex
}

var (
	_ llms.Model          = (*LLM)(nil)
	_ llms.Tokenizer      = (*LLM)(nil)
	_ embeddings.Embedder = (*LLM)(nil)
)

// New creates a new Gemini LLM client. The API key falls back to GEMINI_API_KEY.
func New(ctx context.Context, opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)

	if o.apiKey == "" {
		o.apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if o.model == "" {
		return nil, ErrInvalidModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: o.apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	llm := &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "gemini_llm", "model", o.model),
	}

	llm.logger.Info("Gemini LLM initialized successfully")
	return llm, nil
}

// Call is a convenience method for a single-turn conversation.
func (g *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

// GenerateContent handles multi-turn conversations and streaming.
func (g *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	callOpts := llms.ParseCallOptions(options...)
	model := g.options.model
	if callOpts.Model != "" {
		model = callOpts.Model
	}

	history, systemInstruction, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, ErrNoMessages
	}

	genConfig := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if callOpts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(callOpts.Temperature))
	}
	if callOpts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(callOpts.MaxTokens)
	}

	if callOpts.StreamingFunc == nil {
		resp, err := g.client.Models.GenerateContent(ctx, model, history, genConfig)
		if err != nil {
			g.logger.ErrorContext(ctx, "Gemini client failed", "error", err, "duration", time.Since(start))
			return nil, err
		}
		return responseToSchema(resp, model, time.Since(start))
	}

	var fullResponse strings.Builder
	var finalResp *genai.GenerateContentResponse
	for resp, errStream := range g.client.Models.GenerateContentStream(ctx, model, history, genConfig) {
		if errors.Is(errStream, iterator.Done) {
			break
		}
		if errStream != nil {
			g.logger.ErrorContext(ctx, "Gemini stream error", "error", errStream)
			return nil, errStream
		}

		finalResp = resp
		chunk := extractText(resp)
		fullResponse.WriteString(chunk)
		if err := callOpts.StreamingFunc(ctx, []byte(chunk)); err != nil {
			return nil, fmt.Errorf("streaming function returned an error: %w", err)
		}
	}

	var totalTokens int32
	if finalResp != nil && finalResp.UsageMetadata != nil {
		totalTokens = finalResp.UsageMetadata.TotalTokenCount
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content: fullResponse.String(),
				GenerationInfo: map[string]any{
					"TotalTokens": totalTokens,
					"Duration":    time.Since(start),
					"Model":       model,
				},
			},
		},
	}, nil
}

// CountTokens asks the Gemini API how many tokens text occupies for the configured model.
func (g *LLM) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := g.client.Models.CountTokens(ctx, g.options.model, contents, nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "Token counting failed", "error", err)
		return 0, fmt.Errorf("gemini: token counting failed: %w", err)
	}
	return int(resp.TotalTokens), nil
}

// EmbedDocuments generates embeddings for a slice of texts.
func (g *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	res, err := g.client.Models.EmbedContent(ctx, g.options.embeddingModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddings, err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, but got %d", ErrEmbeddings, len(texts), len(res.Embeddings))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, e := range res.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single text query.
func (g *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: embedding is empty", ErrEmbeddings)
	}
	return vectors[0], nil
}

// GetDimension returns the embedding dimension of the model. Failures are not cached.
func (g *LLM) GetDimension(ctx context.Context) (int, error) {
	g.dimMu.Lock()
	defer g.dimMu.Unlock()

	if g.dimension > 0 {
		return g.dimension, nil
	}
	sample, err := g.EmbedQuery(ctx, "dimension")
	if err != nil {
		return 0, fmt.Errorf("failed to get dimension by embedding sample text: %w", err)
	}
	g.dimension = len(sample)
	return g.dimension, nil
}

// convertMessages converts the generic schema to Gemini contents plus an optional
// system instruction, which is only accepted as the first message.
func convertMessages(messages []schema.MessageContent) ([]*genai.Content, *genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var systemInstruction *genai.Content

	for i, msg := range messages {
		var role genai.Role
		switch msg.Role {
		case schema.ChatMessageTypeSystem:
			if i != 0 {
				return nil, nil, ErrSystemMessage
			}
			systemInstruction = genai.NewContentFromText(msg.GetTextContent(), genai.RoleUser)
			continue
		case schema.ChatMessageTypeAI:
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		parts := make([]*genai.Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			part, ok := p.(schema.TextContent)
			if !ok {
				return nil, nil, fmt.Errorf("unsupported content part type: %T", p)
			}
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents, systemInstruction, nil
}

func responseToSchema(resp *genai.GenerateContentResponse, model string, duration time.Duration) (*schema.ContentResponse, error) {
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContent
	}
	choice := resp.Candidates[0]
	if choice.Content == nil || len(choice.Content.Parts) == 0 {
		return nil, ErrNoContent
	}

	var totalTokens int32
	if resp.UsageMetadata != nil {
		totalTokens = resp.UsageMetadata.TotalTokenCount
	}

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    extractText(resp),
				StopReason: string(choice.FinishReason),
				GenerationInfo: map[string]any{
					"TotalTokens": totalTokens,
					"Duration":    duration,
					"Model":       model,
				},
			},
		},
	}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}
