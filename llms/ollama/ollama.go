package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

// Common errors returned by the Ollama LLM implementation.
var (
	ErrEmptyResponse       = errors.New("ollama: empty response received")
	ErrIncompleteEmbedding = errors.New("ollama: not all input texts were embedded")
	ErrModelNotFound       = errors.New("ollama: model not found")
	ErrInvalidModel        = errors.New("ollama: invalid model specified")
)

// LLM talks to an Ollama server for chat, embeddings and token counting.
type LLM struct {
	client  *api.Client
	options options
	logger  *slog.Logger
}

var (
	_ llms.Model          = (*LLM)(nil)
	_ embeddings.Embedder = (*LLM)(nil)
	_ llms.Tokenizer      = (*LLM)(nil)
)

// New creates a new Ollama LLM. Without WithServerURL the address comes from
// OLLAMA_URL, then OLLAMA_HOST, then the Ollama default.
func New(opts ...Option) (*LLM, error) {
	o := applyOptions(opts...)

	if o.model == "" {
		return nil, ErrInvalidModel
	}

	client, err := newClient(o)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	llm := &LLM{
		client:  client,
		options: o,
		logger:  o.logger.With("component", "ollama_llm", "model", o.model),
	}

	llm.logger.Info("Ollama LLM initialized successfully")
	return llm, nil
}

func newClient(o options) (*api.Client, error) {
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	base := o.serverURL
	if base == nil {
		raw := os.Getenv("OLLAMA_URL")
		if raw == "" {
			return api.ClientFromEnvironment()
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse OLLAMA_URL: %w", err)
		}
		base = parsed
	}
	return api.NewClient(base, httpClient), nil
}

// Call implements simple prompt-based text generation.
func (o *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	start := time.Now()
	o.logger.DebugContext(ctx, "Starting simple call", "prompt_length", len(prompt))

	result, err := llms.GenerateFromSinglePrompt(ctx, o, prompt, options...)
	if err != nil {
		o.logger.ErrorContext(ctx, "Call failed", "error", err, "duration", time.Since(start))
		return "", err
	}
	return result, nil
}

// GenerateContent handles structured message-based content generation.
func (o *LLM) GenerateContent(
	ctx context.Context,
	messages []schema.MessageContent,
	options ...llms.CallOption,
) (*schema.ContentResponse, error) {
	start := time.Now()
	opts := llms.ParseCallOptions(options...)
	model := o.options.model
	if opts.Model != "" {
		model = opts.Model
	}

	chatMsgs, err := convertMessages(messages)
	if err != nil {
		return nil, err
	}

	stream := opts.StreamingFunc != nil
	req := &api.ChatRequest{
		Model:    model,
		Messages: chatMsgs,
		Stream:   &stream,
		Options:  requestOptions(opts),
	}

	var fullResponse strings.Builder
	var finalResp api.ChatResponse
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		fullResponse.WriteString(resp.Message.Content)
		if opts.StreamingFunc != nil && resp.Message.Content != "" {
			if errStream := opts.StreamingFunc(ctx, []byte(resp.Message.Content)); errStream != nil {
				return fmt.Errorf("streaming function returned an error: %w", errStream)
			}
		}
		if resp.Done {
			finalResp = resp
		}
		return nil
	})
	duration := time.Since(start)
	if err != nil {
		o.logger.ErrorContext(ctx, "Ollama chat failed", "error", err, "duration", duration)
		return nil, err
	}

	o.logger.InfoContext(ctx, "Content generation completed", "duration", duration)
	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{
				Content:    fullResponse.String(),
				StopReason: finalResp.DoneReason,
				GenerationInfo: map[string]any{
					"CompletionTokens": finalResp.EvalCount,
					"PromptTokens":     finalResp.PromptEvalCount,
					"TotalTokens":      finalResp.EvalCount + finalResp.PromptEvalCount,
					"Duration":         duration,
					"Model":            model,
				},
			},
		},
	}, nil
}

func requestOptions(opts llms.CallOptions) map[string]any {
	out := make(map[string]any)
	if opts.Temperature > 0 {
		out["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		out["num_predict"] = opts.MaxTokens
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func convertMessages(messages []schema.MessageContent) ([]api.Message, error) {
	chatMsgs := make([]api.Message, 0, len(messages))
	for _, mc := range messages {
		var text []string
		for _, p := range mc.Parts {
			part, ok := p.(schema.TextContent)
			if !ok {
				return nil, fmt.Errorf("unsupported content part type: %T", p)
			}
			text = append(text, part.Text)
		}
		chatMsgs = append(chatMsgs, api.Message{
			Role:    typeToRole(mc.Role),
			Content: strings.Join(text, "\n"),
		})
	}
	return chatMsgs, nil
}

func typeToRole(typ schema.ChatMessageType) string {
	switch typ {
	case schema.ChatMessageTypeSystem:
		return "system"
	case schema.ChatMessageTypeAI:
		return "assistant"
	default:
		return "user"
	}
}

// EmbedDocuments embeds all texts with one /api/embed request.
func (o *LLM) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := o.client.Embed(ctx, &api.EmbedRequest{Model: o.options.model, Input: texts})
	if err != nil {
		o.logger.ErrorContext(ctx, "Embedding API call failed", "error", err, "texts", len(texts))
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		o.logger.ErrorContext(ctx, "Embedding count mismatch",
			"expected", len(texts), "got", len(resp.Embeddings))
		return nil, ErrIncompleteEmbedding
	}
	return resp.Embeddings, nil
}

// EmbedQuery creates an embedding for a single query.
func (o *LLM) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors[0]) == 0 {
		return nil, ErrEmptyResponse
	}
	return vectors[0], nil
}

// EnsureModel pulls the configured model unless it is already available locally.
func (o *LLM) EnsureModel(ctx context.Context) error {
	if _, err := o.GetModelDetails(ctx); err == nil {
		return nil
	} else if !errors.Is(err, ErrModelNotFound) {
		return err
	}

	o.logger.InfoContext(ctx, "Model not found locally, initiating pull")
	start := time.Now()
	err := o.client.Pull(ctx, &api.PullRequest{Model: o.options.model}, func(p api.ProgressResponse) error {
		if p.Total > 0 {
			o.logger.DebugContext(ctx, "Model pull progress",
				"status", p.Status, "completed", p.Completed, "total", p.Total)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("model pull failed: %w", err)
	}
	o.logger.InfoContext(ctx, "Model pull completed", "duration", time.Since(start))
	return nil
}

// GetModelDetails describes the configured model, including its embedding dimension
// when the model supports embeddings.
func (o *LLM) GetModelDetails(ctx context.Context) (*schema.ModelDetails, error) {
	showResp, err := o.client.Show(ctx, &api.ShowRequest{Model: o.options.model})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrModelNotFound
		}
		return nil, fmt.Errorf("failed to retrieve model information: %w", err)
	}

	details := &schema.ModelDetails{
		Family:        showResp.Details.Family,
		ParameterSize: showResp.Details.ParameterSize,
		Quantization:  showResp.Details.QuantizationLevel,
	}
	if emb, err := o.EmbedQuery(ctx, "dimension test"); err == nil {
		details.Dimension = int64(len(emb))
	}
	return details, nil
}

// GetDimension returns the embedding dimension for the current model.
func (o *LLM) GetDimension(ctx context.Context) (int, error) {
	details, err := o.GetModelDetails(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get embedding dimension: %w", err)
	}
	if details.Dimension == 0 {
		return 0, fmt.Errorf("model %s does not produce embeddings", o.options.model)
	}
	return int(details.Dimension), nil
}

// CountTokens reports how many prompt tokens the model evaluates for text,
// generating a single token to obtain the count.
func (o *LLM) CountTokens(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}

	stream := false
	req := &api.GenerateRequest{
		Model:   o.options.model,
		Prompt:  text,
		Stream:  &stream,
		Raw:     true,
		Options: map[string]any{"num_predict": 1},
	}

	var tokenCount int
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		if resp.Done {
			tokenCount = resp.PromptEvalCount
		}
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "Token counting failed", "error", err)
		return 0, fmt.Errorf("token counting failed: %w", err)
	}
	return tokenCount, nil
}
