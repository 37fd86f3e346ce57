package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
)

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	GetDimension(ctx context.Context) (int, error)
}

var (
	ErrEmptyText      = errors.New("embeddings: text cannot be empty")
	ErrAlreadyWrapped = errors.New("embeddings: client is already a wrapped embedder")
	ErrCountMismatch  = errors.New("embeddings: embedding count does not match input count")
)

// EmbedderImpl preprocesses texts and fans batches out to the wrapped client.
type EmbedderImpl struct {
	client Embedder
	opts   options
}

var _ Embedder = (*EmbedderImpl)(nil)

func NewEmbedder(client Embedder, opts ...Option) (*EmbedderImpl, error) {
	if _, ok := client.(*EmbedderImpl); ok {
		return nil, ErrAlreadyWrapped
	}

	return &EmbedderImpl{
		client: client,
		opts:   applyOptions(opts...),
	}, nil
}

func (e *EmbedderImpl) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	return e.client.EmbedQuery(ctx, e.preprocessText(text))
}

// EmbedDocuments returns one vector per text, in input order.
func (e *EmbedderImpl) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	processed := make([]string, len(texts))
	for i, text := range texts {
		processed[i] = e.preprocessText(text)
	}

	batches := batchTexts(processed, e.opts.BatchSize)
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			vectors, err := e.client.EmbedDocuments(gctx, batch)
			if err != nil {
				return fmt.Errorf("error embedding batch %d: %w", i, err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("%w: batch %d expected %d, got %d", ErrCountMismatch, i, len(batch), len(vectors))
			}
			results[i] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([][]float32, 0, len(texts))
	for _, batch := range results {
		all = append(all, batch...)
	}
	return all, nil
}

func (e *EmbedderImpl) GetDimension(ctx context.Context) (int, error) {
	return e.client.GetDimension(ctx)
}

func (e *EmbedderImpl) preprocessText(text string) string {
	if e.opts.StripNewLines {
		return strings.ReplaceAll(text, "\n", " ")
	}
	return text
}

func batchTexts(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		return [][]string{texts}
	}

	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batches = append(batches, texts[i:end])
	}
	return batches
}
