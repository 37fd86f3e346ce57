package embeddings_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/embeddings"
)

type recordingClient struct {
	mu      sync.Mutex
	batches [][]string
	failOn  string
}

func (c *recordingClient) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batches = append(c.batches, texts)
	c.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if t == c.failOn {
			return nil, errors.New("boom")
		}
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *recordingClient) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (c *recordingClient) GetDimension(context.Context) (int, error) { return 1, nil }

func TestNewEmbedder_RejectsDoubleWrap(t *testing.T) {
	inner, err := embeddings.NewEmbedder(&recordingClient{})
	require.NoError(t, err)

	_, err = embeddings.NewEmbedder(inner)
	assert.ErrorIs(t, err, embeddings.ErrAlreadyWrapped)
}

func TestEmbedDocuments_PreservesOrderAcrossBatches(t *testing.T) {
	client := &recordingClient{}
	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(2), embeddings.WithMaxConcurrency(3))
	require.NoError(t, err)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.InDelta(t, float32(len(text)), vectors[i][0], 0)
	}
	assert.Len(t, client.batches, 3)
}

func TestEmbedDocuments_StripsNewlines(t *testing.T) {
	client := &recordingClient{}
	e, err := embeddings.NewEmbedder(client)
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), []string{"line one\nline two"})
	require.NoError(t, err)
	require.Len(t, client.batches, 1)
	assert.False(t, strings.Contains(client.batches[0][0], "\n"))
}

func TestEmbedDocuments_PropagatesBatchError(t *testing.T) {
	client := &recordingClient{failOn: "bad"}
	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(1))
	require.NoError(t, err)

	_, err = e.EmbedDocuments(context.Background(), []string{"ok", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEmbedDocuments_CancelledContext(t *testing.T) {
	e, err := embeddings.NewEmbedder(&recordingClient{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.EmbedDocuments(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmbedQuery_RejectsBlank(t *testing.T) {
	e, err := embeddings.NewEmbedder(&recordingClient{})
	require.NoError(t, err)

	_, err = e.EmbedQuery(context.Background(), "  \n ")
	assert.ErrorIs(t, err, embeddings.ErrEmptyText)
}
