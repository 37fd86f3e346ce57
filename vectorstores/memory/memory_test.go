package memory_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores"
	"github.com/sevigo/sourceqa/vectorstores/memory"
)

// keywordEmbedder maps text onto counts of a fixed vocabulary.
type keywordEmbedder struct{}

var vocab = []string{"go", "rust", "python"}

func (keywordEmbedder) embed(text string) []float32 {
	v := make([]float32, len(vocab))
	for _, w := range strings.Fields(strings.ToLower(text)) {
		for i, term := range vocab {
			if w == term {
				v[i]++
			}
		}
	}
	return v
}

func (k keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = k.embed(t)
	}
	return out, nil
}

func (k keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return k.embed(text), nil
}

func (keywordEmbedder) GetDimension(context.Context) (int, error) { return len(vocab), nil }

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New(
		memory.WithEmbedder(keywordEmbedder{}),
		memory.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, err := s.AddDocuments(context.Background(), []schema.Document{
		schema.NewDocument("go go", map[string]any{"source": "a.md", "lang": "go"}),
		schema.NewDocument("rust", map[string]any{"source": "b.md", "lang": "rust"}),
		schema.NewDocument("go rust", map[string]any{"source": "c.md", "lang": "mixed"}),
		schema.NewDocument("go", map[string]any{"source": "d.md", "lang": "go"}),
	})
	require.NoError(t, err)
	return s
}

func sources(docs []schema.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Source()
	}
	return out
}

func TestSimilaritySearch_RanksByCosineWithStableTies(t *testing.T) {
	s := newStore(t)

	got, err := s.SimilaritySearch(context.Background(), "go", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "d.md", "c.md"}, sources(got))
}

func TestSimilaritySearch_Filter(t *testing.T) {
	s := newStore(t)

	got, err := s.SimilaritySearch(context.Background(), "go", 4, vectorstores.WithFilter("lang", []string{"rust", "mixed"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"c.md", "b.md"}, sources(got))
}

func TestSimilaritySearch_ScoreThresholdFromKwargs(t *testing.T) {
	s := newStore(t)

	got, err := s.SimilaritySearchWithScores(context.Background(), "go", 4,
		vectorstores.WithSearchKwargs(map[string]any{"score_threshold": 0.9}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, sd := range got {
		assert.GreaterOrEqual(t, sd.Score, float32(0.9))
	}
}

func TestSimilaritySearch_Namespaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AddDocuments(ctx, []schema.Document{schema.NewDocument("python", nil)}, vectorstores.WithNameSpace("other"))
	require.NoError(t, err)

	got, err := s.SimilaritySearch(ctx, "python", 4, vectorstores.WithNameSpace("other"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	names, err := s.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "other"}, names)

	require.NoError(t, s.DeleteCollection(ctx, "other"))
	assert.ErrorIs(t, s.DeleteCollection(ctx, "other"), vectorstores.ErrCollectionNotFound)
}

func TestSimilaritySearch_Errors(t *testing.T) {
	_, err := memory.New().SimilaritySearch(context.Background(), "go", 1)
	assert.ErrorIs(t, err, memory.ErrMissingEmbedder)

	_, err = newStore(t).SimilaritySearch(context.Background(), "go", 0)
	assert.ErrorIs(t, err, memory.ErrInvalidNumDocuments)
}

// fixedEmbedder returns a preset vector per text.
type fixedEmbedder map[string][]float32

func (f fixedEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f[t]
	}
	return out, nil
}

func (f fixedEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return f[text], nil
}

func (fixedEmbedder) GetDimension(context.Context) (int, error) { return 2, nil }

func TestSimilaritySearch_NegativeScoresWithoutThreshold(t *testing.T) {
	ctx := context.Background()
	s := memory.New(
		memory.WithEmbedder(fixedEmbedder{
			"near":  {1, 0.1},
			"far":   {-1, 0.2},
			"query": {1, 0},
		}),
		memory.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	_, err := s.AddDocuments(ctx, []schema.Document{
		schema.NewDocument("near", nil),
		schema.NewDocument("far", nil),
	})
	require.NoError(t, err)

	scored, err := s.SimilaritySearchWithScores(ctx, "query", 4)
	require.NoError(t, err)
	require.Len(t, scored, 2)
	assert.Equal(t, "near", scored[0].Document.PageContent)
	assert.Equal(t, "far", scored[1].Document.PageContent)
	assert.Less(t, scored[1].Score, float32(0))

	docs, err := s.SimilaritySearch(ctx, "query", 4, vectorstores.WithScoreThreshold(0.5))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "near", docs[0].PageContent)
}
