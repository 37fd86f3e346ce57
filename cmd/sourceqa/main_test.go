package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/config"
	"github.com/sevigo/sourceqa/documentloaders"
	"github.com/sevigo/sourceqa/llms/fake"
	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/vectorstores/memory"
)

// letterEmbedder embeds text as counts of the letters a to z.
type letterEmbedder struct{}

func (letterEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := letterEmbedder{}.EmbedQuery(ctx, t)
		out[i] = v
	}
	return out, nil
}

func (letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

func (letterEmbedder) GetDimension(context.Context) (int, error) { return 26, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngestAndAsk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "zebra.txt"), []byte("zebras graze on the savanna"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# Notes\n\nbees make honey"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte{0x89, 0x50}, 0o644))

	cfg := config.Default()
	cfg.Chain.K = 1
	cfg.Chain.ReturnSourceDocuments = true
	logger := testLogger()
	ctx := context.Background()

	store := memory.New(memory.WithEmbedder(letterEmbedder{}), memory.WithLogger(logger))
	n, err := ingest(ctx, store, []string{root}, cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	llm := fake.NewFakeLLM([]string{"Zebras graze on the savanna.\nSOURCES: zebra.txt"})
	qa, err := newQAChain(llm, store, cfg, logger)
	require.NoError(t, err)

	out, err := chains.Call(ctx, qa, map[string]any{"question": "where do zebras graze"})
	require.NoError(t, err)

	docs, ok := out[chains.SourceDocumentsKey].([]schema.Document)
	require.True(t, ok)
	require.Len(t, docs, 1)
	assert.Equal(t, "zebra.txt", docs[0].Source())
	prompt, _ := llm.LastPrompt()
	assert.Contains(t, prompt, "Source: zebra.txt")

	var buf bytes.Buffer
	printAnswer(&buf, out)
	assert.Contains(t, buf.String(), "Zebras graze on the savanna.")
	assert.Contains(t, buf.String(), "  - zebra.txt")
	assert.Contains(t, buf.String(), "[1] zebra.txt")
}

func TestLoadPath_Errors(t *testing.T) {
	cfg := config.Default()
	ctx := context.Background()

	_, err := loadPath(ctx, filepath.Join(t.TempDir(), "missing"), cfg, testLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)

	bin := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(bin, []byte("x"), 0o644))
	_, err = loadPath(ctx, bin, cfg, testLogger())
	assert.Error(t, err)
}

func TestNewQAChain_UnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Chain.Type = "rerank"

	_, err := newQAChain(fake.NewFakeLLM([]string{"x"}), memory.New(), cfg, testLogger())
	assert.ErrorIs(t, err, chains.ErrUnknownChainType)
}

func TestRootCmd_Commands(t *testing.T) {
	cmd := newRootCmd()
	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"ingest", "ask", "serve", "collections"})
}

func TestLoaderForPath(t *testing.T) {
	cfg := config.Default()
	cfg.Ingest.GitBranch = "main"

	l, err := loaderForPath("https://github.com/acme/handbook.git", cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &documentloaders.Git{}, l)

	l, err = loaderForPath(t.TempDir(), cfg, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &documentloaders.Directory{}, l)
}
