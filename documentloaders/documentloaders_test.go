package documentloaders_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/documentloaders"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func quietLogger() documentloaders.Option {
	return documentloaders.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestText_Load(t *testing.T) {
	dir := t.TempDir()
	// "e" followed by a combining acute accent normalizes to a single rune.
	path := writeFile(t, dir, "notes.txt", "\ufeffCafe\u0301 menu\r\nline two")

	docs, err := documentloaders.NewText(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Caf\u00e9 menu\nline two", docs[0].PageContent)
	assert.Equal(t, path, docs[0].Source())
}

func TestText_LoadErrors(t *testing.T) {
	_, err := documentloaders.NewText("").Load(context.Background())
	assert.ErrorIs(t, err, documentloaders.ErrEmptyPath)

	_, err = documentloaders.NewText(filepath.Join(t.TempDir(), "missing.txt")).Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := writeFile(t, t.TempDir(), "blank.txt", "  \n ")
	docs, err := documentloaders.NewText(empty).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMarkdown_Load(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "guide.md", `---
author: Ada
tags: [go, rag]
---
# Getting Started

Install the **CLI** with `+"`go install`"+`.

- first item
- second item

`+"```sh\nsourceqa ingest ./docs\n```"+`
`)

	docs, err := documentloaders.NewMarkdown(path, documentloaders.WithSource("guide.md")).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "guide.md", d.Source())
	assert.Equal(t, "Ada", d.Metadata["author"])
	assert.Equal(t, []any{"go", "rag"}, d.Metadata["tags"])
	assert.Equal(t, "Getting Started", d.Metadata["title"])

	assert.Contains(t, d.PageContent, "Getting Started")
	assert.Contains(t, d.PageContent, "Install the CLI with go install.")
	assert.Contains(t, d.PageContent, "first item")
	assert.Contains(t, d.PageContent, "sourceqa ingest ./docs")
	assert.NotContains(t, d.PageContent, "**")
	assert.NotContains(t, d.PageContent, "author:")
}

func TestMarkdown_TitleFromFrontMatterWins(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md", "---\ntitle: Custom\n---\n# Heading\n\nBody.\n")

	docs, err := documentloaders.NewMarkdown(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Custom", docs[0].Metadata["title"])
}

func TestMarkdown_InvalidFrontMatterIsIgnored(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.md", "---\n: : [\n---\nBody text.\n")

	docs, err := documentloaders.NewMarkdown(path, quietLogger()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Body text.", docs[0].PageContent)
	assert.Equal(t, path, docs[0].Source())
}

func TestPDF_LoadErrors(t *testing.T) {
	_, err := documentloaders.NewPDF("").Load(context.Background())
	assert.ErrorIs(t, err, documentloaders.ErrEmptyPath)

	notPDF := writeFile(t, t.TempDir(), "fake.pdf", "this is not a pdf")
	_, err = documentloaders.NewPDF(notPDF).Load(context.Background())
	assert.Error(t, err)
}

func TestNewFile(t *testing.T) {
	l, err := documentloaders.NewFile("a.MD")
	require.NoError(t, err)
	assert.IsType(t, &documentloaders.Markdown{}, l)

	l, err = documentloaders.NewFile("a.pdf")
	require.NoError(t, err)
	assert.IsType(t, &documentloaders.PDF{}, l)

	_, err = documentloaders.NewFile("a.exe")
	assert.ErrorIs(t, err, documentloaders.ErrUnsupportedFormat)
}

func TestDirectory_Load(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README.md", "# Readme\n\nHello.\n")
	writeFile(t, root, "docs/faq.txt", "Q and A")
	writeFile(t, root, "docs/broken.pdf", "not a pdf")
	writeFile(t, root, "assets/logo.png", "binary")
	writeFile(t, root, ".git/HEAD.txt", "ref: main")
	writeFile(t, root, "node_modules/pkg/readme.md", "vendored")

	docs, err := documentloaders.NewDirectory(root, quietLogger()).Load(context.Background())
	require.NoError(t, err)

	var sources []string
	for _, d := range docs {
		sources = append(sources, d.Source())
	}
	sort.Strings(sources)
	assert.Equal(t, []string{"README.md", "docs/faq.txt"}, sources)
}

func TestDirectory_LoadMissingRoot(t *testing.T) {
	_, err := documentloaders.NewDirectory(filepath.Join(t.TempDir(), "nope"), quietLogger()).Load(context.Background())
	assert.Error(t, err)
}

func TestDirectory_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := documentloaders.NewDirectory(root, quietLogger()).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
