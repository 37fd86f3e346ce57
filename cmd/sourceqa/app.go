package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/config"
	"github.com/sevigo/sourceqa/documentloaders"
	"github.com/sevigo/sourceqa/embeddings"
	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/llms/gemini"
	"github.com/sevigo/sourceqa/llms/ollama"
	"github.com/sevigo/sourceqa/llms/openai"
	"github.com/sevigo/sourceqa/schema"
	"github.com/sevigo/sourceqa/textsplitter"
	"github.com/sevigo/sourceqa/vectorstores"
	"github.com/sevigo/sourceqa/vectorstores/memory"
	"github.com/sevigo/sourceqa/vectorstores/qdrant"
)

// embeddingModel is a provider client that also produces embeddings.
type embeddingModel interface {
	llms.Model
	embeddings.Embedder
}

func newModel(ctx context.Context, provider, model string, cfg config.LLMConfig, logger *slog.Logger) (embeddingModel, error) {
	switch provider {
	case "ollama":
		opts := []ollama.Option{ollama.WithLogger(logger)}
		if model != "" {
			opts = append(opts, ollama.WithModel(model))
		}
		if cfg.ServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
		}
		llm, err := ollama.New(opts...)
		if err != nil {
			return nil, err
		}
		if err := llm.EnsureModel(ctx); err != nil {
			return nil, err
		}
		return llm, nil
	case "gemini":
		opts := []gemini.Option{gemini.WithLogger(logger), gemini.WithAPIKey(cfg.APIKey)}
		if model != "" {
			opts = append(opts, gemini.WithModel(model))
		}
		return gemini.New(ctx, opts...)
	case "openai":
		opts := []openai.Option{openai.WithLogger(logger), openai.WithAPIKey(cfg.APIKey)}
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func newLLM(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llms.Model, error) {
	llm, err := newModel(ctx, cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s llm: %w", cfg.LLM.Provider, err)
	}
	return llm, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (embeddings.Embedder, error) {
	provider := cfg.EmbedderProvider()
	embedModel := cfg.Embedder.Model
	if provider != "ollama" && cfg.Embedder.Provider == "" {
		// nomic-embed-text is an Ollama model; let hosted providers pick their default.
		embedModel = ""
	}

	// Credentials are shared only with the LLM's own provider; other hosted
	// providers read their key from the environment.
	apiKey := ""
	if provider == cfg.LLM.Provider {
		apiKey = cfg.LLM.APIKey
	}

	var (
		client embeddingModel
		err    error
	)
	switch provider {
	case "gemini":
		client, err = gemini.New(ctx, gemini.WithLogger(logger), gemini.WithAPIKey(apiKey),
			gemini.WithEmbeddingModel(embedModel))
	case "openai":
		client, err = openai.New(openai.WithLogger(logger), openai.WithAPIKey(apiKey),
			openai.WithEmbeddingModel(embedModel))
	default:
		client, err = newModel(ctx, provider, embedModel, cfg.LLM, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", provider, err)
	}

	return embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(cfg.Embedder.BatchSize),
		embeddings.WithMaxConcurrency(cfg.Embedder.MaxConcurrency),
	)
}

func newVectorStore(cfg *config.Config, embedder embeddings.Embedder, logger *slog.Logger) (vectorstores.VectorStore, func() error, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant":
		opts := []qdrant.Option{
			qdrant.WithEmbedder(embedder),
			qdrant.WithCollectionName(cfg.VectorStore.Collection),
			qdrant.WithLogger(logger),
		}
		if cfg.VectorStore.URL != "" {
			opts = append(opts, qdrant.WithRawURL(cfg.VectorStore.URL))
		}
		if cfg.VectorStore.APIKey != "" {
			opts = append(opts, qdrant.WithAPIKey(cfg.VectorStore.APIKey))
		}
		store, err := qdrant.New(opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create qdrant store: %w", err)
		}
		return store, store.Close, nil
	default:
		store := memory.New(memory.WithEmbedder(embedder), memory.WithLogger(logger))
		return store, func() error { return nil }, nil
	}
}

func newQAChain(llm llms.Model, store vectorstores.VectorStore, cfg *config.Config, logger *slog.Logger) (*chains.VectorDBQAWithSources, error) {
	combine, err := chains.LoadQAWithSourcesChain(llm, cfg.Chain.Type)
	if err != nil {
		return nil, err
	}
	return chains.NewVectorDBQAWithSources(store, combine,
		chains.WithK(cfg.Chain.K),
		chains.WithReduceKBelowMaxTokens(cfg.Chain.ReduceKBelowMaxTokens),
		chains.WithMaxTokensLimit(cfg.Chain.MaxTokensLimit),
		chains.WithSearchKwargs(cfg.Chain.SearchKwargs),
		chains.WithReturnSourceDocuments(cfg.Chain.ReturnSourceDocuments),
		chains.WithLogger(logger),
	)
}

// loaderForPath picks the loader for a repository URL, a directory or a file.
func loaderForPath(path string, cfg *config.Config, logger *slog.Logger) (documentloaders.Loader, error) {
	if documentloaders.IsGitURL(path) {
		return documentloaders.NewGit(path,
			documentloaders.WithLogger(logger),
			documentloaders.WithBranch(cfg.Ingest.GitBranch),
		), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return documentloaders.NewDirectory(path, documentloaders.WithLogger(logger)), nil
	}
	loader, err := documentloaders.NewFile(path, documentloaders.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return loader, nil
}

// loadPath reads a repository, a file or a directory tree into split documents.
func loadPath(ctx context.Context, path string, cfg *config.Config, logger *slog.Logger) ([]schema.Document, error) {
	loader, err := loaderForPath(path, cfg, logger)
	if err != nil {
		return nil, err
	}

	docs, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	splitter, err := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.Splitter.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.Splitter.ChunkOverlap),
	)
	if err != nil {
		return nil, err
	}
	return splitter.SplitDocuments(ctx, docs)
}

// ingest loads every path into store and returns the number of chunks added.
func ingest(ctx context.Context, store vectorstores.VectorStore, paths []string, cfg *config.Config, logger *slog.Logger) (int, error) {
	total := 0
	for _, path := range paths {
		docs, err := loadPath(ctx, path, cfg, logger)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", path, err)
		}
		if len(docs) == 0 {
			logger.WarnContext(ctx, "No documents found", "path", path)
			continue
		}
		ids, err := store.AddDocuments(ctx, docs)
		if err != nil {
			return total, fmt.Errorf("store %s: %w", path, err)
		}
		total += len(ids)
		logger.InfoContext(ctx, "Ingested path", "path", path, "chunks", len(ids))
	}
	return total, nil
}
