package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sourceqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.VectorStore.Provider)
	assert.Equal(t, "stuff", cfg.Chain.Type)
	assert.Equal(t, 4, cfg.Chain.K)
	assert.Equal(t, 3375, cfg.Chain.MaxTokensLimit)
	assert.False(t, cfg.Chain.ReduceKBelowMaxTokens)
	assert.NotNil(t, cfg.Chain.SearchKwargs)
	assert.Equal(t, "ollama", cfg.EmbedderProvider())
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: gemini
  model: gemini-2.5-flash
  api_key: from-file
embedder:
  provider: ollama
vector_store:
  provider: qdrant
  url: http://qdrant:6334
  collection: handbook
chain:
  type: map_reduce
  k: 6
  reduce_k_below_max_tokens: true
  max_tokens_limit: 2000
  search_kwargs:
    score_threshold: 0.5
server:
  read_timeout: 5s
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, "ollama", cfg.EmbedderProvider())
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "handbook", cfg.VectorStore.Collection)
	assert.Equal(t, "map_reduce", cfg.Chain.Type)
	assert.Equal(t, 6, cfg.Chain.K)
	assert.True(t, cfg.Chain.ReduceKBelowMaxTokens)
	assert.Equal(t, 2000, cfg.Chain.MaxTokensLimit)
	assert.Equal(t, 0.5, cfg.Chain.SearchKwargs["score_threshold"])
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	// Untouched sections keep their defaults.
	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: openai\n  api_key: from-file\n")
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("SOURCEQA_K", "2")
	t.Setenv("SOURCEQA_REDUCE_K_BELOW_MAX_TOKENS", "true")
	t.Setenv("SOURCEQA_MAX_TOKENS_LIMIT", "120")
	t.Setenv("SOURCEQA_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("QDRANT_URL", "http://localhost:6334")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.LLM.APIKey)
	assert.Equal(t, 2, cfg.Chain.K)
	assert.True(t, cfg.Chain.ReduceKBelowMaxTokens)
	assert.Equal(t, 120, cfg.Chain.MaxTokensLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://localhost:6334", cfg.VectorStore.URL)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "chain: [unclosed"))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("bad integer in environment", func(t *testing.T) {
		t.Setenv("SOURCEQA_K", "four")
		_, err := config.Load("")
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("non-positive k", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "chain:\n  k: 0\n"))
		require.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "Config.Chain.K must be greater than 0")
	})

	t.Run("gemini without key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "")
		_, err := config.Load(writeConfig(t, "llm:\n  provider: gemini\n"))
		require.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "Config.LLM.APIKey is required")
	})

	t.Run("unknown chain type", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "chain:\n  type: rerank\n"))
		require.ErrorIs(t, err, config.ErrInvalidConfig)
		assert.Contains(t, err.Error(), "Config.Chain.Type must be one of")
	})

	t.Run("overlap not below chunk size", func(t *testing.T) {
		_, err := config.Load(writeConfig(t, "splitter:\n  chunk_size: 100\n  chunk_overlap: 100\n"))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := config.NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"component":"test"`)
}
