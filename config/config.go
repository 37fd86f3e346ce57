// Package config loads sourceqa settings from an optional YAML file, a .env
// file and the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Chain       ChainConfig       `yaml:"chain"`
	Splitter    SplitterConfig    `yaml:"splitter"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

type LLMConfig struct {
	Provider  string `yaml:"provider" validate:"required,oneof=ollama gemini openai"`
	Model     string `yaml:"model"`
	ServerURL string `yaml:"server_url" validate:"omitempty,url"`
	APIKey    string `yaml:"api_key" validate:"required_unless=Provider ollama"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
}

// EmbedderConfig selects the embedding model. An empty provider reuses the
// LLM provider and its credentials.
type EmbedderConfig struct {
	Provider       string `yaml:"provider" validate:"omitempty,oneof=ollama gemini openai"`
	Model          string `yaml:"model"`
	BatchSize      int    `yaml:"batch_size" validate:"gt=0"`
	MaxConcurrency int    `yaml:"max_concurrency" validate:"gt=0"`
}

type VectorStoreConfig struct {
	Provider   string `yaml:"provider" validate:"required,oneof=qdrant memory"`
	URL        string `yaml:"url" validate:"omitempty,url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection" validate:"required_if=Provider qdrant"`
}

type ChainConfig struct {
	Type                  string         `yaml:"type" validate:"required,oneof=stuff map_reduce refine"`
	K                     int            `yaml:"k" validate:"gt=0"`
	ReduceKBelowMaxTokens bool           `yaml:"reduce_k_below_max_tokens"`
	MaxTokensLimit        int            `yaml:"max_tokens_limit" validate:"gt=0"`
	SearchKwargs          map[string]any `yaml:"search_kwargs"`
	ReturnSourceDocuments bool           `yaml:"return_source_documents"`
}

type SplitterConfig struct {
	ChunkSize    int `yaml:"chunk_size" validate:"gt=0"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// IngestConfig applies to repository URLs passed to ingest. An empty branch
// clones the remote's default branch.
type IngestConfig struct {
	GitBranch string `yaml:"git_branch"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" validate:"required"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the configuration used when nothing overrides it: a local
// Ollama model, an in-memory store and the chain's own defaults.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "ollama",
			Model:     "llama3.2",
			ServerURL: "http://localhost:11434",
		},
		Embedder: EmbedderConfig{
			Model:          "nomic-embed-text",
			BatchSize:      32,
			MaxConcurrency: 8,
		},
		VectorStore: VectorStoreConfig{
			Provider:   "memory",
			Collection: "sourceqa",
		},
		Chain: ChainConfig{
			Type:           "stuff",
			K:              4,
			MaxTokensLimit: 3375,
			SearchKwargs:   map[string]any{},
		},
		Splitter: SplitterConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   2 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if cfg.Chain.SearchKwargs == nil {
		cfg.Chain.SearchKwargs = map[string]any{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		*dst = n
		return nil
	}
	setBool := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
		}
		*dst = b
		return nil
	}

	setString("SOURCEQA_LLM_PROVIDER", &c.LLM.Provider)
	setString("SOURCEQA_LLM_MODEL", &c.LLM.Model)
	setString("SOURCEQA_EMBEDDER_PROVIDER", &c.Embedder.Provider)
	setString("SOURCEQA_EMBEDDING_MODEL", &c.Embedder.Model)
	setString("SOURCEQA_VECTOR_STORE", &c.VectorStore.Provider)
	setString("SOURCEQA_COLLECTION", &c.VectorStore.Collection)
	setString("SOURCEQA_CHAIN_TYPE", &c.Chain.Type)
	setString("SOURCEQA_ADDR", &c.Server.Addr)
	setString("SOURCEQA_GIT_BRANCH", &c.Ingest.GitBranch)
	setString("SOURCEQA_LOG_LEVEL", &c.Log.Level)
	setString("SOURCEQA_LOG_FORMAT", &c.Log.Format)
	setString("QDRANT_URL", &c.VectorStore.URL)
	setString("QDRANT_API_KEY", &c.VectorStore.APIKey)
	setString("OPENAI_BASE_URL", &c.LLM.BaseURL)

	switch c.LLM.Provider {
	case "ollama":
		setString("OLLAMA_URL", &c.LLM.ServerURL)
	case "gemini":
		setString("GEMINI_API_KEY", &c.LLM.APIKey)
	case "openai":
		setString("OPENAI_API_KEY", &c.LLM.APIKey)
	}

	if v, ok := lookup("SOURCEQA_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	return errors.Join(
		setInt("SOURCEQA_K", &c.Chain.K),
		setInt("SOURCEQA_MAX_TOKENS_LIMIT", &c.Chain.MaxTokensLimit),
		setBool("SOURCEQA_REDUCE_K_BELOW_MAX_TOKENS", &c.Chain.ReduceKBelowMaxTokens),
		setBool("SOURCEQA_RETURN_SOURCE_DOCUMENTS", &c.Chain.ReturnSourceDocuments),
		setInt("SOURCEQA_CHUNK_SIZE", &c.Splitter.ChunkSize),
		setInt("SOURCEQA_CHUNK_OVERLAP", &c.Splitter.ChunkOverlap),
	)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EmbedderProvider returns the provider used for embeddings.
func (c *Config) EmbedderProvider() string {
	if c.Embedder.Provider != "" {
		return c.Embedder.Provider
	}
	return c.LLM.Provider
}
