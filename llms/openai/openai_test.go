package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/llms/openai"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *openai.LLM {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	llm, err := openai.New(
		openai.WithAPIKey("test-key"),
		openai.WithBaseURL(srv.URL+"/"),
		openai.WithMaxRetries(0),
		openai.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return llm
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := openai.New()
	assert.ErrorIs(t, err, openai.ErrNoAPIKey)
}

func TestLLM_Call(t *testing.T) {
	var body map[string]any
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"42"}}],
			"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`)
	})

	out, err := llm.Call(context.Background(), "meaning of life?", llms.WithModel("gpt-test"))
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, "gpt-test", body["model"])
}

func TestLLM_EmbedDocuments(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":1,"embedding":[0.3,0.4]},{"object":"embedding","index":0,"embedding":[0.1,0.2]}],
			"usage":{"prompt_tokens":2,"total_tokens":2}}`)
	})

	vectors, err := llm.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.1, vectors[0][0], 1e-6, "results are placed by index")
	assert.InDelta(t, 0.3, vectors[1][0], 1e-6)
}

func TestLLM_TokenCountFallsBackToEstimate(t *testing.T) {
	llm := newTestLLM(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("token estimation must not call the API")
	})
	n, err := llms.CountTokens(context.Background(), llm, "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
