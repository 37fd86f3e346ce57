package ollama_test

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
	"github.com/sevigo/sourceqa/llms/ollama"
)

func newTestLLM(t *testing.T, handler http.HandlerFunc) *ollama.LLM {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	llm, err := ollama.New(
		ollama.WithModel("test-model"),
		ollama.WithServerURL(srv.URL),
		ollama.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	return llm
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := ollama.New()
	assert.ErrorIs(t, err, ollama.ErrInvalidModel)
}

func TestLLM_CountTokens(t *testing.T) {
	var gotPrompt string
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt, _ = req["prompt"].(string)
		_, _ = io.WriteString(w, `{"model":"test-model","response":"x","done":true,"prompt_eval_count":7}`+"\n")
	})

	n, err := llm.CountTokens(context.Background(), "how many tokens")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "how many tokens", gotPrompt)

	n, err = llm.CountTokens(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n, "empty text must not hit the server")
}

func TestLLM_Call(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		_, _ = io.WriteString(w, `{"model":"test-model","message":{"role":"assistant","content":"Hello"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"model":"test-model","message":{"role":"assistant","content":" there"},"done":true,"done_reason":"stop","prompt_eval_count":3,"eval_count":2}`+"\n")
	})

	out, err := llm.Call(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
}

func TestLLM_CallStreaming(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"a"},"done":false}`+"\n")
		_, _ = io.WriteString(w, `{"message":{"role":"assistant","content":"b"},"done":true}`+"\n")
	})

	var chunks []string
	out, err := llm.Call(context.Background(), "hi", llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		chunks = append(chunks, string(chunk))
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "ab", out)
	assert.Equal(t, []string{"a", "b"}, chunks)
}

func TestLLM_EmbedDocuments(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		_, _ = io.WriteString(w, `{"model":"test-model","embeddings":[[0.1,0.2],[0.3,0.4]]}`)
	})

	vectors, err := llm.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 0.3, vectors[1][0], 1e-6)

	_, err = llm.EmbedDocuments(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ollama.ErrIncompleteEmbedding)
}

func TestLLM_GetModelDetailsNotFound(t *testing.T) {
	llm := newTestLLM(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"model 'test-model' not found"}`)
	})

	_, err := llm.GetModelDetails(context.Background())
	assert.ErrorIs(t, err, ollama.ErrModelNotFound)
}
