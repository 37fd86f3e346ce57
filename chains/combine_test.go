package chains_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/sourceqa/chains"
	"github.com/sevigo/sourceqa/llms/fake"
	"github.com/sevigo/sourceqa/prompts"
	"github.com/sevigo/sourceqa/schema"
)

func TestStuffDocuments(t *testing.T) {
	llm := fake.NewFakeLLM([]string{"done"})
	stuff := chains.NewStuffDocuments(chains.NewLLMChain(llm, prompts.NewPromptTemplate("{{.question}}|{{.summaries}}")))

	out, err := stuff.Call(context.Background(), map[string]any{
		"input_documents": []schema.Document{doc("one", "a.md"), doc("two", "b.md")},
		"question":        "q",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"output_text": "done"}, out)

	prompt, _ := llm.LastPrompt()
	assert.Equal(t, "q|Content: one\nSource: a.md\n\nContent: two\nSource: b.md", prompt)

	assert.Equal(t, []string{"input_documents", "question"}, stuff.InputKeys())
	assert.Equal(t, chains.StrategyStuff, stuff.Strategy())
	assert.Equal(t, "stuff_documents_chain", stuff.ChainType())
	assert.Same(t, llm, stuff.LLM())
}

func TestStuffDocuments_MetadataVariables(t *testing.T) {
	llm := fake.NewFakeLLM([]string{"done"})
	stuff := chains.NewStuffDocuments(chains.NewLLMChain(llm, prompts.NewPromptTemplate("{{.summaries}}")))
	stuff.DocumentPrompt = prompts.NewPromptTemplate("[{{.source}} p{{.page}}] {{.page_content}}")
	stuff.DocumentSeparator = "\n"

	d := schema.NewDocument("text", map[string]any{"source": "a.pdf", "page": 2})
	_, err := stuff.CombineDocs(context.Background(), []schema.Document{d, doc("plain", "")}, nil)
	require.NoError(t, err)

	prompt, _ := llm.LastPrompt()
	assert.Equal(t, "[a.pdf p2] text\n[ p{{.page}}] plain", prompt)
}

func TestCombineCall_InputValidation(t *testing.T) {
	stuff := chains.NewStuffDocuments(chains.NewLLMChain(fake.NewFakeLLM([]string{"x"}), prompts.QAWithSourcesPrompt))

	_, err := stuff.Call(context.Background(), map[string]any{"question": "q"})
	assert.ErrorIs(t, err, chains.ErrMissingInput)

	_, err = stuff.Call(context.Background(), map[string]any{"input_documents": "nope", "question": "q"})
	assert.ErrorIs(t, err, chains.ErrInvalidInputType)
}

func TestMapReduceDocuments(t *testing.T) {
	var mapCalls atomic.Int32
	llm := funcLLM(func(prompt string) (string, error) {
		if rest, ok := strings.CutPrefix(prompt, "MAP "); ok {
			mapCalls.Add(1)
			return strings.ToUpper(rest), nil
		}
		return prompt, nil
	})

	mr := chains.NewMapReduceDocuments(
		chains.NewLLMChain(llm, prompts.NewPromptTemplate("MAP {{.context}}")),
		chains.NewStuffDocuments(chains.NewLLMChain(llm, prompts.NewPromptTemplate("REDUCE {{.question}}\n{{.summaries}}"))),
	)
	mr.MaxConcurrency = 3

	docs := []schema.Document{doc("alpha", "1"), doc("beta", "2"), doc("gamma", "3"), doc("delta", "4"), doc("epsilon", "5")}
	out, err := mr.CombineDocs(context.Background(), docs, map[string]any{"question": "q"})
	require.NoError(t, err)

	assert.Equal(t, int32(5), mapCalls.Load())
	assert.Equal(t, "REDUCE q\n"+
		"Content: ALPHA\nSource: 1\n\n"+
		"Content: BETA\nSource: 2\n\n"+
		"Content: GAMMA\nSource: 3\n\n"+
		"Content: DELTA\nSource: 4\n\n"+
		"Content: EPSILON\nSource: 5", out)

	assert.Equal(t, chains.StrategyMapReduce, mr.Strategy())
	assert.Equal(t, "map_reduce_documents_chain", mr.ChainType())
}

func TestMapReduceDocuments_MapError(t *testing.T) {
	mapErr := errors.New("model overloaded")
	llm := funcLLM(func(prompt string) (string, error) {
		if strings.Contains(prompt, "beta") {
			return "", mapErr
		}
		return prompt, nil
	})

	mr := chains.NewMapReduceDocuments(
		chains.NewLLMChain(llm, prompts.NewPromptTemplate("{{.context}}")),
		chains.NewStuffDocuments(chains.NewLLMChain(llm, prompts.NewPromptTemplate("{{.summaries}}"))),
	)

	_, err := mr.CombineDocs(context.Background(), []schema.Document{doc("alpha", "1"), doc("beta", "2")}, nil)
	assert.ErrorIs(t, err, mapErr)
}

func TestRefineDocuments(t *testing.T) {
	llm := funcLLM(func(prompt string) (string, error) {
		if rest, ok := strings.CutPrefix(prompt, "INIT "); ok {
			return "[" + rest + "]", nil
		}
		rest := strings.TrimPrefix(prompt, "REFINE ")
		existing, next, _ := strings.Cut(rest, " + ")
		return existing + "[" + next + "]", nil
	})

	refine := chains.NewRefineDocuments(
		chains.NewLLMChain(llm, prompts.NewPromptTemplate("INIT {{.context_str}}")),
		chains.NewLLMChain(llm, prompts.NewPromptTemplate("REFINE {{.existing_answer}} + {{.context_str}}")),
	)
	refine.DocumentPrompt = prompts.NewPromptTemplate("{{.page_content}}")

	out, err := refine.CombineDocs(context.Background(), []schema.Document{doc("a", "1"), doc("b", "2"), doc("c", "3")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "[a][b][c]", out)

	assert.Equal(t, chains.StrategyRefine, refine.Strategy())
	assert.Equal(t, "refine_documents_chain", refine.ChainType())
}

func TestRefineDocuments_NoDocuments(t *testing.T) {
	llm := fake.NewFakeLLM([]string{"I don't know."})
	refine := chains.NewRefineDocuments(
		chains.NewLLMChain(llm, prompts.RefineInitialPrompt),
		chains.NewLLMChain(llm, prompts.RefinePrompt),
	)

	out, err := refine.CombineDocs(context.Background(), nil, map[string]any{"question": "q"})
	require.NoError(t, err)
	assert.Equal(t, "I don't know.", out)
	assert.Equal(t, 1, llm.GetCallCount())
}

func TestCombineStrategy_String(t *testing.T) {
	assert.Equal(t, "stuff", chains.StrategyStuff.String())
	assert.Equal(t, "map_reduce", chains.StrategyMapReduce.String())
	assert.Equal(t, "refine", chains.StrategyRefine.String())
	assert.Equal(t, "CombineStrategy(0)", chains.CombineStrategy(0).String())
}
