package chains

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/prompts"
	"github.com/sevigo/sourceqa/schema"
)

const (
	defaultQuestionKey = "question"

	AnswerKey          = "answer"
	SourcesKey         = "sources"
	SourceDocumentsKey = "source_documents"
)

var (
	sourcesMarkerRe  = regexp.MustCompile(`SOURCES:\s`)
	questionMarkerRe = regexp.MustCompile(`QUESTION:\s`)
)

// LoadQAWithSourcesChain builds the combine step for a QA-with-sources chain.
// chainType is one of "stuff", "map_reduce" or "refine".
func LoadQAWithSourcesChain(llm llms.Model, chainType string) (CombineDocuments, error) {
	if llm == nil {
		return nil, fmt.Errorf("%w: llm", ErrNilDependency)
	}
	switch chainType {
	case StrategyStuff.String():
		return NewStuffDocuments(NewLLMChain(llm, prompts.QAWithSourcesPrompt)), nil
	case StrategyMapReduce.String():
		return NewMapReduceDocuments(
			NewLLMChain(llm, prompts.MapQuestionPrompt),
			NewStuffDocuments(NewLLMChain(llm, prompts.QAWithSourcesPrompt)),
		), nil
	case StrategyRefine.String():
		return NewRefineDocuments(
			NewLLMChain(llm, prompts.RefineInitialPrompt),
			NewLLMChain(llm, prompts.RefinePrompt),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChainType, chainType)
	}
}

// SplitSources separates a model answer into the text before the first
// "SOURCES: " marker and the source list after it. Anything from a following
// "QUESTION: " marker on is discarded. Without a marker sources is empty.
func SplitSources(text string) (answer, sources string) {
	loc := sourcesMarkerRe.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text), ""
	}
	answer = text[:loc[0]]
	sources = text[loc[1]:]
	if q := questionMarkerRe.FindStringIndex(sources); q != nil {
		sources = sources[:q[0]]
	}
	return strings.TrimSpace(answer), strings.TrimSpace(sources)
}

// ParseSources splits a comma separated sources field into trimmed,
// non-empty entries.
func ParseSources(sources string) []string {
	var out []string
	for _, s := range strings.Split(sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// qaWithSources is the part shared by the QA-with-sources chains: it turns
// retrieved documents into the answer and sources outputs.
type qaWithSources struct {
	questionKey           string
	returnSourceDocuments bool
	logger                *slog.Logger
}

func (b qaWithSources) inputKeys() []string {
	return []string{b.questionKey}
}

func (b qaWithSources) outputKeys() []string {
	keys := []string{AnswerKey, SourcesKey}
	if b.returnSourceDocuments {
		keys = append(keys, SourceDocumentsKey)
	}
	return keys
}

func (b qaWithSources) question(inputs map[string]any) (string, error) {
	return stringInput(inputs, b.questionKey)
}

// answer runs the combine step over docs. The combine step always sees the
// question under "question" whatever key the caller used.
func (b qaWithSources) answer(
	ctx context.Context,
	combine CombineDocuments,
	inputs map[string]any,
	question string,
	docs []schema.Document,
	opts ...ChainCallOption,
) (map[string]any, error) {
	combineInputs := maps.Clone(inputs)
	if combineInputs == nil {
		combineInputs = make(map[string]any, 1)
	}
	combineInputs[defaultQuestionKey] = question

	raw, err := combine.CombineDocs(ctx, docs, combineInputs, opts...)
	if err != nil {
		b.logger.ErrorContext(ctx, "Combining documents failed", "error", err, "documents", len(docs))
		return nil, err
	}

	answer, sources := SplitSources(raw)
	out := map[string]any{
		AnswerKey:  answer,
		SourcesKey: sources,
	}
	if b.returnSourceDocuments {
		out[SourceDocumentsKey] = docs
	}
	return out, nil
}

// reduceTokensBelowLimit returns the longest prefix of docs whose page
// contents total at most limit tokens, as counted by the combine step's
// model. It only applies to the stuff strategy when enabled; otherwise docs
// is returned unchanged. Every document is counted before any is dropped, so
// a token counter error on any of them is returned, unwrapped.
func reduceTokensBelowLimit(
	ctx context.Context,
	combine CombineDocuments,
	docs []schema.Document,
	enabled bool,
	limit int,
) ([]schema.Document, error) {
	if !enabled || combine.Strategy() != StrategyStuff {
		return docs, nil
	}

	llm := combine.LLM()
	counts := make([]int, len(docs))
	total := 0
	for i, doc := range docs {
		n, err := llms.CountTokens(ctx, llm, doc.PageContent)
		if err != nil {
			return nil, err
		}
		counts[i] = n
		total += n
	}

	keep := len(docs)
	for keep > 0 && total > limit {
		keep--
		total -= counts[keep]
	}
	if keep == len(docs) {
		return docs, nil
	}
	return docs[:keep:keep], nil
}
