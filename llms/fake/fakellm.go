package fake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sevigo/sourceqa/llms"
	"github.com/sevigo/sourceqa/schema"
)

var ErrNoResponses = errors.New("no responses configured")

// LLM replays scripted responses and counts tokens by whitespace-separated words.
type LLM struct {
	mu          sync.Mutex
	responses   []string
	index       int
	prompts     []string
	callCount   int
	tokenCounts map[string]int
	tokenErr    error
	tokenErrs   map[string]error
	tokenCalls  int
}

var (
	_ llms.Model     = (*LLM)(nil)
	_ llms.Tokenizer = (*LLM)(nil)
)

func NewFakeLLM(responses []string) *LLM {
	return &LLM{
		responses:   responses,
		tokenCounts: make(map[string]int),
		tokenErrs:   make(map[string]error),
	}
}

// GenerateContent returns the next predefined response in the cycle.
func (f *LLM) GenerateContent(
	_ context.Context,
	messages []schema.MessageContent,
	_ ...llms.CallOption,
) (*schema.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.responses) == 0 {
		return nil, ErrNoResponses
	}

	if len(messages) > 0 {
		f.prompts = append(f.prompts, messages[0].GetTextContent())
	}
	f.callCount++

	response := f.responses[f.index]
	f.index = (f.index + 1) % len(f.responses)

	return &schema.ContentResponse{
		Choices: []*schema.ContentChoice{
			{Content: response},
		},
	}, nil
}

// Call is a simplified interface for generating responses from a string prompt.
func (f *LLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

// CountTokens returns the count registered with SetTokenCount for text,
// otherwise the number of whitespace-separated words.
func (f *LLM) CountTokens(_ context.Context, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tokenCalls++
	if f.tokenErr != nil {
		return 0, f.tokenErr
	}
	if err, ok := f.tokenErrs[text]; ok {
		return 0, err
	}
	if n, ok := f.tokenCounts[text]; ok {
		return n, nil
	}
	return len(strings.Fields(text)), nil
}

// SetTokenCount pins the token count reported for text.
func (f *LLM) SetTokenCount(text string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenCounts[text] = n
}

// SetTokenizerError makes every CountTokens call fail with err.
func (f *LLM) SetTokenizerError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenErr = err
}

// SetTokenizerErrorFor makes CountTokens fail with err for text only.
func (f *LLM) SetTokenizerErrorFor(text string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenErrs[text] = err
}

// Reset resets the response index, call counters and prompt history.
func (f *LLM) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.index = 0
	f.callCount = 0
	f.tokenCalls = 0
	f.prompts = nil
}

// AddResponse appends a new response to the list.
func (f *LLM) AddResponse(response string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response)
}

// LastPrompt returns the last prompt sent to the LLM.
func (f *LLM) LastPrompt() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return "", false
	}
	return f.prompts[len(f.prompts)-1], true
}

// Prompts returns every prompt received, oldest first.
func (f *LLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// GetCallCount returns the number of times the LLM was called.
func (f *LLM) GetCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callCount
}

// TokenCallCount returns the number of CountTokens calls.
func (f *LLM) TokenCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}
