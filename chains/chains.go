// Package chains composes language models, prompts and retrieval into
// callable units that map named inputs to named outputs.
package chains

import (
	"context"
	"errors"
	"fmt"

	"github.com/sevigo/sourceqa/llms"
)

var (
	ErrMissingInput         = errors.New("chains: missing input")
	ErrInvalidInputType     = errors.New("chains: input has invalid type")
	ErrInvalidOutputType    = errors.New("chains: output has invalid type")
	ErrMultipleInputsInRun  = errors.New("chains: run requires a chain with exactly one input key")
	ErrMultipleOutputsInRun = errors.New("chains: run requires a chain with exactly one output key")
	ErrUnknownChainType     = errors.New("chains: unknown chain type")
	ErrNilDependency        = errors.New("chains: required dependency is nil")
	ErrInvalidConfig        = errors.New("chains: invalid configuration")
)

// MissingInputError reports an input key absent from a chain's input map.
// It matches ErrMissingInput with errors.Is.
type MissingInputError struct {
	Key string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("chains: missing input %q", e.Key)
}

func (e *MissingInputError) Is(target error) bool {
	return target == ErrMissingInput
}

type Chain interface {
	Call(ctx context.Context, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error)
	InputKeys() []string
	OutputKeys() []string
	ChainType() string
}

type chainCallOptions struct {
	llmOptions []llms.CallOption
}

type ChainCallOption func(*chainCallOptions)

// WithLLMOptions forwards call options to every model invocation made by the chain.
func WithLLMOptions(opts ...llms.CallOption) ChainCallOption {
	return func(o *chainCallOptions) {
		o.llmOptions = append(o.llmOptions, opts...)
	}
}

func parseChainCallOptions(opts ...ChainCallOption) chainCallOptions {
	var o chainCallOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Call checks that every input key of chain is present before calling it.
func Call(ctx context.Context, chain Chain, inputs map[string]any, opts ...ChainCallOption) (map[string]any, error) {
	for _, key := range chain.InputKeys() {
		if _, ok := inputs[key]; !ok {
			return nil, &MissingInputError{Key: key}
		}
	}
	return chain.Call(ctx, inputs, opts...)
}

// Run calls a chain with one input and one string output.
func Run(ctx context.Context, chain Chain, input string, opts ...ChainCallOption) (string, error) {
	inputKeys := chain.InputKeys()
	if len(inputKeys) != 1 {
		return "", ErrMultipleInputsInRun
	}
	outputKeys := chain.OutputKeys()
	if len(outputKeys) != 1 {
		return "", ErrMultipleOutputsInRun
	}

	outputs, err := Call(ctx, chain, map[string]any{inputKeys[0]: input}, opts...)
	if err != nil {
		return "", err
	}
	out, ok := outputs[outputKeys[0]].(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrInvalidOutputType, outputKeys[0], outputs[outputKeys[0]])
	}
	return out, nil
}

func stringInput(inputs map[string]any, key string) (string, error) {
	v, ok := inputs[key]
	if !ok {
		return "", &MissingInputError{Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrInvalidInputType, key, v)
	}
	return s, nil
}

// stringInputs keeps the string valued entries of inputs.
func stringInputs(inputs map[string]any) map[string]string {
	out := make(map[string]string, len(inputs))
	for k, v := range inputs {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
