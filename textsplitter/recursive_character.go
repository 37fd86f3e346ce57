package textsplitter

import (
	"context"
	"fmt"
	"strings"

	"github.com/sevigo/sourceqa/schema"
)

// RecursiveCharacter splits on the coarsest separator present in the text and
// recurses into pieces that are still too long with the finer separators.
// Adjacent pieces are merged back up to the chunk size, with the configured
// overlap carried between consecutive chunks.
type RecursiveCharacter struct {
	opts options
}

var _ TextSplitter = (*RecursiveCharacter)(nil)

func NewRecursiveCharacter(opts ...Option) (*RecursiveCharacter, error) {
	o := applyOptions(opts...)
	if o.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkSize, o.chunkSize)
	}
	if o.chunkOverlap < 0 || o.chunkOverlap >= o.chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap (%d) must be in [0, %d)", ErrInvalidChunkSize, o.chunkOverlap, o.chunkSize)
	}
	return &RecursiveCharacter{opts: o}, nil
}

func (s *RecursiveCharacter) SplitText(_ context.Context, text string) ([]string, error) {
	return s.split(text, s.opts.separators), nil
}

func (s *RecursiveCharacter) SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error) {
	return splitDocuments(ctx, s.SplitText, docs)
}

func (s *RecursiveCharacter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, pending []string
	for _, piece := range strings.Split(text, separator) {
		if piece == "" {
			continue
		}
		if s.opts.lengthFunc(piece) < s.opts.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, separator)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, separator)...)
	}
	return chunks
}

// merge joins pieces into chunks no longer than the chunk size. When a chunk
// is emitted, pieces are dropped from its front until at most chunkOverlap
// remains, and the next chunk starts from what is left.
func (s *RecursiveCharacter) merge(pieces []string, separator string) []string {
	sepLen := s.opts.lengthFunc(separator)
	var (
		chunks  []string
		current []string
		total   int
	)

	join := func() {
		if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	withSep := func(n int) int {
		if n > 0 {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		n := s.opts.lengthFunc(piece)
		if total+n+withSep(len(current)) > s.opts.chunkSize && len(current) > 0 {
			join()
			for total > s.opts.chunkOverlap || (total > 0 && total+n+withSep(len(current)) > s.opts.chunkSize) {
				total -= s.opts.lengthFunc(current[0]) + withSep(len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n + withSep(len(current)-1)
	}
	join()
	return chunks
}
