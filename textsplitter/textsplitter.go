// Package textsplitter cuts documents into chunks small enough to embed and
// to fit in a prompt.
package textsplitter

import (
	"context"
	"errors"
	"maps"

	"github.com/sevigo/sourceqa/schema"
)

// ChunkIndexKey is the metadata key holding a chunk's position in its document.
const ChunkIndexKey = "chunk_index"

var ErrInvalidChunkSize = errors.New("textsplitter: invalid chunk size")

type TextSplitter interface {
	SplitText(ctx context.Context, text string) ([]string, error)
	SplitDocuments(ctx context.Context, docs []schema.Document) ([]schema.Document, error)
}

// splitDocuments applies split to every document. Chunks get a copy of their
// document's metadata plus ChunkIndexKey.
func splitDocuments(ctx context.Context, split func(context.Context, string) ([]string, error), docs []schema.Document) ([]schema.Document, error) {
	var out []schema.Document
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := split(ctx, doc.PageContent)
		if err != nil {
			return nil, err
		}
		for i, chunk := range chunks {
			metadata := maps.Clone(doc.Metadata)
			if metadata == nil {
				metadata = make(map[string]any, 1)
			}
			metadata[ChunkIndexKey] = i
			out = append(out, schema.NewDocument(chunk, metadata))
		}
	}
	return out, nil
}
