package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sevigo/sourceqa/schema"
)

func TestDocument_Source(t *testing.T) {
	t.Run("string source", func(t *testing.T) {
		doc := schema.NewDocument("body", map[string]any{"source": "docs/a.md"})
		assert.Equal(t, "docs/a.md", doc.Source())
	})

	t.Run("non-string source is formatted", func(t *testing.T) {
		doc := schema.NewDocument("body", map[string]any{"source": 42})
		assert.Equal(t, "42", doc.Source())
	})

	t.Run("missing source", func(t *testing.T) {
		doc := schema.NewDocument("body", nil)
		assert.Empty(t, doc.Source())
		assert.NotNil(t, doc.Metadata, "NewDocument should allocate metadata")
	})
}

func TestMessageContent_String(t *testing.T) {
	msg := schema.MessageContent{
		Role: schema.ChatMessageTypeHuman,
		Parts: []schema.ContentPart{
			schema.TextContent{Text: "hello"},
			schema.TextContent{Text: ""},
			schema.TextContent{Text: "world"},
		},
	}
	assert.Equal(t, "hello world", msg.GetTextContent())
	assert.Empty(t, schema.MessageContent{}.String())
}
