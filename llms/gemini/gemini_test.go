package gemini

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sevigo/sourceqa/schema"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := New(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New(context.Background(), WithAPIKey("key"), WithModel(""))
	assert.ErrorIs(t, err, ErrInvalidModel)
}

func TestConvertMessages(t *testing.T) {
	t.Run("system message becomes instruction", func(t *testing.T) {
		contents, system, err := convertMessages([]schema.MessageContent{
			schema.NewSystemMessage("be brief"),
			schema.NewHumanMessage("hi"),
			schema.NewTextMessage(schema.ChatMessageTypeAI, "hello"),
		})
		require.NoError(t, err)
		require.NotNil(t, system)
		assert.Equal(t, "be brief", system.Parts[0].Text)
		require.Len(t, contents, 2)
		assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(contents[0].Role))
		assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(contents[1].Role))
	})

	t.Run("system message must come first", func(t *testing.T) {
		_, _, err := convertMessages([]schema.MessageContent{
			schema.NewHumanMessage("hi"),
			schema.NewSystemMessage("late"),
		})
		assert.ErrorIs(t, err, ErrSystemMessage)
	})
}

func TestResponseToSchema(t *testing.T) {
	_, err := responseToSchema(&genai.GenerateContentResponse{}, "m", 0)
	assert.ErrorIs(t, err, ErrNoContent)

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText("answer", genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{TotalTokenCount: 12},
	}
	out, err := responseToSchema(resp, "m", 0)
	require.NoError(t, err)
	assert.Equal(t, "answer", out.Choices[0].Content)
	assert.Equal(t, int32(12), out.Choices[0].GenerationInfo["TotalTokens"])
}
