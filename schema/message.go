package schema

import "strings"

// ChatMessageType is the author of a message in a chat exchange.
type ChatMessageType string

const (
	ChatMessageTypeSystem ChatMessageType = "system"
	ChatMessageTypeHuman  ChatMessageType = "human"
	ChatMessageTypeAI     ChatMessageType = "ai"
)

// ContentPart is one piece of a message. Only text is produced today; the
// unexported method keeps the set of part types closed to this package.
type ContentPart interface {
	String() string
	isPart()
}

type TextContent struct {
	Text string
}

func (tc TextContent) String() string { return tc.Text }

func (TextContent) isPart() {}

// MessageContent is a role-tagged message handed to a chat model.
type MessageContent struct {
	Role  ChatMessageType
	Parts []ContentPart
}

// String joins the non-empty parts with single spaces.
func (mc MessageContent) String() string {
	var b strings.Builder
	for _, part := range mc.Parts {
		s := part.String()
		if s == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	return b.String()
}

func (mc MessageContent) GetTextContent() string {
	return mc.String()
}

func NewTextMessage(role ChatMessageType, text string) MessageContent {
	return MessageContent{Role: role, Parts: []ContentPart{TextContent{Text: text}}}
}

func NewSystemMessage(text string) MessageContent {
	return NewTextMessage(ChatMessageTypeSystem, text)
}

func NewHumanMessage(text string) MessageContent {
	return NewTextMessage(ChatMessageTypeHuman, text)
}

// ContentResponse is the provider-neutral result of a generation call.
type ContentResponse struct {
	Choices []*ContentChoice
}

type ContentChoice struct {
	Content        string
	StopReason     string
	GenerationInfo map[string]any
}
