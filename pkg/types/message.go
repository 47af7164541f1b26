package types

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat message exchanged with an LLM provider.
type Message struct {
	Role    MessageRole
	Content string
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// ModelInfo describes the model behind a provider.
type ModelInfo struct {
	Provider          string
	Name              string
	SupportsStreaming bool
	MaxTokens         int
	Metadata          map[string]interface{}
}
