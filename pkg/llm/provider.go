// Package llm provides the abstraction for chat model integration.
//
// Providers handle API communication with LLM services and return plain
// response text. This keeps providers focused on model concerns without
// coupling them to task events or orchestration; the agent layer owns
// prompt construction and response parsing.
package llm

import "context"

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a chat conversation.
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

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) *Message {
	return &Message{Role: RoleAssistant, Content: content}
}

// Provider defines the interface for chat model integrations.
type Provider interface {
	// Complete sends messages to the model and returns the full response text.
	Complete(ctx context.Context, messages []*Message) (string, error)

	// GetModel returns the model name being used.
	GetModel() string
}
