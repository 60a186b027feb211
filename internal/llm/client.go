package llm

import (
	"context"
	"fmt"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is the provider-agnostic chat message passed to a client.
type Message struct {
	Role    Role
	Content string
}

// Validate checks that the message carries a known role and some content.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("invalid message role: %s", m.Role)
	}
	return nil
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}

// Completion is the normalized result of a plain chat call.
type Completion struct {
	Content string
	Usage   Usage
}

// FunctionSpec describes one callable function for providers that support
// native structured calling. JSONSchema is kept as a raw JSON string.
type FunctionSpec struct {
	Name        string
	Description string
	JSONSchema  string
}

// FunctionCompletion is the normalized result of a function-calling chat call.
// When the model chose not to call a function, HasFunctionCall is false and
// AssistantContent carries whatever text the model produced instead.
type FunctionCompletion struct {
	HasFunctionCall  bool
	FunctionName     string
	ArgumentsJSON    string
	AssistantContent string
	Usage            Usage
}

// Client abstracts the chosen SDK (OpenAI, Anthropic, compatible gateways).
type Client interface {
	Complete(ctx context.Context, messages []Message) (Completion, error)
	CompleteWithFunctions(ctx context.Context, messages []Message, functions []FunctionSpec) (FunctionCompletion, error)
	// SupportsFunctions reports whether the underlying model can be trusted
	// with native function calling. Clients that return false are always
	// driven through the plain Complete path.
	SupportsFunctions() bool
}
