package engines

type ConvRole string

const (
	ConvRoleUser      ConvRole = "user"
	ConvRoleSystem    ConvRole = "system"
	ConvRoleAssistant ConvRole = "assistant"
	ConvRoleFunction  ConvRole = "function"
	ConvRoleTool      ConvRole = "tool"
)

type ToolType string

const ToolTypeFunction ToolType = "function"

type ChatMessage struct {
	Role         ConvRole      `json:"role" yaml:"role"`
	Text         string        `json:"content,omitempty" yaml:"content,omitempty"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	FunctionCall *FunctionCall `json:"function_call,omitempty" yaml:"function_call,omitempty"`
	ToolCalls    []ToolCall    `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID   string        `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
}

// HasCalls reports whether the message asks for a function or tool invocation.
func (msg *ChatMessage) HasCalls() bool {
	return msg.FunctionCall != nil || len(msg.ToolCalls) > 0
}

type FunctionCall struct {
	Name string `json:"name" yaml:"name"`
	Args string `json:"arguments" yaml:"arguments"`
}

type ToolCall struct {
	ID       string       `json:"id" yaml:"id"`
	Type     ToolType     `json:"type" yaml:"type"`
	Function FunctionCall `json:"function" yaml:"function"`
}

// ChatPrompt is a conversation: the ordered dialogue history sent to the model.
type ChatPrompt struct {
	History []*ChatMessage
}

// With returns a new prompt with msgs appended, leaving the receiver untouched.
func (prompt *ChatPrompt) With(msgs ...*ChatMessage) *ChatPrompt {
	history := make([]*ChatMessage, 0, len(prompt.History)+len(msgs))
	history = append(history, prompt.History...)
	history = append(history, msgs...)
	return &ChatPrompt{History: history}
}
