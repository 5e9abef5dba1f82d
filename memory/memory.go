// Package memory keeps the running conversation of an interactive chat
// session and decides which part of it is sent with the next request.
package memory

import (
	"context"

	"github.com/natexcvi/go-chatgpt/engines"
)

type Memory interface {
	Add(ctx context.Context, msg *engines.ChatMessage) error
	AddPrompt(prompt *engines.ChatPrompt) error
	PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error)
}
