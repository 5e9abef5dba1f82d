package memory

import (
	"context"

	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

// BufferMemory remembers the last MaxHistory messages. System messages
// are never evicted.
type BufferMemory struct {
	MaxHistory int
	Buffer     []*engines.ChatMessage
}

func (memory *BufferMemory) reduceBuffer() {
	if memory.MaxHistory <= 0 {
		return
	}
	for len(memory.Buffer) > memory.MaxHistory {
		_, oldest, ok := lo.FindIndexOf(memory.Buffer, func(msg *engines.ChatMessage) bool {
			return msg.Role != engines.ConvRoleSystem
		})
		if !ok {
			return
		}
		memory.Buffer = append(slices.Clone(memory.Buffer[:oldest]), memory.Buffer[oldest+1:]...)
	}
}

func (memory *BufferMemory) Add(_ context.Context, msg *engines.ChatMessage) error {
	memory.Buffer = append(memory.Buffer, msg)
	memory.reduceBuffer()
	return nil
}

func (memory *BufferMemory) AddPrompt(prompt *engines.ChatPrompt) error {
	memory.Buffer = append(memory.Buffer, prompt.History...)
	memory.reduceBuffer()
	return nil
}

// PromptWithContext records nextMessages and returns the conversation to
// send. The returned prompt does not alias the buffer.
func (memory *BufferMemory) PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error) {
	memory.Buffer = append(memory.Buffer, nextMessages...)
	memory.reduceBuffer()
	return &engines.ChatPrompt{
		History: slices.Clone(memory.Buffer),
	}, nil
}

func NewBufferedMemory(maxHistory int) *BufferMemory {
	return &BufferMemory{
		MaxHistory: maxHistory,
	}
}
