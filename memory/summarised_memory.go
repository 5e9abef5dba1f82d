package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/natexcvi/go-chatgpt/chatgpt"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

const emptyMemoryState = "<memory state is empty>"

const summariserInstructions = "You maintain the memory of a long conversation between a user and an assistant. " +
	"You receive the current memory state followed by one or more new messages from the conversation. " +
	"Call update_memory with the updated memory state. Keep it as compact as possible while preserving facts, " +
	"decisions and open questions the assistant needs to continue the conversation."

const updateMemoryFunction = "update_memory"

type memoryUpdate struct {
	State string `json:"state" jsonschema:"description=the updated memory state"`
}

var updateMemorySpecs = lo.Must(engines.ReflectFunctionSpecs(
	updateMemoryFunction,
	"Replaces the memory state of the conversation.",
	memoryUpdate{},
))

//go:generate mockgen -source=summarised_memory.go -destination=mocks/completer.go -package=mocks
type Completer interface {
	Complete(ctx context.Context, prompt *engines.ChatPrompt, opts chatgpt.Options) (*chatgpt.Output, error)
}

// SummarisedMemory keeps the most recent messages verbatim and folds
// everything it has seen into a running summary produced by the model.
type SummarisedMemory struct {
	recentMessageLimit int
	recentMessages     []*engines.ChatMessage
	originalPrompt     *engines.ChatPrompt
	memoryState        string
	completer          Completer
	opts               chatgpt.Options
}

func (memory *SummarisedMemory) reduceBuffer() {
	if memory.recentMessageLimit > 0 && len(memory.recentMessages) > memory.recentMessageLimit {
		memory.recentMessages = memory.recentMessages[len(memory.recentMessages)-memory.recentMessageLimit:]
	}
}

func (memory *SummarisedMemory) updateMemoryState(ctx context.Context, msgs ...*engines.ChatMessage) error {
	prompt := &engines.ChatPrompt{
		History: []*engines.ChatMessage{
			{Role: engines.ConvRoleSystem, Text: summariserInstructions},
			{Role: engines.ConvRoleUser, Text: "Memory state:\n\n" + memory.memoryState},
		},
	}
	for _, msg := range msgs {
		prompt.History = append(prompt.History, &engines.ChatMessage{
			Role: engines.ConvRoleUser,
			Text: fmt.Sprintf("New message:\n\nRole: %s\nContent: %s", msg.Role, msg.Text),
		})
	}
	output, err := memory.completer.Complete(ctx, prompt, memory.opts)
	if err != nil {
		return fmt.Errorf("failed to update memory state: %w", err)
	}
	memory.memoryState = strings.TrimSpace(stateOf(output.Single()))
	return nil
}

// stateOf prefers the state passed to update_memory and falls back to the
// reply text for models that answer in prose.
func stateOf(choice chatgpt.Choice) string {
	for _, call := range choice.Calls {
		if call.Name != updateMemoryFunction {
			continue
		}
		if state, ok := call.Args["state"].(string); ok {
			return state
		}
	}
	return choice.Text
}

func (memory *SummarisedMemory) Add(ctx context.Context, msg *engines.ChatMessage) error {
	memory.recentMessages = append(memory.recentMessages, msg)
	memory.reduceBuffer()
	return memory.updateMemoryState(ctx, msg)
}

func (memory *SummarisedMemory) AddPrompt(prompt *engines.ChatPrompt) error {
	memory.originalPrompt = prompt
	return nil
}

func (memory *SummarisedMemory) MemoryState() string {
	return memory.memoryState
}

func (memory *SummarisedMemory) PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error) {
	memory.recentMessages = append(memory.recentMessages, nextMessages...)
	var history []*engines.ChatMessage
	if memory.originalPrompt != nil {
		history = slices.Clone(memory.originalPrompt.History)
	}
	history = append(history, &engines.ChatMessage{
		Role: engines.ConvRoleSystem,
		Text: "Memory state:\n\n" + memory.memoryState,
	})
	history = append(history, memory.recentMessages...)
	return &engines.ChatPrompt{History: history}, nil
}

// NewSummarisedMemory summarises through completer using opts, which
// usually enable the cache so replayed sessions cost nothing.
func NewSummarisedMemory(recentMessageLimit int, completer Completer, opts chatgpt.Options) *SummarisedMemory {
	opts.Functions = append(slices.Clone(opts.Functions), updateMemorySpecs)
	return &SummarisedMemory{
		recentMessageLimit: recentMessageLimit,
		memoryState:        emptyMemoryState,
		completer:          completer,
		opts:               opts,
	}
}
