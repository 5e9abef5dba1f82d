package engines

import "context"

//go:generate mockgen -source=engine.go -destination=mocks/engine.go -package=mocks
type Engine interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// ChatStream opens a token-delta stream. The caller owns the
	// returned stream and must Close it.
	ChatStream(ctx context.Context, req *ChatRequest) (ChunkStream, error)
}

// ChunkStream is a single-pass source of completion chunks.
// Recv returns io.EOF once the remote stream is exhausted.
type ChunkStream interface {
	Recv() (*ChatChunk, error)
	Close() error
}

type ChatRequest struct {
	Prompt      *ChatPrompt
	Model       string
	Temperature float32
	N           int
	// Functions are offered through the legacy function calling API,
	// Tools through tool calls. Either one enables function calling.
	Functions []FunctionSpecs
	Tools     []FunctionSpecs
}

type ChatResponse struct {
	Choices []ResponseChoice
}

type ResponseChoice struct {
	Index        int
	Message      *ChatMessage
	FinishReason string
}

type ChatChunk struct {
	Choices []ChunkChoice
}

// ChunkChoice carries the increment for one choice index. Delta is nil
// when the chunk has no payload for that index.
type ChunkChoice struct {
	Index int
	Delta *ChatMessage
}

type ParameterSpecs struct {
	Type        string                     `json:"type" yaml:"type"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*ParameterSpecs `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string                   `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *ParameterSpecs            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any                      `json:"enum,omitempty" yaml:"enum,omitempty"`
}

type FunctionSpecs struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	Parameters  *ParameterSpecs `json:"parameters" yaml:"parameters"`
}
