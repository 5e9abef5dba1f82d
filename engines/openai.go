package engines

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/samber/lo"
	openai "github.com/sashabaranov/go-openai"
)

type GPT struct {
	client *openai.Client
}

// NewGPTEngine creates an engine backed by the OpenAI chat completions API.
// An empty baseURL keeps the SDK default.
func NewGPTEngine(apiToken string, baseURL string) *GPT {
	config := openai.DefaultConfig(apiToken)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &GPT{
		client: openai.NewClientWithConfig(config),
	}
}

func (gpt *GPT) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	res, err := gpt.client.CreateChatCompletion(ctx, gpt.buildRequest(req, false))
	if err != nil {
		return nil, wrapRemoteError(err)
	}
	response := &ChatResponse{
		Choices: make([]ResponseChoice, 0, len(res.Choices)),
	}
	for _, choice := range res.Choices {
		msg := fromOpenAIMessage(choice.Message.Role, choice.Message.Content, choice.Message.FunctionCall, choice.Message.ToolCalls)
		msg.Name = choice.Message.Name
		response.Choices = append(response.Choices, ResponseChoice{
			Index:        choice.Index,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		})
	}
	return response, nil
}

func (gpt *GPT) ChatStream(ctx context.Context, req *ChatRequest) (ChunkStream, error) {
	stream, err := gpt.client.CreateChatCompletionStream(ctx, gpt.buildRequest(req, true))
	if err != nil {
		return nil, wrapRemoteError(err)
	}
	return &gptStream{stream: stream}, nil
}

func (gpt *GPT) buildRequest(req *ChatRequest, stream bool) openai.ChatCompletionRequest {
	temperature := req.Temperature
	if temperature == 0 {
		// the SDK omits a zero temperature, which the API reads as 1
		temperature = math.SmallestNonzeroFloat32
	}
	request := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    lo.Map(req.Prompt.History, func(msg *ChatMessage, _ int) openai.ChatCompletionMessage { return toOpenAIMessage(msg) }),
		Temperature: temperature,
		Stream:      stream,
	}
	if req.N > 1 {
		request.N = req.N
	}
	for _, fn := range req.Functions {
		request.Functions = append(request.Functions, toFunctionDefinition(fn))
	}
	for _, fn := range req.Tools {
		def := toFunctionDefinition(fn)
		request.Tools = append(request.Tools, openai.Tool{
			Type:     openai.ToolTypeFunction,
			Function: &def,
		})
	}
	return request
}

type gptStream struct {
	stream *openai.ChatCompletionStream
}

func (s *gptStream) Recv() (*ChatChunk, error) {
	res, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, wrapRemoteError(err)
	}
	chunk := &ChatChunk{
		Choices: make([]ChunkChoice, 0, len(res.Choices)),
	}
	for _, choice := range res.Choices {
		delta := choice.Delta
		var msg *ChatMessage
		if delta.Role != "" || delta.Content != "" || delta.FunctionCall != nil || len(delta.ToolCalls) > 0 {
			msg = fromOpenAIMessage(delta.Role, delta.Content, delta.FunctionCall, delta.ToolCalls)
		}
		chunk.Choices = append(chunk.Choices, ChunkChoice{
			Index: choice.Index,
			Delta: msg,
		})
	}
	return chunk, nil
}

func (s *gptStream) Close() error {
	return s.stream.Close()
}

func toOpenAIMessage(msg *ChatMessage) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       string(msg.Role),
		Content:    msg.Text,
		Name:       msg.Name,
		ToolCallID: msg.ToolCallID,
	}
	if msg.FunctionCall != nil {
		out.FunctionCall = &openai.FunctionCall{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Args,
		}
	}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolType(call.Type),
			Function: openai.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Args,
			},
		})
	}
	return out
}

func fromOpenAIMessage(role, content string, functionCall *openai.FunctionCall, toolCalls []openai.ToolCall) *ChatMessage {
	msg := &ChatMessage{
		Role: ConvRole(role),
		Text: content,
	}
	if functionCall != nil {
		msg.FunctionCall = &FunctionCall{
			Name: functionCall.Name,
			Args: functionCall.Arguments,
		}
	}
	for _, call := range toolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   call.ID,
			Type: ToolType(call.Type),
			Function: FunctionCall{
				Name: call.Function.Name,
				Args: call.Function.Arguments,
			},
		})
	}
	return msg
}

func toFunctionDefinition(fn FunctionSpecs) openai.FunctionDefinition {
	def := openai.FunctionDefinition{
		Name:        fn.Name,
		Description: fn.Description,
	}
	if fn.Parameters != nil {
		def.Parameters = fn.Parameters
	}
	return def
}

func wrapRemoteError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	remoteErr := &RemoteServiceError{Err: err}
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		remoteErr.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		remoteErr.StatusCode = reqErr.HTTPStatusCode
	}
	return remoteErr
}
