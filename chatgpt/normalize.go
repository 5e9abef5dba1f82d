package chatgpt

import (
	"encoding/json"
	"fmt"

	"github.com/natexcvi/go-chatgpt/engines"
	log "github.com/sirupsen/logrus"
)

// normalize turns a raw response into an Output, logging a transcript for
// every choice before the result is cached.
func (c *Client) normalize(prompt *engines.ChatPrompt, key string, res *engines.ChatResponse, opts Options) (*Output, error) {
	if res == nil || len(res.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	choices := make([]Choice, 0, len(res.Choices))
	for i, raw := range res.Choices {
		if raw.Message == nil {
			return nil, fmt.Errorf("%w: choice %d has no message", ErrMalformedResponse, i)
		}
		choice, err := toChoice(raw.Message, opts.functionCalling())
		if err != nil {
			log.Errorf("remote service returned invalid JSON for function call arguments: %s", err)
			return nil, err
		}
		if err := c.logger.Log(prompt, raw.Message); err != nil {
			return nil, err
		}
		choices = append(choices, choice)
	}
	output := &Output{Choices: choices, Multi: opts.multi()}
	if !output.Multi {
		output.Choices = choices[:1]
	}
	if err := c.storeEntry(key, &cacheEntry{Output: output}); err != nil {
		return nil, err
	}
	return output, nil
}

func toChoice(msg *engines.ChatMessage, functionCalling bool) (Choice, error) {
	if !msg.HasCalls() {
		return Choice{Kind: ChoiceText, Text: msg.Text}, nil
	}
	if !functionCalling {
		return Choice{Kind: ChoiceRaw, Text: msg.Text, Message: msg}, nil
	}
	var calls []FunctionInvocation
	if msg.FunctionCall != nil {
		call, err := parseInvocation("", msg.FunctionCall)
		if err != nil {
			return Choice{}, err
		}
		calls = append(calls, call)
	}
	for _, toolCall := range msg.ToolCalls {
		call, err := parseInvocation(toolCall.ID, &toolCall.Function)
		if err != nil {
			return Choice{}, err
		}
		calls = append(calls, call)
	}
	return Choice{Kind: ChoiceFunctionCall, Text: msg.Text, Calls: calls}, nil
}

func parseInvocation(id string, call *engines.FunctionCall) (FunctionInvocation, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(call.Args), &args); err != nil {
		return FunctionInvocation{}, fmt.Errorf("%w for %s: %w", ErrMalformedFunctionArguments, call.Name, err)
	}
	if args == nil {
		return FunctionInvocation{}, fmt.Errorf("%w for %s: arguments are not an object", ErrMalformedFunctionArguments, call.Name)
	}
	return FunctionInvocation{ID: id, Name: call.Name, Args: args}, nil
}
