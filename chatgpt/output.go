package chatgpt

import (
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/samber/lo"
)

type ChoiceKind string

const (
	// ChoiceText is a plain text answer.
	ChoiceText ChoiceKind = "text"
	// ChoiceFunctionCall carries decoded function or tool invocations.
	ChoiceFunctionCall ChoiceKind = "function_call"
	// ChoiceRaw passes the message through untouched. It is used when the
	// model asked for an invocation that the request did not define.
	ChoiceRaw ChoiceKind = "raw"
)

type FunctionInvocation struct {
	// ID is set for tool calls only.
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Choice is one completion alternative.
type Choice struct {
	Kind    ChoiceKind           `json:"kind"`
	Text    string               `json:"text,omitempty"`
	Calls   []FunctionInvocation `json:"calls,omitempty"`
	Message *engines.ChatMessage `json:"message,omitempty"`
}

// Output is the result of a completion: a single choice when one was
// requested, an ordered list of choices otherwise. Callers branch on
// IsMulti.
type Output struct {
	Choices []Choice `json:"choices"`
	Multi   bool     `json:"multi"`
}

func (o *Output) IsMulti() bool {
	return o.Multi
}

// Single returns the only choice of a single-choice output, or the first
// choice of a multi-choice one.
func (o *Output) Single() Choice {
	return o.Choices[0]
}

func (o *Output) Texts() []string {
	return lo.Map(o.Choices, func(choice Choice, _ int) string {
		return choice.Text
	})
}

func textOutput(texts []string, multi bool) *Output {
	choices := lo.Map(texts, func(text string, _ int) Choice {
		return Choice{Kind: ChoiceText, Text: text}
	})
	if !multi && len(choices) > 1 {
		choices = choices[:1]
	}
	return &Output{Choices: choices, Multi: multi}
}
