package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/natexcvi/go-chatgpt/chatgpt"
	"github.com/natexcvi/go-chatgpt/config"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errEmptyConversation = errors.New("nothing to complete: pass a prompt or --file")

var (
	systemPrompt string
	promptFile   string
	numChoices   int
	stream       bool
	functionFile string
	asTools      bool
)

var completeCmd = &cobra.Command{
	Use:   "complete [PROMPT]",
	Short: "Complete a single conversation.",
	Long: `Complete a single conversation.
Example usage:
	chatgpt complete --system "You are terse." "Name three primes"
	chatgpt complete --file conversation.yaml -n 3
	chatgpt complete --stream "Tell me a story"
	chatgpt complete --functions functions.yaml "What's the weather in Paris?"
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := buildPrompt(args, systemPrompt, promptFile)
		if err != nil {
			return err
		}
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		client, closeStore, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		opts := cfg.Options()
		opts.N = numChoices
		if err := withFunctions(&opts, functionFile, asTools); err != nil {
			return err
		}
		if stream {
			return streamCompletion(cmd.Context(), client, prompt, opts, cmd.OutOrStdout())
		}
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " Just a moment..."
		s.Start()
		output, err := client.Complete(cmd.Context(), prompt, opts)
		s.Stop()
		if err != nil {
			return err
		}
		return printOutput(cmd.OutOrStdout(), output)
	},
}

// buildPrompt assembles the conversation from a prompt file, a system
// message and a trailing user message, in that order.
func buildPrompt(args []string, system string, file string) (*engines.ChatPrompt, error) {
	prompt := &engines.ChatPrompt{}
	if file != "" {
		loaded, err := engines.LoadPrompt(file)
		if err != nil {
			return nil, err
		}
		prompt = loaded
	}
	if system != "" {
		prompt = (&engines.ChatPrompt{
			History: []*engines.ChatMessage{{Role: engines.ConvRoleSystem, Text: system}},
		}).With(prompt.History...)
	}
	if len(args) > 0 {
		prompt = prompt.With(&engines.ChatMessage{Role: engines.ConvRoleUser, Text: args[0]})
	}
	if len(prompt.History) == 0 {
		return nil, errEmptyConversation
	}
	return prompt, nil
}

// withFunctions offers the functions defined in file to the model, either
// as legacy functions or as tools.
func withFunctions(opts *chatgpt.Options, file string, tools bool) error {
	if file == "" {
		return nil
	}
	specs, err := engines.LoadFunctions(file)
	if err != nil {
		return err
	}
	log.Debugf("offering %d functions from %s", len(specs), file)
	if tools {
		opts.Tools = specs
	} else {
		opts.Functions = specs
	}
	return nil
}

func streamCompletion(ctx context.Context, client *chatgpt.Client, prompt *engines.ChatPrompt, opts chatgpt.Options, w io.Writer) error {
	deltas, err := client.CompleteStream(ctx, prompt, opts)
	if err != nil {
		return err
	}
	defer deltas.Close()
	return printDeltas(w, deltas)
}

// printDeltas writes deltas as they arrive. With several choices every run
// of deltas for one choice starts on its own line, labelled with the
// choice index.
func printDeltas(w io.Writer, deltas *chatgpt.DeltaStream) error {
	last := -1
	for deltas.Next() {
		delta := deltas.Current()
		if deltas.Multi() && delta.Index != last {
			if last >= 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%d] ", delta.Index)
			last = delta.Index
		}
		fmt.Fprint(w, delta.Text)
	}
	if err := deltas.Err(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func printOutput(w io.Writer, output *chatgpt.Output) error {
	for i, choice := range output.Choices {
		if output.IsMulti() {
			fmt.Fprintf(w, "[%d] ", i)
		}
		text, err := formatChoice(choice)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, text)
	}
	return nil
}

func formatChoice(choice chatgpt.Choice) (string, error) {
	switch choice.Kind {
	case chatgpt.ChoiceFunctionCall:
		lines := make([]string, 0, len(choice.Calls))
		for _, call := range choice.Calls {
			args, err := json.Marshal(call.Args)
			if err != nil {
				return "", fmt.Errorf("failed to format arguments of %s: %w", call.Name, err)
			}
			lines = append(lines, fmt.Sprintf("%s(%s)", call.Name, args))
		}
		return strings.Join(lines, "\n"), nil
	case chatgpt.ChoiceRaw:
		calls := lo.Map(choice.Message.ToolCalls, func(call engines.ToolCall, _ int) string {
			return fmt.Sprintf("%s %s(%s)", call.Type, call.Function.Name, call.Function.Args)
		})
		if choice.Message.FunctionCall != nil {
			calls = append([]string{fmt.Sprintf("function %s(%s)", choice.Message.FunctionCall.Name, choice.Message.FunctionCall.Args)}, calls...)
		}
		log.Debugf("model requested %d undeclared calls", len(calls))
		return strings.TrimSpace(choice.Text + "\n" + strings.Join(calls, "\n")), nil
	}
	return choice.Text, nil
}

func init() {
	completeCmd.Flags().StringVar(&systemPrompt, "system", "", "a system message to start the conversation with")
	completeCmd.Flags().StringVarP(&promptFile, "file", "f", "", "a YAML or JSON conversation file")
	completeCmd.Flags().IntVarP(&numChoices, "choices", "n", 1, "how many choices to request")
	completeCmd.Flags().BoolVar(&stream, "stream", false, "print the answer as it is generated")
	completeCmd.Flags().StringVar(&functionFile, "functions", "", "a YAML or JSON file of functions the model may call")
	completeCmd.Flags().BoolVar(&asTools, "tools", false, "offer the functions as tools")
}
