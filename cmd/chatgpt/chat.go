package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/natexcvi/go-chatgpt/chatgpt"
	"github.com/natexcvi/go-chatgpt/config"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/natexcvi/go-chatgpt/memory"
	"github.com/spf13/cobra"
)

var (
	chatSystemPrompt string
	maxHistory       int
	summariseAfter   int
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation.",
	Long: `Start an interactive conversation.
Type a message and press enter. An empty line is ignored,
"exit" or end of input ends the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		client, closeStore, err := newClient(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		var mem memory.Memory = memory.NewBufferedMemory(maxHistory)
		if summariseAfter > 0 {
			summaryOpts := cfg.Options()
			summaryOpts.UseCache = true
			mem = memory.NewSummarisedMemory(summariseAfter, client, summaryOpts)
		}
		if chatSystemPrompt != "" {
			if err := mem.AddPrompt(&engines.ChatPrompt{
				History: []*engines.ChatMessage{{Role: engines.ConvRoleSystem, Text: chatSystemPrompt}},
			}); err != nil {
				return err
			}
		}
		return chatLoop(cmd.Context(), client, mem, cfg.Options(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func chatLoop(ctx context.Context, client *chatgpt.Client, mem memory.Memory, opts chatgpt.Options, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			return nil
		}
		if err := mem.Add(ctx, &engines.ChatMessage{Role: engines.ConvRoleUser, Text: line}); err != nil {
			return err
		}
		prompt, err := mem.PromptWithContext()
		if err != nil {
			return err
		}
		reply, err := streamReply(ctx, client, prompt, opts, out)
		if err != nil {
			return err
		}
		if err := mem.Add(ctx, &engines.ChatMessage{Role: engines.ConvRoleAssistant, Text: reply}); err != nil {
			return err
		}
	}
}

func streamReply(ctx context.Context, client *chatgpt.Client, prompt *engines.ChatPrompt, opts chatgpt.Options, out io.Writer) (string, error) {
	opts.N = 1
	deltas, err := client.CompleteStream(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	defer deltas.Close()
	for delta, err := range deltas.All() {
		if err != nil {
			return "", err
		}
		fmt.Fprint(out, delta.Text)
	}
	fmt.Fprintln(out)
	return deltas.Texts()[0], nil
}

func init() {
	chatCmd.Flags().StringVar(&chatSystemPrompt, "system", "", "a system message to start the conversation with")
	chatCmd.Flags().IntVar(&maxHistory, "max-history", 0, "how many messages to send back, 0 for all")
	chatCmd.Flags().IntVar(&summariseAfter, "summarise", 0, "keep this many recent messages and summarise the rest")
}
