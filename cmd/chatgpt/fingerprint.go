package main

import (
	"fmt"

	"github.com/natexcvi/go-chatgpt/cache"
	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/spf13/cobra"
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint FILE",
	Short: "Print the cache key of a conversation file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := engines.LoadPrompt(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cache.Fingerprint(prompt))
		return nil
	},
}
