package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askProject string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question grounded in stored snippets",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askProject, "project", "", "restrict retrieval to one project id")
}

func runAsk(cmd *cobra.Command, args []string) error {
	h, err := wire()
	if err != nil {
		return err
	}

	answer, err := h.rag.Ask(cmd.Context(), strings.Join(args, " "), askProject)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(answer, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
