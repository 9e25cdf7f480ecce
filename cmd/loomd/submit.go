package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom"
)

var submitCmd = &cobra.Command{
	Use:   "submit <workflow> <json-input>",
	Short: "Submit a workflow and wait for its result",
	Long: `Submit a workflow and wait for its result.

Examples:
  loomd submit embeddings '{"projectId":"p","snippets":[{"name":"a","code":"..."}]}'
  loomd submit code-review '{"snippetId":"a"}'
  loomd submit save-snippet '{"name":"a","projectId":"p","code":"..."}'`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	h, err := wire()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	h.engine.Run(ctx)
	defer h.engine.Stop()

	var input json.RawMessage
	if err := json.Unmarshal([]byte(args[1]), &input); err != nil {
		return err
	}

	instanceID, err := h.engine.Submit(ctx, args[0], input)
	if err != nil {
		return err
	}

	status, err := h.engine.Await(ctx, instanceID)
	if err != nil {
		return err
	}

	view := struct {
		InstanceID string          `json:"instanceId"`
		Status     string          `json:"status"`
		Output     json.RawMessage `json:"output,omitempty"`
		Failure    *loom.Failure   `json:"failure,omitempty"`
	}{
		InstanceID: status.InstanceID,
		Status:     status.Status.String(),
		Output:     status.Output,
		Failure:    status.Failure,
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
