package main

import (
	"os/signal"
	"strings"
	"syscall"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/spf13/cobra"
)

var serveSchedules []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workflow engine until interrupted",
	Long: `Run the workflow engine until interrupted.

Cron schedules submit a workflow kind on a spec, for example:
  loomd serve --schedule "embeddings=0 * * * *"`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringArrayVar(&serveSchedules, "schedule", nil,
		"workflow kind and cron spec, as kind=spec")
}

func runServe(cmd *cobra.Command, _ []string) error {
	h, err := wire()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h.engine.Run(ctx)
	defer h.engine.Stop()

	for _, schedule := range serveSchedules {
		kind, spec, err := splitSchedule(schedule)
		if err != nil {
			return err
		}
		go func() {
			_ = h.engine.Schedule(ctx, kind, spec, nil)
		}()
	}

	<-ctx.Done()
	return nil
}

func splitSchedule(s string) (kind, spec string, err error) {
	kind, spec, ok := strings.Cut(s, "=")
	if !ok || kind == "" || spec == "" {
		return "", "", errors.New("invalid --schedule, want kind=spec", j.KV("schedule", s))
	}
	return kind, spec, nil
}
