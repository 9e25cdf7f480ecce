package loom

import (
	"context"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"github.com/robfig/cron/v3"
)

// Schedule submits a new instance of the workflow kind at the given cron
// spec's intervals. It blocks until ctx is cancelled; submission errors are
// logged and retried on the next tick rather than aborting the schedule.
func (e *Engine) Schedule(ctx context.Context, kind string, spec string, input any) error {
	if !e.calledRun.Load() {
		return errors.Wrap(ErrEngineNotRunning, "ensure Run() is called before scheduling", j.KV("workflow_kind", kind))
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return errors.Wrap(err, "invalid cron spec", j.MKV{
			"workflow_kind": kind,
			"spec":          spec,
		})
	}

	lastRun := e.clock.Now()
	for {
		nextRun := schedule.Next(lastRun)

		if err := e.wait(ctx, nextRun.Sub(e.clock.Now())); err != nil {
			return err
		}

		_, err := e.Submit(ctx, kind, input)
		if err != nil {
			// NoReturnErr: Log and try again on the next tick.
			e.logger.Error(ctx, errors.Wrap(err, "scheduled submit failed", j.MKV{
				"workflow_kind": kind,
				"spec":          spec,
			}))
		}

		lastRun = nextRun
	}
}
