package loom

import (
	"context"
	"strconv"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"

	"github.com/loomworks/loom/internal/metrics"
)

// runAll dispatches all calls concurrently over a worker pool bounded by the
// engine's max concurrency and joins every one of them before returning. The
// result slice is positional: results[i] always corresponds to calls[i],
// independent of completion order, because downstream aggregation depends on
// positional correspondence.
//
// If any call fails after exhausting its retry budget the join still waits
// for all other in-flight calls to finish, to avoid abandoning partial side
// effects, and the returned error is the first failure in input order. The
// full result set is returned alongside for diagnostics.
func (e *Engine) runAll(ctx context.Context, kind string, calls []ActivityCall) ([]ActivityResult, error) {
	results := make([]ActivityResult, len(calls))
	sem := make(chan struct{}, e.maxConcurrency)
	done := make(chan int, len(calls))

	for i, call := range calls {
		go func(i int, call ActivityCall) {
			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = e.execute(ctx, kind, call)
			done <- i
		}(i, call)
	}

	for range calls {
		<-done
	}

	metrics.FanOutSize.WithLabelValues(kind).Observe(float64(len(calls)))

	for i, res := range results {
		if res.OK() {
			continue
		}

		return results, errors.Wrap(ErrTaskSetFailed, "", j.MKV{
			"workflow_kind": kind,
			"activity":      calls[i].Name,
			"error_kind":    string(res.Err.Kind),
		})
	}

	return results, nil
}

// execute runs a single call to completion: attempts with exponential
// backoff while the error kind is retryable and budget remains. The returned
// result is final and is recorded into history verbatim.
func (e *Engine) execute(ctx context.Context, kind string, call ActivityCall) ActivityResult {
	fn, ok := e.activities[call.Name]
	if !ok {
		return ActivityResult{
			Name: call.Name,
			Err:  &ActivityError{Kind: ErrKindPermanent, Message: ErrActivityNotRegistered.Error()},
		}
	}

	if call.Timeout == 0 {
		call.Timeout = e.activityTimeout
	}

	maxAttempts := call.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = e.maxAttempts
	}

	var res ActivityResult
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.wait(ctx, e.retry.backoff(attempt)); err != nil {
				return ActivityResult{
					Name:     call.Name,
					Attempts: attempt - 1,
					Err:      &ActivityError{Kind: ErrKindTransient, Message: err.Error()},
				}
			}
		}

		t0 := e.clock.Now()
		res = invoke(ctx, fn, call, attempt)
		metrics.ActivityLatency.WithLabelValues(kind, call.Name).Observe(e.clock.Since(t0).Seconds())

		if res.OK() {
			return res
		}

		metrics.ActivityErrors.WithLabelValues(kind, call.Name, string(res.Err.Kind)).Inc()

		if !res.Err.Kind.Retryable() {
			return res
		}

		e.logger.Debug(ctx, "activity attempt failed", MKV{
			"workflow_kind": kind,
			"activity":      call.Name,
			"attempt":       strconv.Itoa(attempt),
			"error_kind":    string(res.Err.Kind),
		})
	}

	return res
}

// wait blocks for d using the engine clock, honouring ctx cancellation.
func (e *Engine) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := e.clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}
