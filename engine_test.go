package loom_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom"
	"github.com/loomworks/loom/adapters/memstore"
	"github.com/loomworks/loom/adapters/memstream"
)

// noWait disables backoff so retry tests run instantly.
var noWait = loom.WithRetryPolicy(loom.RetryPolicy{})

func awaitStatus(t *testing.T, e *loom.Engine, instanceID string) loom.InstanceStatus {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status, err := e.Await(ctx, instanceID, loom.WithPollingFrequency(time.Millisecond))
	jtest.RequireNil(t, err)
	return status
}

func eventKinds(t *testing.T, store *memstore.Store, instanceID string) []loom.EventKind {
	t.Helper()

	events, err := store.ListEvents(context.Background(), instanceID)
	jtest.RequireNil(t, err)

	kinds := make([]loom.EventKind, 0, len(events))
	for _, evt := range events {
		kinds = append(kinds, evt.Kind)
	}
	return kinds
}

func TestSubmitBeforeRun(t *testing.T) {
	e := loom.New(memstore.New())
	e.RegisterWorkflow("noop", func(f *loom.Flow) (loom.Action, error) {
		return loom.Complete("done")
	})

	_, err := e.Submit(context.Background(), "noop", nil)
	jtest.Require(t, loom.ErrEngineNotRunning, err)
}

func TestSubmitUnknownWorkflow(t *testing.T) {
	e := loom.New(memstore.New())
	e.Run(context.Background())
	t.Cleanup(e.Stop)

	_, err := e.Submit(context.Background(), "missing", nil)
	jtest.Require(t, loom.ErrWorkflowNotRegistered, err)
}

func TestSubmitConcurrentWithRun(t *testing.T) {
	e := loom.New(memstore.New())
	e.RegisterWorkflow("noop", func(f *loom.Flow) (loom.Action, error) {
		return loom.Complete("done")
	})

	started := make(chan struct{})
	go func() {
		close(started)
		e.Run(context.Background())
	}()
	<-started
	t.Cleanup(e.Stop)

	// Race Submit against Run. Either outcome is valid; the submission
	// must never observe a running engine with an unset context.
	var id string
	require.Eventually(t, func() bool {
		submitted, err := e.Submit(context.Background(), "noop", nil)
		if err != nil {
			return false
		}
		id = submitted
		return true
	}, 5*time.Second, time.Millisecond)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)
}

func TestStatusNotFound(t *testing.T) {
	e := loom.New(memstore.New())

	_, err := e.Status(context.Background(), "nope")
	jtest.Require(t, loom.ErrInstanceNotFound, err)
}

func TestSingleActivity(t *testing.T) {
	store := memstore.New()
	e := loom.New(store)

	e.RegisterActivity("double", func(_ context.Context, input []byte) ([]byte, error) {
		var n int
		if err := loom.Unmarshal(input, &n); err != nil {
			return nil, err
		}
		n *= 2
		return loom.Marshal(&n)
	})
	e.RegisterWorkflow("doubler", func(f *loom.Flow) (loom.Action, error) {
		var n int
		if err := f.Input(&n); err != nil {
			return loom.Action{}, err
		}

		input, err := loom.Marshal(&n)
		if err != nil {
			return loom.Action{}, err
		}

		res, ok := f.Call(loom.ActivityCall{Name: "double", Input: input})
		if !ok {
			return f.Suspend()
		}

		var doubled int
		if err := loom.Unmarshal(res.Output, &doubled); err != nil {
			return loom.Action{}, err
		}

		return loom.Complete(doubled)
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "doubler", 21)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)
	require.Nil(t, status.Failure)

	var out int
	jtest.RequireNil(t, loom.Unmarshal(status.Output, &out))
	require.Equal(t, 42, out)

	require.Equal(t, []loom.EventKind{
		loom.EventActivityScheduled,
		loom.EventActivityCompleted,
	}, eventKinds(t, store, id))
}

func TestActivityPermanentFailure(t *testing.T) {
	e := loom.New(memstore.New(), noWait)

	e.RegisterActivity("reject", func(context.Context, []byte) ([]byte, error) {
		return nil, loom.Permanent(errors.New("bad credentials"))
	})
	e.RegisterWorkflow("rejecting", func(f *loom.Flow) (loom.Action, error) {
		if _, ok := f.Call(loom.ActivityCall{Name: "reject"}); !ok {
			return f.Suspend()
		}
		return loom.Complete("unreachable")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "rejecting", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusFailed, status.Status)
	require.NotNil(t, status.Failure)
	require.Equal(t, "reject", status.Failure.Activity)
	require.Equal(t, loom.ErrKindPermanent, status.Failure.Kind)
	require.Equal(t, 1, status.Failure.Attempts)
	require.Equal(t, "bad credentials", status.Failure.Message)
}

func TestRetryUntilSuccess(t *testing.T) {
	var attempts atomic.Int32

	e := loom.New(memstore.New(), noWait)
	e.RegisterActivity("flaky", func(context.Context, []byte) ([]byte, error) {
		if attempts.Add(1) < 3 {
			return nil, loom.Transient(errors.New("rate limited"))
		}
		return []byte(`"ok"`), nil
	})
	e.RegisterWorkflow("retrying", func(f *loom.Flow) (loom.Action, error) {
		res, ok := f.Call(loom.ActivityCall{Name: "flaky"})
		if !ok {
			return f.Suspend()
		}
		return loom.Complete(res.Attempts)
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "retrying", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)
	require.Equal(t, int32(3), attempts.Load())

	var recorded int
	jtest.RequireNil(t, loom.Unmarshal(status.Output, &recorded))
	require.Equal(t, 3, recorded)
}

func TestRetryBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32

	e := loom.New(memstore.New(), noWait, loom.WithMaxAttempts(4))
	e.RegisterActivity("down", func(context.Context, []byte) ([]byte, error) {
		attempts.Add(1)
		return nil, loom.Transient(errors.New("unavailable"))
	})
	e.RegisterWorkflow("doomed", func(f *loom.Flow) (loom.Action, error) {
		if _, ok := f.Call(loom.ActivityCall{Name: "down"}); !ok {
			return f.Suspend()
		}
		return loom.Complete("unreachable")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "doomed", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusFailed, status.Status)
	require.Equal(t, int32(4), attempts.Load())
	require.Equal(t, loom.ErrKindTransient, status.Failure.Kind)
	require.Equal(t, 4, status.Failure.Attempts)
}

func TestFanOutOrdering(t *testing.T) {
	const n = 8

	e := loom.New(memstore.New(), loom.WithMaxConcurrency(4))
	e.RegisterActivity("echo", func(_ context.Context, input []byte) ([]byte, error) {
		var i int
		if err := loom.Unmarshal(input, &i); err != nil {
			return nil, err
		}
		// Later calls finish first to shuffle completion order.
		time.Sleep(time.Duration(n-i) * time.Millisecond)
		return input, nil
	})
	e.RegisterWorkflow("spread", func(f *loom.Flow) (loom.Action, error) {
		calls := make([]loom.ActivityCall, n)
		for i := 0; i < n; i++ {
			input, err := loom.Marshal(&i)
			if err != nil {
				return loom.Action{}, err
			}
			calls[i] = loom.ActivityCall{Name: "echo", Input: input}
		}

		results, ok := f.CallAll(calls)
		if !ok {
			return f.Suspend()
		}

		order := make([]int, n)
		for i, res := range results {
			if err := loom.Unmarshal(res.Output, &order[i]); err != nil {
				return loom.Action{}, err
			}
		}
		return loom.Complete(order)
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "spread", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)

	var order []int
	jtest.RequireNil(t, loom.Unmarshal(status.Output, &order))
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
}

func TestFanOutJoinFailure(t *testing.T) {
	var executed atomic.Int32
	store := memstore.New()

	e := loom.New(store, noWait)
	e.RegisterActivity("ok", func(context.Context, []byte) ([]byte, error) {
		executed.Add(1)
		return []byte(`"ok"`), nil
	})
	e.RegisterActivity("boom-early", func(context.Context, []byte) ([]byte, error) {
		executed.Add(1)
		return nil, loom.Permanent(errors.New("early"))
	})
	e.RegisterActivity("boom-late", func(context.Context, []byte) ([]byte, error) {
		executed.Add(1)
		return nil, loom.Permanent(errors.New("late"))
	})
	e.RegisterWorkflow("joining", func(f *loom.Flow) (loom.Action, error) {
		_, ok := f.CallAll([]loom.ActivityCall{
			{Name: "ok"},
			{Name: "boom-early"},
			{Name: "boom-late"},
		})
		if !ok {
			return f.Suspend()
		}
		return loom.Complete("unreachable")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "joining", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusFailed, status.Status)

	// First failure in input order, not completion order.
	require.Equal(t, "boom-early", status.Failure.Activity)

	// The join waited for every call despite the failure.
	require.Equal(t, int32(3), executed.Load())

	require.Equal(t, []loom.EventKind{
		loom.EventTasksAwaited,
		loom.EventTasksCompleted,
	}, eventKinds(t, store, id))
}

func TestSequentialThenParallel(t *testing.T) {
	store := memstore.New()

	e := loom.New(store)
	e.RegisterActivity("tag", func(_ context.Context, input []byte) ([]byte, error) {
		var s string
		if err := loom.Unmarshal(input, &s); err != nil {
			return nil, err
		}
		s += "!"
		return loom.Marshal(&s)
	})
	e.RegisterWorkflow("phased", func(f *loom.Flow) (loom.Action, error) {
		input, err := loom.Marshal(new(string))
		if err != nil {
			return loom.Action{}, err
		}

		first, ok := f.Call(loom.ActivityCall{Name: "tag", Input: input})
		if !ok {
			return f.Suspend()
		}

		results, ok := f.CallAll([]loom.ActivityCall{
			{Name: "tag", Input: first.Output},
			{Name: "tag", Input: first.Output},
		})
		if !ok {
			return f.Suspend()
		}

		var out []string
		for _, res := range results {
			var s string
			if err := loom.Unmarshal(res.Output, &s); err != nil {
				return loom.Action{}, err
			}
			out = append(out, s)
		}
		return loom.Complete(out)
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "phased", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)

	var out []string
	jtest.RequireNil(t, loom.Unmarshal(status.Output, &out))
	require.Equal(t, []string{"!!", "!!"}, out)

	require.Equal(t, []loom.EventKind{
		loom.EventActivityScheduled,
		loom.EventActivityCompleted,
		loom.EventTasksAwaited,
		loom.EventTasksCompleted,
	}, eventKinds(t, store, id))
}

func TestReplayDoesNotReexecute(t *testing.T) {
	var steps, execs atomic.Int32

	e := loom.New(memstore.New())
	e.RegisterActivity("once", func(_ context.Context, input []byte) ([]byte, error) {
		execs.Add(1)
		return input, nil
	})
	e.RegisterWorkflow("counted", func(f *loom.Flow) (loom.Action, error) {
		steps.Add(1)

		for i := 0; i < 2; i++ {
			input := []byte(strconv.Itoa(i))
			if _, ok := f.Call(loom.ActivityCall{Name: "once", Input: input}); !ok {
				return f.Suspend()
			}
		}
		return loom.Complete("done")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "counted", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusCompleted, status.Status)

	// Three steps drove the instance (schedule, schedule, complete) but
	// each activity ran exactly once; replays consumed recorded results.
	require.Equal(t, int32(3), steps.Load())
	require.Equal(t, int32(2), execs.Load())
}

func TestResumeAfterRestart(t *testing.T) {
	store := memstore.New()
	release := make(chan struct{})

	newEngine := func() *loom.Engine {
		e := loom.New(store)
		e.RegisterActivity("held", func(ctx context.Context, input []byte) ([]byte, error) {
			select {
			case <-release:
				return input, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		})
		e.RegisterWorkflow("holding", func(f *loom.Flow) (loom.Action, error) {
			res, ok := f.Call(loom.ActivityCall{Name: "held", Input: []byte(`"v"`)})
			if !ok {
				return f.Suspend()
			}
			return loom.Complete(string(res.Output))
		})
		return e
	}

	first := newEngine()
	first.Run(context.Background())

	id, err := first.Submit(context.Background(), "holding", nil)
	jtest.RequireNil(t, err)

	// Wait for the call to be recorded as scheduled, then stop the engine
	// mid-activity.
	require.Eventually(t, func() bool {
		events, err := store.ListEvents(context.Background(), id)
		return err == nil && len(events) == 1
	}, 5*time.Second, time.Millisecond)
	first.Stop()

	status, err := first.Status(context.Background(), id)
	jtest.RequireNil(t, err)
	require.Equal(t, loom.StatusRunning, status.Status)

	// A fresh engine over the same store resumes from the dangling
	// scheduled event without re-appending it.
	close(release)
	second := newEngine()
	second.Run(context.Background())
	t.Cleanup(second.Stop)

	final := awaitStatus(t, second, id)
	require.Equal(t, loom.StatusCompleted, final.Status)
	require.Equal(t, []loom.EventKind{
		loom.EventActivityScheduled,
		loom.EventActivityCompleted,
	}, eventKinds(t, store, id))
}

func TestLifecyclePublish(t *testing.T) {
	streamer := memstream.New()

	e := loom.New(memstore.New(), loom.WithEventStreamer(streamer))
	e.RegisterWorkflow("quick", func(f *loom.Flow) (loom.Action, error) {
		return loom.Complete("done")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "quick", nil)
	jtest.RequireNil(t, err)
	awaitStatus(t, e, id)

	// Publishing happens after the terminal record is stored, so poll
	// briefly rather than asserting immediately.
	require.Eventually(t, func() bool {
		return len(streamer.Events()) == 1
	}, 5*time.Second, time.Millisecond)

	events := streamer.Events()
	require.Equal(t, "quick-lifecycle", events[0].Topic)
	require.Equal(t, id, events[0].InstanceID)
	require.Equal(t, loom.StatusCompleted, events[0].Status)
	require.Equal(t, "quick", events[0].Headers[loom.HeaderWorkflowKind])
}

func TestUnregisteredActivityFailsWorkflow(t *testing.T) {
	e := loom.New(memstore.New(), noWait)
	e.RegisterWorkflow("calling-ghost", func(f *loom.Flow) (loom.Action, error) {
		if _, ok := f.Call(loom.ActivityCall{Name: "ghost"}); !ok {
			return f.Suspend()
		}
		return loom.Complete("unreachable")
	})

	e.Run(context.Background())
	t.Cleanup(e.Stop)

	id, err := e.Submit(context.Background(), "calling-ghost", nil)
	jtest.RequireNil(t, err)

	status := awaitStatus(t, e, id)
	require.Equal(t, loom.StatusFailed, status.Status)
	require.Equal(t, "ghost", status.Failure.Activity)
	require.Equal(t, loom.ErrKindPermanent, status.Failure.Kind)
}
