package loom

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
	"k8s.io/utils/clock"

	"github.com/loomworks/loom/internal/metrics"
)

const (
	defaultMaxConcurrency  = 3
	defaultMaxAttempts     = 3
	defaultActivityTimeout = 20 * time.Second
	defaultPollFrequency   = 50 * time.Millisecond
)

// Engine hosts workflow definitions and drives their instances. It holds no
// cross-instance shared mutable state beyond the record store; each instance
// is advanced by exactly one goroutine at a time.
type Engine struct {
	store    RecordStore
	streamer EventStreamer
	clock    clock.Clock
	logger   *logger

	definitions map[string]StepFunc
	activities  map[string]ActivityFunc

	retry           RetryPolicy
	maxConcurrency  int
	maxAttempts     int
	activityTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	calledRun atomic.Bool
	once      sync.Once
	inFlight  sync.WaitGroup
}

var _ API = (*Engine)(nil)

type Option func(e *Engine)

// WithClock overrides the clock used for record timestamps and retry
// backoff. Tests inject a fake clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger used for debug and error output.
func WithLogger(l Logger) Option {
	return func(e *Engine) {
		e.logger = &logger{inner: l, debug: true}
	}
}

// WithEventStreamer enables publishing of instance lifecycle transitions.
func WithEventStreamer(s EventStreamer) Option {
	return func(e *Engine) {
		e.streamer = s
	}
}

// WithRetryPolicy overrides the backoff applied between activity attempts.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) {
		e.retry = p
	}
}

// WithMaxConcurrency bounds the fan-out coordinator's worker pool.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithMaxAttempts sets the default attempt budget for calls that do not
// carry their own.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithActivityTimeout sets the default per-call timeout for calls that do
// not carry their own.
func WithActivityTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.activityTimeout = d
		}
	}
}

// New constructs an engine backed by the provided record store. Register
// workflows and activities before calling Run.
func New(store RecordStore, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		clock:           clock.RealClock{},
		logger:          &logger{},
		definitions:     make(map[string]StepFunc),
		activities:      make(map[string]ActivityFunc),
		retry:           DefaultRetryPolicy(),
		maxConcurrency:  defaultMaxConcurrency,
		maxAttempts:     defaultMaxAttempts,
		activityTimeout: defaultActivityTimeout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegisterWorkflow adds a workflow definition under a kind name.
func (e *Engine) RegisterWorkflow(kind string, step StepFunc) {
	e.definitions[kind] = step
}

// RegisterActivity adds a named activity available to all workflows.
func (e *Engine) RegisterActivity(name string, fn ActivityFunc) {
	e.activities[name] = fn
}

// Run starts the engine and resumes any instance that was mid-flight when
// the previous process stopped. Resumption and crash recovery use the same
// replay path as normal stepping. Subsequent calls are safe no-ops.
func (e *Engine) Run(ctx context.Context) {
	e.once.Do(func() {
		ctx, cancel := context.WithCancel(ctx)
		e.ctx = ctx
		e.cancel = cancel

		// Stored last so that a concurrent Submit observing true also
		// observes the context assignments above.
		e.calledRun.Store(true)

		e.resume(ctx)
	})
}

func (e *Engine) resume(ctx context.Context) {
	const batch = 100

	var offset int
	for {
		records, err := e.store.List(ctx, "", offset, batch)
		if err != nil {
			e.logger.Error(ctx, errors.Wrap(err, "resume listing failed"))
			return
		}

		for _, record := range records {
			if record.Status.Terminal() {
				continue
			}

			record := record
			e.launch(&record)
		}

		if len(records) < batch {
			return
		}
		offset += len(records)
	}
}

// Stop cancels in-flight work and waits for all instance goroutines to
// settle.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}

	e.cancel()
	e.inFlight.Wait()
}

// Submit creates a new instance of the workflow kind and starts driving it.
func (e *Engine) Submit(ctx context.Context, kind string, input any) (string, error) {
	if !e.calledRun.Load() {
		return "", errors.Wrap(ErrEngineNotRunning, "ensure Run() is called before submitting", j.KV("workflow_kind", kind))
	}

	if _, ok := e.definitions[kind]; !ok {
		return "", errors.Wrap(ErrWorkflowNotRegistered, "", j.KV("workflow_kind", kind))
	}

	b, err := Marshal(&input)
	if err != nil {
		return "", err
	}

	uid, err := uuid.NewUUID()
	if err != nil {
		return "", err
	}

	record := &Record{
		InstanceID:   uid.String(),
		WorkflowKind: kind,
		Input:        b,
		Status:       StatusRunning,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}

	if err := e.store.Store(ctx, record); err != nil {
		return "", err
	}

	e.logger.Debug(ctx, "workflow instance submitted", MKV{
		"workflow_kind": kind,
		"instance_id":   record.InstanceID,
	})

	e.launch(record)

	return record.InstanceID, nil
}

func (e *Engine) launch(record *Record) {
	e.inFlight.Add(1)
	go func() {
		defer e.inFlight.Done()
		e.drive(e.ctx, record.InstanceID)
	}()
}

// Status returns the caller-visible view of the instance.
func (e *Engine) Status(ctx context.Context, instanceID string) (InstanceStatus, error) {
	record, err := e.store.Lookup(ctx, instanceID)
	if err != nil {
		return InstanceStatus{}, err
	}

	return record.status(), nil
}

type awaitOpts struct {
	pollFrequency time.Duration
}

type AwaitOption func(o *awaitOpts)

func WithPollingFrequency(d time.Duration) AwaitOption {
	return func(o *awaitOpts) {
		o.pollFrequency = d
	}
}

// Await blocks until the instance reaches a terminal status or ctx is
// cancelled.
func (e *Engine) Await(ctx context.Context, instanceID string, opts ...AwaitOption) (InstanceStatus, error) {
	var opt awaitOpts
	for _, option := range opts {
		option(&opt)
	}

	pollFrequency := defaultPollFrequency
	if opt.pollFrequency > 0 {
		pollFrequency = opt.pollFrequency
	}

	for {
		record, err := e.store.Lookup(ctx, instanceID)
		if err != nil {
			return InstanceStatus{}, err
		}

		if record.Status.Terminal() {
			return record.status(), nil
		}

		if err := e.wait(ctx, pollFrequency); err != nil {
			return InstanceStatus{}, err
		}
	}
}

// drive advances a single instance to a terminal status. Every iteration
// replays the full history through the step function and executes the next
// action; failure propagation happens through replay so that the recovery
// path and the live path cannot diverge.
func (e *Engine) drive(ctx context.Context, instanceID string) {
	for ctx.Err() == nil {
		record, err := e.store.Lookup(ctx, instanceID)
		if err != nil {
			e.logger.Error(ctx, errors.Wrap(err, "drive lookup failed", j.KV("instance_id", instanceID)))
			return
		}

		if record.Status.Terminal() {
			return
		}

		step, ok := e.definitions[record.WorkflowKind]
		if !ok {
			e.fail(ctx, record, &Failure{
				Kind:    ErrKindPermanent,
				Message: ErrWorkflowNotRegistered.Error(),
			})
			return
		}

		history, err := e.store.ListEvents(ctx, instanceID)
		if err != nil {
			e.logger.Error(ctx, errors.Wrap(err, "drive history listing failed", j.KV("instance_id", instanceID)))
			return
		}

		e.logger.Debug(ctx, "stepping workflow instance", MKV{
			"workflow_kind": record.WorkflowKind,
			"instance_id":   instanceID,
			"replaying":     strconv.FormatBool(len(history) > 0),
			"history_len":   strconv.Itoa(len(history)),
		})

		metrics.EngineSteps.WithLabelValues(record.WorkflowKind).Inc()

		action, err := step(newFlow(instanceID, record.Input, history))
		if err != nil {
			// A definition error is permanent: retrying a pure function of
			// the same input and history cannot change the outcome.
			e.fail(ctx, record, &Failure{Kind: ErrKindPermanent, Message: err.Error()})
			return
		}

		switch action.kind {
		case actionComplete:
			e.complete(ctx, record, action.output)
			return

		case actionFail:
			e.fail(ctx, record, action.failure)
			return

		case actionAwait:
			if err := e.executeAwait(ctx, record, action); err != nil {
				e.logger.Error(ctx, errors.Wrap(err, "await execution failed", j.KV("instance_id", instanceID)))
				return
			}

		default:
			e.fail(ctx, record, &Failure{Kind: ErrKindPermanent, Message: "unknown action"})
			return
		}
	}
}

// executeAwait performs the suspension point: record the scheduling decision,
// run the call or call set, and fold the outcome back into history. The next
// drive iteration replays the extended history.
func (e *Engine) executeAwait(ctx context.Context, record *Record, action Action) error {
	if action.fanOut {
		if !action.scheduled {
			payload, err := Marshal(&awaitedPayload{Calls: action.calls})
			if err != nil {
				return err
			}

			if _, err := e.store.AppendEvent(ctx, record.InstanceID, EventTasksAwaited, payload); err != nil {
				return err
			}
		}

		results, err := e.runAll(ctx, record.WorkflowKind, action.calls)
		if ctx.Err() != nil {
			// Shutdown mid-flight. Leave the awaited event dangling so
			// that resume re-runs the call set instead of recording a
			// spurious failure.
			return nil
		}
		if err != nil {
			// NoReturnErr: The failure is joined into the recorded result
			// set; replay resolves it to a workflow failure.
			e.logger.Debug(ctx, "task set failed", MKV{
				"workflow_kind": record.WorkflowKind,
				"instance_id":   record.InstanceID,
			})
		}

		payload, err := Marshal(&tasksCompletedPayload{Results: results})
		if err != nil {
			return err
		}

		_, err = e.store.AppendEvent(ctx, record.InstanceID, EventTasksCompleted, payload)
		return err
	}

	call := action.calls[0]
	if !action.scheduled {
		payload, err := Marshal(&scheduledPayload{Call: call})
		if err != nil {
			return err
		}

		if _, err := e.store.AppendEvent(ctx, record.InstanceID, EventActivityScheduled, payload); err != nil {
			return err
		}
	}

	res := e.execute(ctx, record.WorkflowKind, call)
	if ctx.Err() != nil {
		// Shutdown mid-flight; resume re-runs the dangling scheduled call.
		return nil
	}

	kind := EventActivityCompleted
	if !res.OK() {
		kind = EventActivityFailed
	}

	payload, err := Marshal(&completedPayload{Result: res})
	if err != nil {
		return err
	}

	_, err = e.store.AppendEvent(ctx, record.InstanceID, kind, payload)
	return err
}

func (e *Engine) complete(ctx context.Context, record *Record, output []byte) {
	record.Status = StatusCompleted
	record.Output = output
	record.UpdatedAt = e.clock.Now()

	if err := e.store.Store(ctx, record); err != nil {
		e.logger.Error(ctx, errors.Wrap(err, "storing completed instance failed", j.KV("instance_id", record.InstanceID)))
		return
	}

	metrics.InstancesTerminal.WithLabelValues(record.WorkflowKind, StatusCompleted.String()).Inc()
	e.publish(ctx, record)
}

func (e *Engine) fail(ctx context.Context, record *Record, failure *Failure) {
	record.Status = StatusFailed
	record.Failure = failure
	record.UpdatedAt = e.clock.Now()

	if err := e.store.Store(ctx, record); err != nil {
		e.logger.Error(ctx, errors.Wrap(err, "storing failed instance failed", j.KV("instance_id", record.InstanceID)))
		return
	}

	metrics.InstancesTerminal.WithLabelValues(record.WorkflowKind, StatusFailed.String()).Inc()
	e.publish(ctx, record)
}

// publish sends the terminal transition to the lifecycle streamer, if one is
// configured. Publishing is best effort; the record store remains the source
// of truth.
func (e *Engine) publish(ctx context.Context, record *Record) {
	if e.streamer == nil {
		return
	}

	topic := Topic(record.WorkflowKind)
	sender, err := e.streamer.NewSender(ctx, topic)
	if err != nil {
		e.logger.Error(ctx, errors.Wrap(err, "lifecycle sender failed", j.KV("topic", topic)))
		return
	}
	defer sender.Close()

	err = sender.Send(ctx, record.InstanceID, record.Status, map[Header]string{
		HeaderWorkflowKind: record.WorkflowKind,
		HeaderInstanceID:   record.InstanceID,
		HeaderTopic:        topic,
	})
	if err != nil {
		e.logger.Error(ctx, errors.Wrap(err, "lifecycle publish failed", j.KV("topic", topic)))
	}
}
