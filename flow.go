package loom

import (
	"strconv"

	"github.com/luno/jettison/errors"
	"github.com/luno/jettison/j"
)

// StepFunc is a workflow definition: a pure function of the instance input
// and its recorded history. It must not consult wall-clock time, randomness,
// or perform I/O; every side effect goes through Flow.Call or Flow.CallAll.
// Given identical histories, two invocations must produce identical actions.
type StepFunc func(f *Flow) (Action, error)

type actionKind int

const (
	actionAwait    actionKind = 1
	actionComplete actionKind = 2
	actionFail     actionKind = 3
)

// Action is the next scheduling decision produced by a step function:
// schedule one activity, schedule a fan-out set, or finish the instance.
type Action struct {
	kind   actionKind
	fanOut bool
	calls  []ActivityCall
	// scheduled is set when replay found the award of the pending calls
	// already recorded (a crash between scheduling and completion); the host
	// must not append the scheduling event again.
	scheduled bool
	output    []byte
	failure   *Failure
}

// Complete produces the terminal action carrying the instance's output.
func Complete(v any) (Action, error) {
	b, err := Marshal(&v)
	if err != nil {
		return Action{}, err
	}

	return Action{kind: actionComplete, output: b}, nil
}

// Flow is the replay cursor handed to a step function. Call and CallAll
// return recorded results while history remains, and emit the next pending
// action once history is exhausted. The step function must return f.Suspend()
// as soon as either reports false.
type Flow struct {
	instanceID string
	input      []byte
	history    []Event
	pos        int

	pending *Action
	err     error
}

func newFlow(instanceID string, input []byte, history []Event) *Flow {
	return &Flow{
		instanceID: instanceID,
		input:      input,
		history:    history,
	}
}

// InstanceID returns the workflow instance id, usable as a correlation
// identifier. It is part of recorded state and therefore safe to use inside
// a step function.
func (f *Flow) InstanceID() string {
	return f.instanceID
}

// Input unmarshals the workflow input into v.
func (f *Flow) Input(v any) error {
	return Unmarshal(f.input, &v)
}

// Suspend returns the pending action after Call or CallAll reported false.
func (f *Flow) Suspend() (Action, error) {
	if f.err != nil {
		return Action{}, f.err
	}

	if f.pending == nil {
		return Action{}, errors.Wrap(ErrInvalidEvent, "suspend called with no pending action", j.KV("instance_id", f.instanceID))
	}

	return *f.pending, nil
}

// Call awaits a single activity. During replay it returns the recorded
// result; once history is exhausted it records the call as the pending action
// and reports false.
func (f *Flow) Call(call ActivityCall) (ActivityResult, bool) {
	if f.pending != nil || f.err != nil {
		return ActivityResult{}, false
	}

	if f.pos >= len(f.history) {
		f.pending = &Action{kind: actionAwait, calls: []ActivityCall{call}}
		return ActivityResult{}, false
	}

	evt := f.history[f.pos]
	if evt.Kind != EventActivityScheduled {
		f.err = errors.Wrap(ErrNonDeterministic, "expected scheduled activity", j.MKV{
			"instance_id": f.instanceID,
			"event_kind":  evt.Kind.String(),
			"activity":    call.Name,
		})
		return ActivityResult{}, false
	}

	var sp scheduledPayload
	if err := Unmarshal(evt.Payload, &sp); err != nil {
		f.err = err
		return ActivityResult{}, false
	}

	if sp.Call.Name != call.Name {
		f.err = errors.Wrap(ErrNonDeterministic, "scheduled activity does not match history", j.MKV{
			"instance_id": f.instanceID,
			"recorded":    sp.Call.Name,
			"requested":   call.Name,
		})
		return ActivityResult{}, false
	}

	if f.pos+1 >= len(f.history) {
		// Scheduled but no outcome recorded: resume the in-flight call
		// without re-appending the scheduling event.
		f.pending = &Action{kind: actionAwait, calls: []ActivityCall{sp.Call}, scheduled: true}
		return ActivityResult{}, false
	}

	outcome := f.history[f.pos+1]
	var cp completedPayload
	if err := Unmarshal(outcome.Payload, &cp); err != nil {
		f.err = err
		return ActivityResult{}, false
	}

	switch outcome.Kind {
	case EventActivityCompleted:
		f.pos += 2
		return cp.Result, true
	case EventActivityFailed:
		f.pending = &Action{kind: actionFail, failure: failureOf(cp.Result)}
		return ActivityResult{}, false
	default:
		f.err = errors.Wrap(ErrInvalidEvent, "expected activity outcome", j.MKV{
			"instance_id": f.instanceID,
			"event_kind":  outcome.Kind.String(),
		})
		return ActivityResult{}, false
	}
}

// CallAll awaits a fan-out set. During replay it returns the recorded joined
// results in call order; once history is exhausted it records the set as the
// pending action and reports false. A recorded permanent failure inside the
// set resolves to a fail action carrying the first failure in call order.
func (f *Flow) CallAll(calls []ActivityCall) ([]ActivityResult, bool) {
	if f.pending != nil || f.err != nil {
		return nil, false
	}

	if f.pos >= len(f.history) {
		f.pending = &Action{kind: actionAwait, fanOut: true, calls: calls}
		return nil, false
	}

	evt := f.history[f.pos]
	if evt.Kind != EventTasksAwaited {
		f.err = errors.Wrap(ErrNonDeterministic, "expected awaited task set", j.MKV{
			"instance_id": f.instanceID,
			"event_kind":  evt.Kind.String(),
		})
		return nil, false
	}

	var ap awaitedPayload
	if err := Unmarshal(evt.Payload, &ap); err != nil {
		f.err = err
		return nil, false
	}

	if len(ap.Calls) != len(calls) {
		f.err = errors.Wrap(ErrNonDeterministic, "awaited task set does not match history", j.MKV{
			"instance_id": f.instanceID,
			"recorded":    strconv.Itoa(len(ap.Calls)),
			"requested":   strconv.Itoa(len(calls)),
		})
		return nil, false
	}

	for i := range calls {
		if ap.Calls[i].Name == calls[i].Name {
			continue
		}

		f.err = errors.Wrap(ErrNonDeterministic, "awaited task does not match history", j.MKV{
			"instance_id": f.instanceID,
			"position":    strconv.Itoa(i),
			"recorded":    ap.Calls[i].Name,
			"requested":   calls[i].Name,
		})
		return nil, false
	}

	if f.pos+1 >= len(f.history) {
		f.pending = &Action{kind: actionAwait, fanOut: true, calls: ap.Calls, scheduled: true}
		return nil, false
	}

	outcome := f.history[f.pos+1]
	if outcome.Kind != EventTasksCompleted {
		f.err = errors.Wrap(ErrInvalidEvent, "expected completed task set", j.MKV{
			"instance_id": f.instanceID,
			"event_kind":  outcome.Kind.String(),
		})
		return nil, false
	}

	var tp tasksCompletedPayload
	if err := Unmarshal(outcome.Payload, &tp); err != nil {
		f.err = err
		return nil, false
	}

	for _, res := range tp.Results {
		if res.OK() {
			continue
		}

		f.pending = &Action{kind: actionFail, failure: failureOf(res)}
		return nil, false
	}

	f.pos += 2
	return tp.Results, true
}

func failureOf(res ActivityResult) *Failure {
	fail := &Failure{
		Activity: res.Name,
		Attempts: res.Attempts,
		Kind:     ErrKindPermanent,
	}
	if res.Err != nil {
		fail.Kind = res.Err.Kind
		fail.Message = res.Err.Message
	}

	return fail
}
