// Package loom is a durable workflow orchestration engine for multi-step,
// partially parallel AI processing pipelines.
//
// A workflow is a deterministic step function replayed from an append-only
// history of events. All I/O happens inside named activities executed by the
// engine on behalf of the step function; the step function itself must be a
// pure function of its input and the recorded history. This keeps every
// scheduling decision reproducible: replaying the same history always yields
// the same next action, which is what makes crash recovery and mid-flight
// resumption the same code path.
//
// True parallelism is delegated to the fan-out coordinator, which dispatches
// a set of activity calls over a bounded worker pool and joins all of them
// (preserving input order) before the workflow advances.
package loom

import (
	"context"
	"time"
)

// API is the external surface of the engine. Submission is asynchronous: the
// workflow runs to completion independently and callers observe it through
// Status or Await.
type API interface {
	// Submit creates a new instance of the named workflow kind and starts it.
	// The input must be JSON-serialisable. Submit returns as soon as the
	// instance record exists; it does not wait for the workflow to finish.
	Submit(ctx context.Context, kind string, input any) (instanceID string, err error)

	// Status returns the current status of an instance along with its output
	// payload (when Completed) or structured failure (when Failed).
	Status(ctx context.Context, instanceID string) (InstanceStatus, error)

	// Await blocks until the instance reaches a terminal status or the
	// context is cancelled.
	Await(ctx context.Context, instanceID string, opts ...AwaitOption) (InstanceStatus, error)

	// Schedule submits a new instance of the workflow kind on a cron spec.
	// It blocks until the context is cancelled.
	Schedule(ctx context.Context, kind string, spec string, input any) error

	// Stop waits for all in-flight instances to settle.
	Stop()
}

// InstanceStatus is the caller-visible view of a workflow instance.
type InstanceStatus struct {
	InstanceID string
	Kind       string
	Status     Status
	// Output holds the JSON result payload once the instance has Completed.
	Output []byte
	// Failure is populated once the instance has Failed.
	Failure *Failure
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Failure describes a workflow-fatal activity failure. The originating
// activity name, attempt count, and error kind are preserved for diagnostics.
type Failure struct {
	Activity string  `json:"activity"`
	Kind     ErrKind `json:"kind"`
	Attempts int     `json:"attempts"`
	Message  string  `json:"message"`
}
