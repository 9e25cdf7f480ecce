package loom

import (
	"context"
	"errors"
	"time"
)

// ActivityFunc is a named unit of I/O-bound work. Activities are the only
// place where network or storage access is permitted; the engine invokes them
// outside the deterministic stepping path. Implementations must be idempotent
// or side-effect-safe under retry.
type ActivityFunc func(ctx context.Context, input []byte) ([]byte, error)

// ActivityCall is a stateless description of one activity invocation. Many
// calls may be in flight concurrently under a single instance.
type ActivityCall struct {
	Name        string        `json:"name"`
	Input       []byte        `json:"input"`
	MaxAttempts int           `json:"max_attempts"`
	Timeout     time.Duration `json:"timeout"`
}

// ActivityResult is the outcome of one activity call. Exactly one of Output
// and Err is meaningful.
type ActivityResult struct {
	Name     string         `json:"name"`
	Attempts int            `json:"attempts"`
	Output   []byte         `json:"output,omitempty"`
	Err      *ActivityError `json:"err,omitempty"`
}

// OK reports whether the call succeeded.
func (r ActivityResult) OK() bool {
	return r.Err == nil
}

// ErrKind classifies activity errors so that retry policy can be decided
// centrally rather than inside each activity.
type ErrKind string

const (
	// ErrKindTimeout is an activity exceeding its per-call timeout.
	ErrKindTimeout ErrKind = "timeout"
	// ErrKindTransient covers provider errors worth retrying, such as rate
	// limits or momentary unavailability.
	ErrKindTransient ErrKind = "transient"
	// ErrKindPermanent covers errors that retrying cannot fix, such as
	// authentication failures or malformed requests.
	ErrKindPermanent ErrKind = "permanent"
	// ErrKindInput is a missing or invalid required field. Input errors are
	// handled locally and never become workflow-fatal.
	ErrKindInput ErrKind = "input"
)

// Retryable reports whether the fan-out coordinator may retry the call.
func (k ErrKind) Retryable() bool {
	return k == ErrKindTimeout || k == ErrKindTransient
}

// ActivityError is a classified activity failure.
type ActivityError struct {
	Kind    ErrKind `json:"kind"`
	Message string  `json:"message"`
}

func (e *ActivityError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Transient marks err as retryable when returned from an activity.
func Transient(err error) error {
	return &ActivityError{Kind: ErrKindTransient, Message: err.Error()}
}

// Permanent marks err as non-retryable when returned from an activity.
func Permanent(err error) error {
	return &ActivityError{Kind: ErrKindPermanent, Message: err.Error()}
}

// classify maps an activity's returned error to an ActivityError. Errors not
// explicitly classified by the activity default to transient so that flaky
// providers get the retry budget; context deadlines map to the timeout kind.
func classify(err error) *ActivityError {
	var aerr *ActivityError
	if errors.As(err, &aerr) {
		return aerr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ActivityError{Kind: ErrKindTimeout, Message: err.Error()}
	}

	return &ActivityError{Kind: ErrKindTransient, Message: err.Error()}
}

// invoke runs a single attempt of the call under its own timeout. It never
// returns a Go error; all failure detail is carried in the result so that the
// caller can fold it into history verbatim.
func invoke(ctx context.Context, fn ActivityFunc, call ActivityCall, attempt int) ActivityResult {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	out, err := fn(ctx, call.Input)
	if err != nil {
		return ActivityResult{
			Name:     call.Name,
			Attempts: attempt,
			Err:      classify(err),
		}
	}

	return ActivityResult{
		Name:     call.Name,
		Attempts: attempt,
		Output:   out,
	}
}
