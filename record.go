package loom

import "time"

// Record is the serialisable representation of a workflow instance. It is
// owned exclusively by the engine: created on submission, mutated only as a
// consequence of replaying the instance's own history, and never touched by
// two steps of the same instance concurrently.
type Record struct {
	InstanceID   string
	WorkflowKind string
	Input        []byte
	Status       Status
	Output       []byte
	Failure      *Failure
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r *Record) status() InstanceStatus {
	return InstanceStatus{
		InstanceID: r.InstanceID,
		Kind:       r.WorkflowKind,
		Status:     r.Status,
		Output:     r.Output,
		Failure:    r.Failure,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
