package loom

import "context"

// RecordStore persists instance records and their append-only histories.
// Implementations should all be tested with adaptertest.RunRecordStoreTest. The
// store must assign strictly increasing sequence numbers to events within an
// instance; the engine relies on that ordering for replay.
type RecordStore interface {
	// Store creates or updates the instance record keyed by its InstanceID.
	Store(ctx context.Context, record *Record) error

	// Lookup returns the record for the instance id or ErrInstanceNotFound.
	Lookup(ctx context.Context, instanceID string) (*Record, error)

	// List provides records for a workflow kind ordered by creation time.
	// A kind of "" lists across all kinds.
	List(ctx context.Context, workflowKind string, offset int, limit int) ([]Record, error)

	// AppendEvent appends a history event for the instance and returns it
	// with its assigned sequence number.
	AppendEvent(ctx context.Context, instanceID string, kind EventKind, payload []byte) (Event, error)

	// ListEvents returns the instance's history in sequence order.
	ListEvents(ctx context.Context, instanceID string) ([]Event, error)
}

// TestingRecordStore is implemented by stores that keep per-instance record
// snapshots for assertions in tests.
type TestingRecordStore interface {
	RecordStore

	Snapshots(instanceID string) []*Record
}
