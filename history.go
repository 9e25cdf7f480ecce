package loom

import "time"

// EventKind enumerates the record kinds that can appear in an instance's
// history. The history is append-only and is the only input, besides the
// original workflow input, that a step function may consult.
type EventKind int

const (
	EventUnknown           EventKind = 0
	EventActivityScheduled EventKind = 1
	EventActivityCompleted EventKind = 2
	EventActivityFailed    EventKind = 3
	EventTasksAwaited      EventKind = 4
	EventTasksCompleted    EventKind = 5

	eventKindSentinel EventKind = 6
)

func (k EventKind) String() string {
	switch k {
	case EventActivityScheduled:
		return "ActivityScheduled"
	case EventActivityCompleted:
		return "ActivityCompleted"
	case EventActivityFailed:
		return "ActivityFailed"
	case EventTasksAwaited:
		return "TasksAwaited"
	case EventTasksCompleted:
		return "TasksCompleted"
	default:
		return "Unknown"
	}
}

func (k EventKind) Valid() bool {
	return k > EventUnknown && k < eventKindSentinel
}

// Event is a single record in an instance's append-only history. SequenceNo
// is assigned by the record store and is strictly increasing per instance.
type Event struct {
	SequenceNo int64
	InstanceID string
	Kind       EventKind
	Payload    []byte
	CreatedAt  time.Time
}

// scheduledPayload is the payload of an EventActivityScheduled event.
type scheduledPayload struct {
	Call ActivityCall `json:"call"`
}

// awaitedPayload is the payload of an EventTasksAwaited event.
type awaitedPayload struct {
	Calls []ActivityCall `json:"calls"`
}

// completedPayload is the payload of EventActivityCompleted and
// EventActivityFailed events.
type completedPayload struct {
	Result ActivityResult `json:"result"`
}

// tasksCompletedPayload is the payload of an EventTasksCompleted event. It
// carries the full joined result set, successes and failures alike, in the
// same order the calls were awaited.
type tasksCompletedPayload struct {
	Results []ActivityResult `json:"results"`
}
