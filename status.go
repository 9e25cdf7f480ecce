package loom

// Status is the lifecycle state of a workflow instance. Terminal statuses are
// final; an instance never transitions out of Completed or Failed.
type Status int

const (
	StatusUnknown   Status = 0
	StatusRunning   Status = 1
	StatusCompleted Status = 2
	StatusFailed    Status = 3

	statusSentinel Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s Status) Valid() bool {
	return s > StatusUnknown && s < statusSentinel
}

// Terminal reports whether the instance has finished, successfully or not.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
