package loom

import "context"

// EventStreamer publishes instance lifecycle transitions for external
// observers (notification fan-out, audit trails). The engine only sends;
// consumption is the subscriber's concern. A nil streamer disables
// publishing.
type EventStreamer interface {
	NewSender(ctx context.Context, topic string) (EventSender, error)
}

// EventSender is the producer half of a lifecycle stream.
type EventSender interface {
	Send(ctx context.Context, instanceID string, status Status, headers map[Header]string) error
	Close() error
}

type Header string

const (
	HeaderWorkflowKind Header = "workflow_kind"
	HeaderInstanceID   Header = "instance_id"
	HeaderTopic        Header = "topic"
)
