// Package memstream provides an in-memory loom.EventStreamer that records
// sent lifecycle events for inspection in tests.
package memstream

import (
	"context"
	"sync"

	"github.com/loomworks/loom"
)

// Event is one captured lifecycle transition.
type Event struct {
	Topic      string
	InstanceID string
	Status     loom.Status
	Headers    map[loom.Header]string
}

func New() *Streamer {
	return &Streamer{}
}

var _ loom.EventStreamer = (*Streamer)(nil)

type Streamer struct {
	mu     sync.Mutex
	events []Event
}

func (s *Streamer) NewSender(ctx context.Context, topic string) (loom.EventSender, error) {
	return &sender{topic: topic, streamer: s}, nil
}

// Events returns all captured events in send order.
func (s *Streamer) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.events))
	copy(out, s.events)

	return out
}

type sender struct {
	topic    string
	streamer *Streamer
}

func (s *sender) Send(ctx context.Context, instanceID string, status loom.Status, headers map[loom.Header]string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.streamer.mu.Lock()
	defer s.streamer.mu.Unlock()

	s.streamer.events = append(s.streamer.events, Event{
		Topic:      s.topic,
		InstanceID: instanceID,
		Status:     status,
		Headers:    headers,
	})

	return nil
}

func (s *sender) Close() error {
	return nil
}
