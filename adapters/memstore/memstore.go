// Package memstore provides an in-memory loom.RecordStore for tests and
// single-process hosts.
package memstore

import (
	"context"
	"sync"

	"k8s.io/utils/clock"

	"github.com/loomworks/loom"
)

const defaultListLimit = 25

type options struct {
	clock clock.Clock
}

type Option func(o *options)

// WithClock overrides the default real clock, for tests that need to control
// record timestamps.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	opt := options{
		clock: clock.RealClock{},
	}
	for _, o := range opts {
		o(&opt)
	}

	return &Store{
		clock:     opt.clock,
		records:   make(map[string]*loom.Record),
		events:    make(map[string][]loom.Event),
		snapshots: make(map[string][]*loom.Record),
	}
}

var (
	_ loom.RecordStore        = (*Store)(nil)
	_ loom.TestingRecordStore = (*Store)(nil)
)

type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	records map[string]*loom.Record
	order   []string
	events  map[string][]loom.Event

	snapshots map[string][]*loom.Record
}

func (s *Store) Store(ctx context.Context, record *loom.Record) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.InstanceID]; !ok {
		s.order = append(s.order, record.InstanceID)
	}

	cp := *record
	s.records[record.InstanceID] = &cp

	snapshot := cp
	s.snapshots[record.InstanceID] = append(s.snapshots[record.InstanceID], &snapshot)

	return nil
}

func (s *Store) Lookup(ctx context.Context, instanceID string) (*loom.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[instanceID]
	if !ok {
		return nil, loom.ErrInstanceNotFound
	}

	cp := *record
	return &cp, nil
}

func (s *Store) List(ctx context.Context, workflowKind string, offset int, limit int) ([]loom.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultListLimit
	}

	var all []loom.Record
	for _, id := range s.order {
		record := s.records[id]
		if workflowKind != "" && record.WorkflowKind != workflowKind {
			continue
		}

		all = append(all, *record)
	}

	if offset >= len(all) {
		return nil, nil
	}

	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	return all[offset:end], nil
}

func (s *Store) AppendEvent(ctx context.Context, instanceID string, kind loom.EventKind, payload []byte) (loom.Event, error) {
	if ctx.Err() != nil {
		return loom.Event{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[instanceID]; !ok {
		return loom.Event{}, loom.ErrInstanceNotFound
	}

	evt := loom.Event{
		SequenceNo: int64(len(s.events[instanceID]) + 1),
		InstanceID: instanceID,
		Kind:       kind,
		Payload:    payload,
		CreatedAt:  s.clock.Now(),
	}
	s.events[instanceID] = append(s.events[instanceID], evt)

	return evt, nil
}

func (s *Store) ListEvents(ctx context.Context, instanceID string) ([]loom.Event, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.events[instanceID]
	out := make([]loom.Event, len(events))
	copy(out, events)

	return out, nil
}

// Snapshots returns every version of the record in store order, for test
// assertions on intermediate state.
func (s *Store) Snapshots(instanceID string) []*loom.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshots[instanceID]
}
