// Package adaptertest provides acceptance tests that every adapter
// implementation must pass to be compatible with loom.
package adaptertest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/luno/jettison/jtest"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom"
)

// RunRecordStoreTest runs the contract tests for a loom.RecordStore against
// fresh stores produced by factory.
func RunRecordStoreTest(t *testing.T, factory func() loom.RecordStore) {
	tests := []func(t *testing.T, store loom.RecordStore){
		testStoreAndLookup,
		testList,
		testAppendEvents,
	}

	for _, test := range tests {
		test(t, factory())
	}
}

func testRecord(kind string) *loom.Record {
	now := time.Now()
	return &loom.Record{
		InstanceID:   uuid.New().String(),
		WorkflowKind: kind,
		Input:        []byte(`{"q":"hello"}`),
		Status:       loom.StatusRunning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testStoreAndLookup(t *testing.T, store loom.RecordStore) {
	t.Run("StoreAndLookup", func(t *testing.T) {
		ctx := context.Background()

		_, err := store.Lookup(ctx, "missing")
		jtest.Require(t, loom.ErrInstanceNotFound, err)

		record := testRecord("embeddings")
		err = store.Store(ctx, record)
		jtest.RequireNil(t, err)

		fetched, err := store.Lookup(ctx, record.InstanceID)
		jtest.RequireNil(t, err)
		require.Equal(t, record.InstanceID, fetched.InstanceID)
		require.Equal(t, loom.StatusRunning, fetched.Status)

		// Terminal update must overwrite, not append.
		record.Status = loom.StatusCompleted
		record.Output = []byte(`{"ok":true}`)
		err = store.Store(ctx, record)
		jtest.RequireNil(t, err)

		fetched, err = store.Lookup(ctx, record.InstanceID)
		jtest.RequireNil(t, err)
		require.Equal(t, loom.StatusCompleted, fetched.Status)
		require.Equal(t, record.Output, fetched.Output)
	})
}

func testList(t *testing.T, store loom.RecordStore) {
	t.Run("List", func(t *testing.T) {
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			err := store.Store(ctx, testRecord("embeddings"))
			jtest.RequireNil(t, err)
		}
		err := store.Store(ctx, testRecord("code-review"))
		jtest.RequireNil(t, err)

		records, err := store.List(ctx, "embeddings", 0, 10)
		jtest.RequireNil(t, err)
		require.Len(t, records, 3)

		records, err = store.List(ctx, "", 0, 10)
		jtest.RequireNil(t, err)
		require.Len(t, records, 4)

		records, err = store.List(ctx, "embeddings", 2, 10)
		jtest.RequireNil(t, err)
		require.Len(t, records, 1)
	})
}

func testAppendEvents(t *testing.T, store loom.RecordStore) {
	t.Run("AppendEvents", func(t *testing.T) {
		ctx := context.Background()

		_, err := store.AppendEvent(ctx, "missing", loom.EventActivityScheduled, nil)
		jtest.Require(t, loom.ErrInstanceNotFound, err)

		record := testRecord("embeddings")
		err = store.Store(ctx, record)
		jtest.RequireNil(t, err)

		kinds := []loom.EventKind{
			loom.EventActivityScheduled,
			loom.EventActivityCompleted,
			loom.EventTasksAwaited,
			loom.EventTasksCompleted,
		}
		for _, kind := range kinds {
			evt, err := store.AppendEvent(ctx, record.InstanceID, kind, []byte(`{}`))
			jtest.RequireNil(t, err)
			require.Equal(t, kind, evt.Kind)
		}

		events, err := store.ListEvents(ctx, record.InstanceID)
		jtest.RequireNil(t, err)
		require.Len(t, events, len(kinds))

		// Sequence numbers must be strictly increasing in append order.
		for i, evt := range events {
			require.Equal(t, kinds[i], evt.Kind)
			if i > 0 {
				require.Greater(t, evt.SequenceNo, events[i-1].SequenceNo)
			}
		}
	})
}
