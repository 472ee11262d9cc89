package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotFixture(t *testing.T) (*SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSnapshotStore(client, nil), mr
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, _ := newSnapshotFixture(t)
	ctx := context.Background()

	s := &Session{
		ID:        "sess-1",
		RoomID:    "room-1",
		Role:      RoleBooking,
		Turns:     7,
		StartedAt: time.Now().UTC().Truncate(time.Second),
		Slots: Slots{
			Phone:       "1-514-555-0100",
			TreatmentID: "teeth_whitening",
			Date:        "2024-01-08",
			Awaiting:    AwaitTime,
		},
	}
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, RoleBooking, got.Role)
	assert.Equal(t, 7, got.Turns)
	assert.Equal(t, "teeth_whitening", got.Slots.TreatmentID)
	assert.Equal(t, AwaitTime, got.Slots.Awaiting)
}

func TestSnapshotLoadUnknownSession(t *testing.T) {
	store, _ := newSnapshotFixture(t)

	_, err := store.Load(context.Background(), "nope")
	assert.Error(t, err)
}

func TestSnapshotDelete(t *testing.T) {
	store, _ := newSnapshotFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "sess-2", Role: RoleGreeter}))
	require.NoError(t, store.Delete(ctx, "sess-2"))

	_, err := store.Load(ctx, "sess-2")
	assert.Error(t, err)
}

func TestSnapshotExpires(t *testing.T) {
	store, mr := newSnapshotFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "sess-3", Role: RoleInfo}))
	mr.FastForward(snapshotTTL + time.Minute)

	_, err := store.Load(ctx, "sess-3")
	assert.Error(t, err)
}

func TestManagerResumeFallsBackToSnapshot(t *testing.T) {
	store, _ := newSnapshotFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &Session{ID: "sess-4", Role: RolePatientLookup, Turns: 3}))

	manager := NewManager(store)
	s, ok := manager.Resume(ctx, "sess-4")
	require.True(t, ok)
	assert.Equal(t, RolePatientLookup, s.Role)
	assert.Equal(t, 3, s.Turns)

	// Resumed sessions rejoin the live set.
	live, ok := manager.Get("sess-4")
	require.True(t, ok)
	assert.Same(t, s, live)
}
