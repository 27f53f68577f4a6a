package tripsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

func TestListenerIngestsTripAndActivityEvents(t *testing.T) {
	eng, store, remote, _ := testEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	require.NoError(t, remote.Set(ctx, tripsPath(), "abc123", tripDoc("abc123", "Paris", "France", 100, 200, 150).Data))

	require.Eventually(t, func() bool {
		_, err := store.TripByRemoteID(ctx, "abc123")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "trip event should create the local row")

	// The ingested trip gains an activity subscription; wait for it to be
	// registered before producing events under it.
	require.Eventually(t, func() bool {
		eng.watchMu.Lock()
		defer eng.watchMu.Unlock()
		return len(eng.actWatchStops) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, remote.Set(ctx, activitiesPath("abc123"), "act-1", activityDoc("act-1", "Louvre", 150, 150).Data))

	require.Eventually(t, func() bool {
		_, err := store.ActivityByRemoteID(ctx, "act-1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond, "activity event should create the local row")
}

func TestListenerRemovedEventDeletesLocal(t *testing.T) {
	eng, store, remote, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris", RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, trip))
	require.NoError(t, remote.Set(ctx, tripsPath(), "abc123", tripDoc("abc123", "Paris", "France", 100, 200, 150).Data))

	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	require.NoError(t, remote.Delete(ctx, tripsPath(), "abc123"))

	require.Eventually(t, func() bool {
		_, err := store.TripByRemoteID(ctx, "abc123")
		return err != nil
	}, 2*time.Second, 10*time.Millisecond, "removed event should delete the local row")
}

func TestListenerPausedDropsEvents(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.SetMode(ModeListenerPaused))
	eng.handleTripEvent(ctx, ChangeEvent{
		Type: ChangeAdded,
		Path: tripsPath(),
		Doc:  tripDoc("abc123", "Paris", "France", 100, 200, 150),
	})

	trips, err := store.AllTrips(ctx)
	require.NoError(t, err)
	require.Empty(t, trips, "paused listener must not mutate the store")

	require.NoError(t, eng.SetMode(ModeNormal))
	eng.handleTripEvent(ctx, ChangeEvent{
		Type: ChangeAdded,
		Path: tripsPath(),
		Doc:  tripDoc("abc123", "Paris", "France", 100, 200, 150),
	})
	trips, err = store.AllTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
}

func TestListenerRemoteAuthorityDropsActivityEvents(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris", RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, trip))

	require.NoError(t, eng.SetMode(ModeRemoteAuthority))
	eng.handleActivityEvent(ctx, trip.ID, ChangeEvent{
		Type: ChangeAdded,
		Doc:  activityDoc("act-1", "Louvre", 150, 150),
	})

	acts, err := store.ActivitiesForTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.Empty(t, acts)
}

func TestListenerDeletionRaceGuard(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris", RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, trip))

	now := time.Unix(1000, 0)
	eng.tracker.now = func() time.Time { return now }
	eng.tracker.MarkDeleting("act-1")

	// A feed echo of the dying document arrives before the server delete
	// lands: it must not resurrect the row.
	eng.handleActivityEvent(ctx, trip.ID, ChangeEvent{
		Type: ChangeModified,
		Doc:  activityDoc("act-1", "Louvre", 150, 150),
	})
	acts, err := store.ActivitiesForTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.Empty(t, acts)

	// After the ttl the same document is live again and ingests normally.
	now = now.Add(6 * time.Second)
	eng.handleActivityEvent(ctx, trip.ID, ChangeEvent{
		Type: ChangeAdded,
		Doc:  activityDoc("act-1", "Louvre", 150, 150),
	})
	acts, err = store.ActivitiesForTrip(ctx, trip.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
}

func TestListenerTripDeletionRaceGuard(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, trip))

	now := time.Unix(1000, 0)
	eng.tracker.now = func() time.Time { return now }

	require.NoError(t, eng.DeleteTrip(ctx, trip.ID))
	eng.Drain()

	// A feed echo of the dying trip document must not resurrect the row.
	eng.handleTripEvent(ctx, ChangeEvent{
		Type: ChangeModified,
		Path: tripsPath(),
		Doc:  tripDoc("abc123", "Paris", "France", 100, 200, 150),
	})
	trips, err := store.AllTrips(ctx)
	require.NoError(t, err)
	require.Empty(t, trips)

	// After the ttl the same document is live again and ingests normally.
	now = now.Add(6 * time.Second)
	eng.handleTripEvent(ctx, ChangeEvent{
		Type: ChangeAdded,
		Path: tripsPath(),
		Doc:  tripDoc("abc123", "Paris", "France", 100, 200, 150),
	})
	trips, err = store.AllTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Equal(t, "abc123", trips[0].RemoteID)
}

func TestRewatchActivitiesFollowsDuplicateReplacement(t *testing.T) {
	eng, store, remote, _ := testEngine(t)
	ctx := context.Background()

	local := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, local))

	require.NoError(t, eng.Start(ctx))
	defer eng.Stop()

	// Another device's copy of the same trip wins; the activity subscription
	// must follow the replacement record.
	fresh, err := eng.IngestTripDoc(ctx, tripDoc("xyz789", "Paris", "France", 100, 200, 300))
	require.NoError(t, err)
	require.NotNil(t, fresh)

	require.NoError(t, remote.Set(ctx, activitiesPath("xyz789"), "act-9", activityDoc("act-9", "Louvre", 150, 150).Data))
	require.Eventually(t, func() bool {
		act, err := store.ActivityByRemoteID(ctx, "act-9")
		return err == nil && act.TripID == fresh.ID
	}, 2*time.Second, 10*time.Millisecond)
}
