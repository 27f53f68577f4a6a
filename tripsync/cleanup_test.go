package tripsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

func TestCleanupDuplicatesPrefersRemoteCopy(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	confirmed := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, confirmed))
	stray := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200}
	require.NoError(t, store.InsertTrip(ctx, stray))

	act := &tripstore.Activity{TripID: stray.ID, Title: "Louvre", DateTime: 150, RemoteID: "act-1", Synced: true}
	require.NoError(t, store.InsertActivity(ctx, act))

	removed, err := eng.CleanupDuplicates(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	trips, err := store.AllTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Equal(t, "abc123", trips[0].RemoteID)

	// The stray's activity moved onto the survivor and dropped its remote id
	// so the next push re-homes it.
	acts, err := store.ActivitiesForTrip(ctx, confirmed.ID)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, "Louvre", acts[0].Title)
	require.Empty(t, acts[0].RemoteID)
	require.False(t, acts[0].Synced)
}

func TestCleanupDuplicatesSkipsAlreadyPresentActivities(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	winner := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, winner))
	loser := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200}
	require.NoError(t, store.InsertTrip(ctx, loser))

	keep := &tripstore.Activity{TripID: winner.ID, Title: "Louvre", DateTime: 150, Description: "morning"}
	require.NoError(t, store.InsertActivity(ctx, keep))
	dupe := &tripstore.Activity{TripID: loser.ID, Title: "Louvre", DateTime: 150, Description: "morning"}
	require.NoError(t, store.InsertActivity(ctx, dupe))
	extra := &tripstore.Activity{TripID: loser.ID, Title: "Orsay", DateTime: 300}
	require.NoError(t, store.InsertActivity(ctx, extra))

	_, err := eng.CleanupDuplicates(ctx)
	require.NoError(t, err)

	acts, err := store.ActivitiesForTrip(ctx, winner.ID)
	require.NoError(t, err)
	require.Len(t, acts, 2, "identical activity is dropped with its trip, distinct one is re-parented")
}

func TestCleanupDuplicatesCollapsesSharedRemoteID(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	older := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, older))
	// Different content, same remote id: a push/listener race left two rows
	// claiming the same server document.
	newer := &tripstore.Trip{Title: "Paris (edited)", Destination: "France", StartDate: 100, EndDate: 300, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, newer))

	removed, err := eng.CleanupDuplicates(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	trips, err := store.AllTrips(ctx)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Equal(t, "Paris (edited)", trips[0].Title, "later update wins the shared remote id")
}

func TestCleanupDuplicatesIsStable(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris", Destination: "France", StartDate: 100, EndDate: 200, RemoteID: "abc123", Synced: true}
	require.NoError(t, store.InsertTrip(ctx, trip))
	other := &tripstore.Trip{Title: "Rome", Destination: "Italy", StartDate: 400, EndDate: 500}
	require.NoError(t, store.InsertTrip(ctx, other))

	removed, err := eng.CleanupDuplicates(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed, "distinct trips are untouched")

	removed, err = eng.CleanupDuplicates(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, removed, "sweep is idempotent")
}

func TestCleanupOrphans(t *testing.T) {
	eng, store, _, _ := testEngine(t)
	ctx := context.Background()

	trip := &tripstore.Trip{Title: "Paris"}
	require.NoError(t, store.InsertTrip(ctx, trip))
	kept := &tripstore.Activity{TripID: trip.ID, Title: "Louvre", DateTime: 150}
	require.NoError(t, store.InsertActivity(ctx, kept))
	orphan := &tripstore.Activity{TripID: trip.ID + 999, Title: "Ghost", DateTime: 150}
	require.NoError(t, store.InsertActivity(ctx, orphan))

	removed, err := eng.CleanupOrphans(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	all, err := store.AllActivities(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, kept.ID, all[0].ID)
}
