// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// PushTrip propagates a locally created or updated trip to the remote store.
// Unauthenticated callers complete immediately with success (pure local
// mode). Remote failure or timeout leaves the trip unsynced and returns a
// *SyncPendingError; the local copy is never reverted.
func (e *Engine) PushTrip(ctx context.Context, trip *tripstore.Trip) error {
	if _, ok := e.userID(); !ok {
		return nil
	}

	if trip.RemoteID == "" {
		var remoteID string
		err := e.withTimeout(ctx, e.config.FirstInsertTimeout, func(ctx context.Context) error {
			id, err := e.remote.Add(ctx, tripsPath(), tripDocData(trip))
			if err != nil {
				return err
			}
			remoteID = id
			return nil
		})
		if err != nil {
			e.logger.Warn("trip push failed, will retry on next sync", "trip_id", trip.ID, "error", err)
			return &SyncPendingError{Entity: "trip", Err: err}
		}
		if err := e.local.SetTripRemoteID(ctx, trip.ID, remoteID); err != nil {
			return fmt.Errorf("failed to record trip remote id: %w", err)
		}
		trip.RemoteID = remoteID
		trip.Synced = true
		return nil
	}

	err := e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
		return e.remote.Set(ctx, tripsPath(), trip.RemoteID, tripDocData(trip))
	})
	if err != nil {
		e.logger.Warn("trip push failed, will retry on next sync", "trip_id", trip.ID, "error", err)
		return &SyncPendingError{Entity: "trip", Err: err}
	}
	if err := e.local.MarkTripSynced(ctx, trip.ID, true); err != nil {
		return fmt.Errorf("failed to mark trip synced: %w", err)
	}
	trip.Synced = true
	return nil
}

// PushActivity propagates an activity. The owning trip must exist locally
// and be remotely addressable first; an activity carrying a pending local
// image is uploaded before the document write, and upload failure aborts the
// remote leg without touching local state.
func (e *Engine) PushActivity(ctx context.Context, act *tripstore.Activity) error {
	if _, ok := e.userID(); !ok {
		return nil
	}

	trip, err := e.local.TripByID(ctx, act.TripID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return fmt.Errorf("owning trip %d not found locally", act.TripID)
		}
		return fmt.Errorf("failed to load owning trip: %w", err)
	}
	if trip.RemoteID == "" {
		// The parent has not reached the server yet; the activity cannot be
		// remotely addressable before it.
		return &SyncPendingError{Entity: "activity", Err: fmt.Errorf("owning trip %d not synced yet", trip.ID)}
	}

	if act.HasPendingImage() {
		if e.assets == nil {
			return &SyncPendingError{Entity: "activity", Err: fmt.Errorf("no asset store configured for image %q", act.ImageURL)}
		}
		var url string
		err := e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
			u, err := e.assets.Upload(ctx, act.ImageURL)
			if err != nil {
				return err
			}
			url = u
			return nil
		})
		if err != nil {
			e.logger.Warn("image upload failed, activity sync aborted",
				"activity_id", act.ID, "path", act.ImageURL, "error", err)
			return &SyncPendingError{Entity: "activity", Err: fmt.Errorf("image upload failed: %w", err)}
		}
		act.ImageURL = url
		if err := e.local.UpdateActivity(ctx, act); err != nil {
			return fmt.Errorf("failed to persist uploaded image url: %w", err)
		}
	}

	path := activitiesPath(trip.RemoteID)
	if act.RemoteID == "" {
		var remoteID string
		err := e.withTimeout(ctx, e.config.FirstInsertTimeout, func(ctx context.Context) error {
			id, err := e.remote.Add(ctx, path, activityDocData(act))
			if err != nil {
				return err
			}
			remoteID = id
			return nil
		})
		if err != nil {
			e.logger.Warn("activity push failed, will retry on next sync", "activity_id", act.ID, "error", err)
			return &SyncPendingError{Entity: "activity", Err: err}
		}
		if err := e.local.SetActivityRemoteID(ctx, act.ID, remoteID); err != nil {
			return fmt.Errorf("failed to record activity remote id: %w", err)
		}
		act.RemoteID = remoteID
		act.Synced = true
		return nil
	}

	err = e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
		return e.remote.Set(ctx, path, act.RemoteID, activityDocData(act))
	})
	if err != nil {
		e.logger.Warn("activity push failed, will retry on next sync", "activity_id", act.ID, "error", err)
		return &SyncPendingError{Entity: "activity", Err: err}
	}
	act.Synced = true
	if err := e.markActivitySynced(ctx, act); err != nil {
		return err
	}
	return nil
}

func (e *Engine) markActivitySynced(ctx context.Context, act *tripstore.Activity) error {
	if err := e.local.UpdateActivity(ctx, act); err != nil {
		return fmt.Errorf("failed to mark activity synced: %w", err)
	}
	return nil
}

// PushExpense propagates a budget entry into the owning trip's budget
// sub-collection.
func (e *Engine) PushExpense(ctx context.Context, exp *tripstore.Expense) error {
	if _, ok := e.userID(); !ok {
		return nil
	}

	trip, err := e.local.TripByID(ctx, exp.TripID)
	if err != nil {
		return fmt.Errorf("failed to load owning trip: %w", err)
	}
	if trip.RemoteID == "" {
		return &SyncPendingError{Entity: "expense", Err: fmt.Errorf("owning trip %d not synced yet", trip.ID)}
	}

	path := budgetPath(trip.RemoteID)
	if exp.RemoteID == "" {
		var remoteID string
		err := e.withTimeout(ctx, e.config.FirstInsertTimeout, func(ctx context.Context) error {
			id, err := e.remote.Add(ctx, path, expenseDocData(exp))
			if err != nil {
				return err
			}
			remoteID = id
			return nil
		})
		if err != nil {
			return &SyncPendingError{Entity: "expense", Err: err}
		}
		if err := e.local.SetExpenseRemoteID(ctx, exp.ID, remoteID); err != nil {
			return fmt.Errorf("failed to record expense remote id: %w", err)
		}
		exp.RemoteID = remoteID
		exp.Synced = true
		return nil
	}

	err = e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
		return e.remote.Set(ctx, path, exp.RemoteID, expenseDocData(exp))
	})
	if err != nil {
		return &SyncPendingError{Entity: "expense", Err: err}
	}
	exp.Synced = true
	if err := e.local.UpdateExpense(ctx, exp); err != nil {
		return fmt.Errorf("failed to mark expense synced: %w", err)
	}
	return nil
}

// PushBudget writes the trip's aggregate budget document (merge set).
func (e *Engine) PushBudget(ctx context.Context, tripID int64, totalBudget float64) error {
	if _, ok := e.userID(); !ok {
		return nil
	}
	trip, err := e.local.TripByID(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.RemoteID == "" {
		return &SyncPendingError{Entity: "budget", Err: fmt.Errorf("trip %d not synced yet", tripID)}
	}
	now := nowMillis()
	data := map[string]any{
		fieldTotalBudget: totalBudget,
		fieldTripID:      strconv.FormatInt(tripID, 10),
		fieldUpdatedAt:   now,
	}
	err = e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
		return e.remote.Set(ctx, budgetPath(trip.RemoteID), budgetDocID, data)
	})
	if err != nil {
		return &SyncPendingError{Entity: "budget", Err: err}
	}
	return nil
}

// PushTripWithActivities pushes the trip first, then fans out a concurrent
// push of every one of its activities, reporting one aggregate result.
func (e *Engine) PushTripWithActivities(ctx context.Context, trip *tripstore.Trip) error {
	if _, ok := e.userID(); !ok {
		return nil
	}
	if err := e.PushTrip(ctx, trip); err != nil {
		return err
	}
	activities, err := e.local.ActivitiesForTrip(ctx, trip.ID)
	if err != nil {
		return fmt.Errorf("failed to load activities: %w", err)
	}
	return RunBatch(len(activities), func(b *Batch) {
		for _, act := range activities {
			act := act
			e.submit(func() {
				if err := e.PushActivity(ctx, act); err != nil {
					b.Fail(fmt.Sprintf("activity %q: %v", act.Title, err))
					return
				}
				b.OK()
			})
		}
	})
}
