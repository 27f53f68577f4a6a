// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// DeleteTrip removes the trip and everything under it locally, then fires a
// best-effort background deletion of the remote trip document, its activity
// and budget sub-collections and any uploaded images. The local delete is the
// source of truth; a remote failure is logged and never reported back.
func (e *Engine) DeleteTrip(ctx context.Context, tripID int64) error {
	trip, err := e.local.TripByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load trip: %w", err)
	}
	activities, err := e.local.ActivitiesForTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load activities: %w", err)
	}
	expenses, err := e.local.ExpensesForTrip(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to load expenses: %w", err)
	}

	e.watchMu.Lock()
	if stop, ok := e.actWatchStops[tripID]; ok {
		stop()
		delete(e.actWatchStops, tripID)
	}
	e.watchMu.Unlock()

	if trip.RemoteID != "" {
		e.tracker.MarkDeleting(trip.RemoteID)
	}
	for _, act := range activities {
		if act.HasRemoteID() {
			e.tracker.MarkDeleting(act.RemoteID)
		}
	}

	if err := e.local.DeleteTrip(ctx, tripID); err != nil {
		return fmt.Errorf("failed to delete trip locally: %w", err)
	}

	if _, ok := e.userID(); !ok || trip.RemoteID == "" {
		return nil
	}

	remoteID := trip.RemoteID
	e.submit(func() {
		ctx := context.Background()
		for _, act := range activities {
			e.deleteActivityRemote(ctx, remoteID, act)
		}
		for _, exp := range expenses {
			if exp.RemoteID == "" {
				continue
			}
			if err := e.remote.Delete(ctx, budgetPath(remoteID), exp.RemoteID); err != nil {
				e.logger.Warn("failed to delete remote expense", "remote_id", exp.RemoteID, "error", err)
			}
		}
		if err := e.remote.Delete(ctx, budgetPath(remoteID), budgetDocID); err != nil {
			e.logger.Warn("failed to delete remote budget document", "trip_remote_id", remoteID, "error", err)
		}
		if err := e.remote.Delete(ctx, tripsPath(), remoteID); err != nil {
			e.logger.Warn("failed to delete remote trip", "remote_id", remoteID, "error", err)
		}
	})
	return nil
}

// DeleteActivity removes the activity locally and fires a best-effort
// background deletion of its remote document and uploaded image. The remote
// id is marked in the deletion tracker first so a change-feed echo of the
// dying document cannot resurrect it.
func (e *Engine) DeleteActivity(ctx context.Context, activityID int64) error {
	act, err := e.local.ActivityByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}

	var tripRemoteID string
	if act.HasRemoteID() {
		trip, err := e.local.TripByID(ctx, act.TripID)
		if err == nil {
			tripRemoteID = trip.RemoteID
		}
		e.tracker.MarkDeleting(act.RemoteID)
	}

	if err := e.local.DeleteActivity(ctx, activityID); err != nil {
		return fmt.Errorf("failed to delete activity locally: %w", err)
	}

	if _, ok := e.userID(); !ok || !act.HasRemoteID() || tripRemoteID == "" {
		return nil
	}
	e.submit(func() {
		e.deleteActivityRemote(context.Background(), tripRemoteID, act)
	})
	return nil
}

// DeleteActivityRemoteFirst deletes the remote document before touching the
// local row. Used when the caller must know the server copy is gone; a remote
// failure leaves both sides intact and is returned to the caller.
func (e *Engine) DeleteActivityRemoteFirst(ctx context.Context, activityID int64) error {
	act, err := e.local.ActivityByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load activity: %w", err)
	}

	if act.HasRemoteID() {
		if _, ok := e.userID(); !ok {
			return ErrNotAuthenticated
		}
		trip, err := e.local.TripByID(ctx, act.TripID)
		if err != nil {
			return fmt.Errorf("failed to load owning trip: %w", err)
		}
		e.tracker.MarkDeleting(act.RemoteID)
		err = e.withTimeout(ctx, e.config.PushTimeout, func(ctx context.Context) error {
			return e.remote.Delete(ctx, activitiesPath(trip.RemoteID), act.RemoteID)
		})
		if err != nil {
			e.tracker.Clear(act.RemoteID)
			return fmt.Errorf("failed to delete remote activity: %w", err)
		}
		e.deleteActivityImage(ctx, act)
	}

	if err := e.local.DeleteActivity(ctx, activityID); err != nil {
		return fmt.Errorf("failed to delete activity locally: %w", err)
	}
	return nil
}

// DeleteExpense removes the expense locally and fires a best-effort
// background deletion of its remote document.
func (e *Engine) DeleteExpense(ctx context.Context, expenseID int64) error {
	exp, err := e.local.ExpenseByID(ctx, expenseID)
	if err != nil {
		if errors.Is(err, tripstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load expense: %w", err)
	}

	var tripRemoteID string
	if exp.RemoteID != "" {
		trip, err := e.local.TripByID(ctx, exp.TripID)
		if err == nil {
			tripRemoteID = trip.RemoteID
		}
		e.tracker.MarkDeleting(exp.RemoteID)
	}

	if err := e.local.DeleteExpense(ctx, expenseID); err != nil {
		return fmt.Errorf("failed to delete expense locally: %w", err)
	}

	if _, ok := e.userID(); !ok || exp.RemoteID == "" || tripRemoteID == "" {
		return nil
	}
	remoteID := exp.RemoteID
	e.submit(func() {
		if err := e.remote.Delete(context.Background(), budgetPath(tripRemoteID), remoteID); err != nil {
			e.logger.Warn("failed to delete remote expense", "remote_id", remoteID, "error", err)
		}
	})
	return nil
}

// deleteActivityRemote is the best-effort remote leg shared by the async
// deletion paths: document first, then the uploaded image.
func (e *Engine) deleteActivityRemote(ctx context.Context, tripRemoteID string, act *tripstore.Activity) {
	if !act.HasRemoteID() {
		return
	}
	if err := e.remote.Delete(ctx, activitiesPath(tripRemoteID), act.RemoteID); err != nil {
		e.logger.Warn("failed to delete remote activity", "remote_id", act.RemoteID, "error", err)
	}
	e.deleteActivityImage(ctx, act)
}

func (e *Engine) deleteActivityImage(ctx context.Context, act *tripstore.Activity) {
	if e.assets == nil || act.ImageURL == "" || !strings.HasPrefix(act.ImageURL, "http") {
		return
	}
	if err := e.assets.Delete(ctx, act.ImageURL); err != nil {
		e.logger.Warn("failed to delete uploaded image", "url", act.ImageURL, "error", err)
	}
}
