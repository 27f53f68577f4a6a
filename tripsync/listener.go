// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// Start opens the standing trip subscription plus one activity subscription
// per remotely addressable local trip. Unauthenticated callers complete
// immediately; there is nothing to listen to in pure local mode.
func (e *Engine) Start(ctx context.Context) error {
	if _, ok := e.userID(); !ok {
		return nil
	}

	events, stop, err := e.remote.Watch(ctx, tripsPath())
	if err != nil {
		return fmt.Errorf("failed to open trip subscription: %w", err)
	}
	e.watchMu.Lock()
	e.tripWatchStop = stop
	e.watchMu.Unlock()

	go func() {
		for ev := range events {
			e.handleTripEvent(ctx, ev)
		}
	}()

	trips, err := e.local.AllTrips(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate trips for subscriptions: %w", err)
	}
	for _, trip := range trips {
		if trip.RemoteID == "" {
			continue
		}
		if err := e.watchActivities(ctx, trip); err != nil {
			e.logger.Warn("failed to open activity subscription", "trip_id", trip.ID, "error", err)
		}
	}
	return nil
}

// Stop tears down every open subscription.
func (e *Engine) Stop() {
	e.watchMu.Lock()
	defer e.watchMu.Unlock()
	if e.tripWatchStop != nil {
		e.tripWatchStop()
		e.tripWatchStop = nil
	}
	for id, stop := range e.actWatchStops {
		stop()
		delete(e.actWatchStops, id)
	}
}

// watchActivities opens the activity subscription for one trip, keyed by its
// local id.
func (e *Engine) watchActivities(ctx context.Context, trip *tripstore.Trip) error {
	events, stop, err := e.remote.Watch(ctx, activitiesPath(trip.RemoteID))
	if err != nil {
		return err
	}

	e.watchMu.Lock()
	if old, ok := e.actWatchStops[trip.ID]; ok {
		old()
	}
	e.actWatchStops[trip.ID] = stop
	e.watchMu.Unlock()

	tripID := trip.ID
	go func() {
		for ev := range events {
			e.handleActivityEvent(ctx, tripID, ev)
		}
	}()
	return nil
}

// rewatchActivities moves the activity subscription from a replaced trip
// record onto its replacement, so listener state follows duplicate
// resolution.
func (e *Engine) rewatchActivities(ctx context.Context, oldTripID int64, fresh *tripstore.Trip) {
	e.watchMu.Lock()
	stop, hadWatch := e.actWatchStops[oldTripID]
	if hadWatch {
		stop()
		delete(e.actWatchStops, oldTripID)
	}
	e.watchMu.Unlock()

	if !hadWatch {
		return
	}
	if err := e.watchActivities(ctx, fresh); err != nil {
		e.logger.Warn("failed to re-establish activity subscription",
			"old_trip_id", oldTripID, "trip_id", fresh.ID, "error", err)
	}
}

// ingestionSuspended reports whether listener-driven local mutation is
// currently suppressed. Events keep arriving; they are dropped here so the
// subscription survives mode transitions.
func (e *Engine) ingestionSuspended() bool {
	switch e.Mode() {
	case ModeListenerPaused, ModeRemoteAuthority:
		return true
	default:
		return false
	}
}

func (e *Engine) handleTripEvent(ctx context.Context, ev ChangeEvent) {
	// Deletion race guard: an event for a document whose local deletion is
	// still propagating must not resurrect the record.
	if e.tracker.IsDeleting(ev.Doc.ID) {
		e.logger.Debug("dropping trip event for in-flight deletion", "doc", ev.Doc.ID, "type", string(ev.Type))
		return
	}
	if e.ingestionSuspended() {
		e.logger.Debug("dropping trip event, ingestion suspended", "type", string(ev.Type), "doc", ev.Doc.ID)
		return
	}

	switch ev.Type {
	case ChangeAdded, ChangeModified:
		trip, err := e.IngestTripDoc(ctx, ev.Doc)
		if err != nil {
			e.logger.Error("failed to ingest trip event", "doc", ev.Doc.ID, "error", err)
			return
		}
		if trip == nil {
			return
		}
		// A trip that just became remotely addressable needs its activity feed.
		e.watchMu.Lock()
		_, watching := e.actWatchStops[trip.ID]
		hasTripWatch := e.tripWatchStop != nil
		e.watchMu.Unlock()
		if hasTripWatch && !watching {
			if err := e.watchActivities(ctx, trip); err != nil {
				e.logger.Warn("failed to open activity subscription", "trip_id", trip.ID, "error", err)
			}
		}

	case ChangeRemoved:
		local, err := e.local.TripByRemoteID(ctx, ev.Doc.ID)
		if errors.Is(err, tripstore.ErrNotFound) {
			return
		}
		if err != nil {
			e.logger.Error("failed to resolve removed trip", "doc", ev.Doc.ID, "error", err)
			return
		}
		e.watchMu.Lock()
		if stop, ok := e.actWatchStops[local.ID]; ok {
			stop()
			delete(e.actWatchStops, local.ID)
		}
		e.watchMu.Unlock()
		if err := e.local.DeleteTrip(ctx, local.ID); err != nil {
			e.logger.Error("failed to delete trip for removed event", "trip_id", local.ID, "error", err)
		}
	}
}

func (e *Engine) handleActivityEvent(ctx context.Context, tripID int64, ev ChangeEvent) {
	// Deletion race guard: an event for a document whose local deletion is
	// still propagating must not resurrect the record.
	if e.tracker.IsDeleting(ev.Doc.ID) {
		e.logger.Debug("dropping activity event for in-flight deletion", "doc", ev.Doc.ID, "type", string(ev.Type))
		return
	}
	if e.ingestionSuspended() {
		e.logger.Debug("dropping activity event, ingestion suspended", "type", string(ev.Type), "doc", ev.Doc.ID)
		return
	}

	switch ev.Type {
	case ChangeAdded, ChangeModified:
		if _, err := e.IngestActivityDoc(ctx, tripID, ev.Doc); err != nil {
			e.logger.Error("failed to ingest activity event", "doc", ev.Doc.ID, "error", err)
		}

	case ChangeRemoved:
		local, err := e.local.ActivityByRemoteID(ctx, ev.Doc.ID)
		if errors.Is(err, tripstore.ErrNotFound) {
			return
		}
		if err != nil {
			e.logger.Error("failed to resolve removed activity", "doc", ev.Doc.ID, "error", err)
			return
		}
		if err := e.local.DeleteActivity(ctx, local.ID); err != nil {
			e.logger.Error("failed to delete activity for removed event", "activity_id", local.ID, "error", err)
		}
	}
}
