// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// PullAll lists every trip and activity document under the user's remote
// namespace and ingests each one, then runs the duplicate and orphan sweeps
// so a freshly synced store converges immediately. Ingestion is idempotent:
// pulling the same or overlapping document sets repeatedly produces no
// additional rows. Unlike mutations, an explicit fetch reports an
// authentication error when no user is signed in.
func (e *Engine) PullAll(ctx context.Context) error {
	if _, ok := e.userID(); !ok {
		return ErrNotAuthenticated
	}

	docs, err := e.remote.List(ctx, tripsPath())
	if err != nil {
		return fmt.Errorf("failed to list remote trips: %w", err)
	}
	for _, doc := range docs {
		trip, err := e.IngestTripDoc(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to ingest trip %s: %w", doc.ID, err)
		}
		if trip == nil {
			continue // skipped by spam guard
		}
		actDocs, err := e.remote.List(ctx, activitiesPath(doc.ID))
		if err != nil {
			return fmt.Errorf("failed to list remote activities for %s: %w", doc.ID, err)
		}
		for _, actDoc := range actDocs {
			if _, err := e.IngestActivityDoc(ctx, trip.ID, actDoc); err != nil {
				return fmt.Errorf("failed to ingest activity %s: %w", actDoc.ID, err)
			}
		}
	}

	if _, err := e.CleanupDuplicates(ctx); err != nil {
		return fmt.Errorf("post-pull duplicate sweep failed: %w", err)
	}
	if _, err := e.CleanupOrphans(ctx); err != nil {
		return fmt.Errorf("post-pull orphan sweep failed: %w", err)
	}
	return nil
}

// IngestTripDoc reconciles one remote trip document against the local store:
//
//  1. A local trip with the same remote id is overwritten in place, keeping
//     its local id.
//  2. Otherwise a content-similar trip (title, destination, start, end)
//     adopts the incoming remote id if it has none; if it carries a
//     different remote id the local record is a stale duplicate: it is
//     deleted and the document inserted as a fresh record (server wins).
//  3. Otherwise the document is inserted as a new trip, unless the spam
//     guard trips (too many local trips already share the title).
//
// When both sides were modified after the last sync point, the newer side
// wins field-by-field: an unsynced local row strictly newer than the
// document keeps its fields and stays unsynced so the next push publishes
// them.
//
// Returns the resulting local trip, or nil when the document was skipped.
func (e *Engine) IngestTripDoc(ctx context.Context, doc Document) (*tripstore.Trip, error) {
	// Step 1: exact remote id match.
	existing, err := e.local.TripByRemoteID(ctx, doc.ID)
	if err == nil {
		if !existing.Synced && existing.UpdatedAt > docInt64(doc.Data, fieldUpdatedAt) {
			// Local divergence is newer; keep it for the next push.
			return existing, nil
		}
		applyTripDoc(existing, doc)
		if err := e.local.UpdateTrip(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update trip in place: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, tripstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up trip by remote id: %w", err)
	}

	// Step 2: content similarity.
	similar, err := e.local.FindSimilarTrip(ctx,
		docString(doc.Data, fieldTitle),
		docString(doc.Data, fieldDestination),
		docInt64(doc.Data, fieldStartDate),
		docInt64(doc.Data, fieldEndDate))
	if err == nil {
		switch {
		case similar.RemoteID == "":
			// Created while offline, now confirmed by the server: adopt the id.
			applyTripDoc(similar, doc)
			if err := e.local.UpdateTrip(ctx, similar); err != nil {
				return nil, fmt.Errorf("failed to adopt remote id: %w", err)
			}
			return similar, nil

		case similar.RemoteID != doc.ID:
			// True duplicate from a concurrent writer; the server version wins.
			e.logger.Warn("replacing duplicate trip with server version",
				"local_id", similar.ID, "local_remote_id", similar.RemoteID, "incoming_remote_id", doc.ID)
			if err := e.local.DeleteTrip(ctx, similar.ID); err != nil {
				return nil, fmt.Errorf("failed to delete duplicate trip: %w", err)
			}
			fresh := &tripstore.Trip{}
			applyTripDoc(fresh, doc)
			if err := e.local.InsertTrip(ctx, fresh); err != nil {
				return nil, fmt.Errorf("failed to insert replacement trip: %w", err)
			}
			e.rewatchActivities(ctx, similar.ID, fresh)
			e.scheduleSweep()
			return fresh, nil

		default:
			// Same remote id; step 1 should have caught this, update anyway.
			applyTripDoc(similar, doc)
			if err := e.local.UpdateTrip(ctx, similar); err != nil {
				return nil, fmt.Errorf("failed to update similar trip: %w", err)
			}
			return similar, nil
		}
	}
	if !errors.Is(err, tripstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up similar trip: %w", err)
	}

	// Step 3: insert as new, behind the spam guard.
	title := docString(doc.Data, fieldTitle)
	count, err := e.local.CountTripsByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if count >= e.config.DuplicateTitleLimit {
		e.logger.Warn("skipping insert of remote trip, too many local trips share the title",
			"title", title, "count", count, "remote_id", doc.ID)
		return nil, nil
	}
	fresh := &tripstore.Trip{}
	applyTripDoc(fresh, doc)
	if err := e.local.InsertTrip(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to insert remote trip: %w", err)
	}
	e.scheduleSweep()
	return fresh, nil
}

// IngestActivityDoc reconciles one remote activity document scoped to the
// owning local trip. Same shape as IngestTripDoc; similarity is title
// equality plus a date-time within the configured window.
func (e *Engine) IngestActivityDoc(ctx context.Context, tripID int64, doc Document) (*tripstore.Activity, error) {
	existing, err := e.local.ActivityByRemoteID(ctx, doc.ID)
	if err == nil {
		if !existing.Synced && existing.UpdatedAt > docInt64(doc.Data, fieldUpdatedAt) {
			return existing, nil
		}
		applyActivityDoc(existing, doc)
		if err := e.local.UpdateActivity(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update activity in place: %w", err)
		}
		return existing, nil
	}
	if !errors.Is(err, tripstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up activity by remote id: %w", err)
	}

	similar, err := e.local.FindSimilarActivity(ctx, tripID,
		docString(doc.Data, fieldTitle),
		docInt64(doc.Data, fieldDateTime),
		e.config.SimilarityWindow.Milliseconds())
	if err == nil {
		switch {
		case similar.RemoteID == "":
			applyActivityDoc(similar, doc)
			if err := e.local.UpdateActivity(ctx, similar); err != nil {
				return nil, fmt.Errorf("failed to adopt remote id: %w", err)
			}
			return similar, nil

		case similar.RemoteID != doc.ID:
			e.logger.Warn("replacing duplicate activity with server version",
				"local_id", similar.ID, "local_remote_id", similar.RemoteID, "incoming_remote_id", doc.ID)
			if err := e.local.DeleteActivity(ctx, similar.ID); err != nil {
				return nil, fmt.Errorf("failed to delete duplicate activity: %w", err)
			}
			fresh := &tripstore.Activity{TripID: tripID}
			applyActivityDoc(fresh, doc)
			if err := e.local.InsertActivity(ctx, fresh); err != nil {
				return nil, fmt.Errorf("failed to insert replacement activity: %w", err)
			}
			return fresh, nil

		default:
			applyActivityDoc(similar, doc)
			if err := e.local.UpdateActivity(ctx, similar); err != nil {
				return nil, fmt.Errorf("failed to update similar activity: %w", err)
			}
			return similar, nil
		}
	}
	if !errors.Is(err, tripstore.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up similar activity: %w", err)
	}

	fresh := &tripstore.Activity{TripID: tripID}
	applyActivityDoc(fresh, doc)
	if err := e.local.InsertActivity(ctx, fresh); err != nil {
		return nil, fmt.Errorf("failed to insert remote activity: %w", err)
	}
	return fresh, nil
}

// FetchBudget pulls the budget sub-collection of a trip: the aggregate
// budget document and every expense document.
func (e *Engine) FetchBudget(ctx context.Context, tripID int64) (totalBudget float64, err error) {
	if _, ok := e.userID(); !ok {
		return 0, ErrNotAuthenticated
	}
	trip, err := e.local.TripByID(ctx, tripID)
	if err != nil {
		return 0, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip.RemoteID == "" {
		return 0, nil
	}
	docs, err := e.remote.List(ctx, budgetPath(trip.RemoteID))
	if err != nil {
		return 0, fmt.Errorf("failed to list budget documents: %w", err)
	}
	for _, doc := range docs {
		if doc.ID == budgetDocID {
			totalBudget = docFloat64(doc.Data, fieldTotalBudget)
			continue
		}
		if err := e.ingestExpenseDoc(ctx, tripID, doc); err != nil {
			return 0, err
		}
	}
	return totalBudget, nil
}

func (e *Engine) ingestExpenseDoc(ctx context.Context, tripID int64, doc Document) error {
	existing, err := e.local.ExpenseByRemoteID(ctx, doc.ID)
	if err == nil {
		applyExpenseDoc(existing, doc)
		existing.TripID = tripID
		if err := e.local.UpdateExpense(ctx, existing); err != nil {
			return fmt.Errorf("failed to update expense in place: %w", err)
		}
		return nil
	}
	if !errors.Is(err, tripstore.ErrNotFound) {
		return fmt.Errorf("failed to look up expense by remote id: %w", err)
	}
	fresh := &tripstore.Expense{TripID: tripID}
	applyExpenseDoc(fresh, doc)
	if err := e.local.InsertExpense(ctx, fresh); err != nil {
		return fmt.Errorf("failed to insert remote expense: %w", err)
	}
	return nil
}
