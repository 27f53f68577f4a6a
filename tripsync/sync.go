// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"fmt"
)

// SyncAll pushes every unsynced trip, then fans out the unsynced activities
// and expenses. One aggregate result; individual failures do not stop the
// rest of the batch.
func (e *Engine) SyncAll(ctx context.Context) error {
	if _, ok := e.userID(); !ok {
		return nil
	}

	trips, err := e.local.UnsyncedTrips(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate unsynced trips: %w", err)
	}
	// Trips go first and sequentially: activities and expenses need their
	// parent's remote id before they can push.
	var failures []string
	for _, trip := range trips {
		if err := e.PushTrip(ctx, trip); err != nil {
			failures = append(failures, fmt.Sprintf("trip %q: %v", trip.Title, err))
		}
	}

	if err := e.SyncAllActivities(ctx); err != nil {
		failures = append(failures, err.Error())
	}
	if err := e.SyncUnsyncedExpenses(ctx); err != nil {
		failures = append(failures, err.Error())
	}
	if len(failures) > 0 {
		// Trips count individually; each dependent batch counts as one op.
		total := len(trips) + 2
		return &PartialError{Succeeded: total - len(failures), Total: total, Failures: failures}
	}
	return nil
}

// SyncAllActivities pushes every unsynced activity concurrently and reports
// one aggregate result.
func (e *Engine) SyncAllActivities(ctx context.Context) error {
	if _, ok := e.userID(); !ok {
		return nil
	}
	activities, err := e.local.UnsyncedActivities(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate unsynced activities: %w", err)
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

// SyncUnsyncedExpenses pushes every unsynced expense concurrently.
func (e *Engine) SyncUnsyncedExpenses(ctx context.Context) error {
	if _, ok := e.userID(); !ok {
		return nil
	}
	expenses, err := e.local.UnsyncedExpenses(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate unsynced expenses: %w", err)
	}
	return RunBatch(len(expenses), func(b *Batch) {
		for _, exp := range expenses {
			exp := exp
			e.submit(func() {
				if err := e.PushExpense(ctx, exp); err != nil {
					b.Fail(fmt.Sprintf("expense %q: %v", exp.Title, err))
					return
				}
				b.OK()
			})
		}
	})
}

// BudgetStatus compares local and remote expense counts for one trip.
type BudgetStatus struct {
	LocalExpenses  int
	RemoteExpenses int
	HasBudgetDoc   bool
	InSync         bool
}

// BudgetSyncStatus reports whether the trip's budget sub-collection matches
// the local rows. Requires a signed-in user; status against a remote you
// cannot see is meaningless.
func (e *Engine) BudgetSyncStatus(ctx context.Context, tripID int64) (*BudgetStatus, error) {
	if _, ok := e.userID(); !ok {
		return nil, ErrNotAuthenticated
	}
	trip, err := e.local.TripByID(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	local, err := e.local.CountExpensesForTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to count local expenses: %w", err)
	}

	status := &BudgetStatus{LocalExpenses: local}
	if trip.RemoteID == "" {
		status.InSync = local == 0
		return status, nil
	}

	docs, err := e.remote.List(ctx, budgetPath(trip.RemoteID))
	if err != nil {
		return nil, fmt.Errorf("failed to list budget documents: %w", err)
	}
	for _, doc := range docs {
		if doc.ID == budgetDocID {
			status.HasBudgetDoc = true
			continue
		}
		status.RemoteExpenses++
	}
	status.InSync = status.LocalExpenses == status.RemoteExpenses
	return status, nil
}
