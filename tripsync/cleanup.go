// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"fmt"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// CleanupDuplicates converges the local store onto one row per logical trip.
// Two passes:
//
//  1. Trips with identical content (title, destination, start, end) collapse
//     onto a single survivor. A trip holding a remote id beats one without;
//     among equals the newer creation wins. Activities of the losers are
//     re-parented onto the survivor unless it already holds an activity with
//     the same title, exact date-time and description.
//  2. Trips sharing the same remote id (a listener/push race can briefly
//     produce these) collapse onto the most recently updated one.
//
// Returns the number of trip rows removed.
func (e *Engine) CleanupDuplicates(ctx context.Context) (int, error) {
	trips, err := e.local.AllTrips(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate trips: %w", err)
	}

	removed := 0

	byContent := make(map[string][]*tripstore.Trip)
	for _, t := range trips {
		key := t.ContentKey()
		byContent[key] = append(byContent[key], t)
	}
	for _, group := range byContent {
		if len(group) < 2 {
			continue
		}
		winner := pickContentWinner(group)
		for _, loser := range group {
			if loser.ID == winner.ID {
				continue
			}
			if err := e.absorbTrip(ctx, winner, loser); err != nil {
				return removed, err
			}
			removed++
		}
	}

	// Second pass over what survived.
	trips, err = e.local.AllTrips(ctx)
	if err != nil {
		return removed, fmt.Errorf("failed to re-enumerate trips: %w", err)
	}
	byRemote := make(map[string][]*tripstore.Trip)
	for _, t := range trips {
		if t.RemoteID == "" {
			continue
		}
		byRemote[t.RemoteID] = append(byRemote[t.RemoteID], t)
	}
	for _, group := range byRemote {
		if len(group) < 2 {
			continue
		}
		winner := group[0]
		for _, t := range group[1:] {
			if t.UpdatedAt > winner.UpdatedAt ||
				(t.UpdatedAt == winner.UpdatedAt && t.ID > winner.ID) {
				winner = t
			}
		}
		for _, loser := range group {
			if loser.ID == winner.ID {
				continue
			}
			if err := e.absorbTrip(ctx, winner, loser); err != nil {
				return removed, err
			}
			removed++
		}
	}

	if removed > 0 {
		e.logger.Info("duplicate cleanup removed trips", "count", removed)
	}
	return removed, nil
}

// pickContentWinner prefers the remotely confirmed trip, then the most
// recently created one.
func pickContentWinner(group []*tripstore.Trip) *tripstore.Trip {
	winner := group[0]
	for _, t := range group[1:] {
		switch {
		case t.RemoteID != "" && winner.RemoteID == "":
			winner = t
		case t.RemoteID == "" && winner.RemoteID != "":
		case t.CreatedAt > winner.CreatedAt:
			winner = t
		}
	}
	return winner
}

// absorbTrip moves the loser's activities onto the winner (skipping ones the
// winner already holds) and deletes the loser. Re-parented activities drop
// their remote id so the next push re-homes them under the winner's document.
func (e *Engine) absorbTrip(ctx context.Context, winner, loser *tripstore.Trip) error {
	winnerActs, err := e.local.ActivitiesForTrip(ctx, winner.ID)
	if err != nil {
		return fmt.Errorf("failed to load winner activities: %w", err)
	}
	loserActs, err := e.local.ActivitiesForTrip(ctx, loser.ID)
	if err != nil {
		return fmt.Errorf("failed to load loser activities: %w", err)
	}

	for _, act := range loserActs {
		if hasMatchingActivity(winnerActs, act) {
			continue
		}
		if err := e.local.ReparentActivity(ctx, act.ID, winner.ID); err != nil {
			return fmt.Errorf("failed to re-parent activity %d: %w", act.ID, err)
		}
	}

	e.logger.Warn("absorbing duplicate trip",
		"winner_id", winner.ID, "loser_id", loser.ID,
		"winner_remote_id", winner.RemoteID, "loser_remote_id", loser.RemoteID)
	if err := e.local.DeleteTrip(ctx, loser.ID); err != nil {
		return fmt.Errorf("failed to delete duplicate trip %d: %w", loser.ID, err)
	}
	return nil
}

func hasMatchingActivity(haystack []*tripstore.Activity, needle *tripstore.Activity) bool {
	for _, a := range haystack {
		if a.Title == needle.Title && a.DateTime == needle.DateTime && a.Description == needle.Description {
			return true
		}
	}
	return false
}

// CleanupOrphans deletes activities whose owning trip no longer exists.
// Cascading deletes normally prevent orphans; this sweep is the safety net
// for rows left behind by interrupted multi-step operations. Returns the
// number of rows removed.
func (e *Engine) CleanupOrphans(ctx context.Context) (int, error) {
	orphans, err := e.local.OrphanedActivities(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate orphaned activities: %w", err)
	}
	for _, act := range orphans {
		if err := e.local.DeleteActivity(ctx, act.ID); err != nil {
			return 0, fmt.Errorf("failed to delete orphaned activity %d: %w", act.ID, err)
		}
	}
	if len(orphans) > 0 {
		e.logger.Info("orphan cleanup removed activities", "count", len(orphans))
	}
	return len(orphans), nil
}
