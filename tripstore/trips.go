// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("tripstore: not found")

const tripColumns = `id, remote_id, title, destination, start_date, end_date, created_at, updated_at, synced`

func scanTrip(row interface{ Scan(...any) error }) (*Trip, error) {
	var t Trip
	var synced int
	err := row.Scan(&t.ID, &t.RemoteID, &t.Title, &t.Destination, &t.StartDate,
		&t.EndDate, &t.CreatedAt, &t.UpdatedAt, &synced)
	if err != nil {
		return nil, err
	}
	t.Synced = synced != 0
	return &t, nil
}

// InsertTrip inserts a new trip and assigns its local id synchronously.
func (s *Store) InsertTrip(ctx context.Context, t *Trip) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := nowMillis()
	if t.CreatedAt == 0 {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO trips (remote_id, title, destination, start_date, end_date, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.RemoteID, t.Title, t.Destination, t.StartDate, t.EndDate, t.CreatedAt, t.UpdatedAt, boolToInt(t.Synced))
	if err != nil {
		return fmt.Errorf("failed to insert trip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trip id: %w", err)
	}
	t.ID = id
	s.notifier.publish(Change{Entity: EntityTrip, Op: OpInsert, LocalID: id})
	return nil
}

// UpdateTrip overwrites all mutable fields of the trip row.
func (s *Store) UpdateTrip(ctx context.Context, t *Trip) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	t.UpdatedAt = nowMillis()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE trips SET remote_id=?, title=?, destination=?, start_date=?, end_date=?, updated_at=?, synced=?
		WHERE id=?
	`, t.RemoteID, t.Title, t.Destination, t.StartDate, t.EndDate, t.UpdatedAt, boolToInt(t.Synced), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.notifier.publish(Change{Entity: EntityTrip, Op: OpUpdate, LocalID: t.ID})
	return nil
}

// SetTripRemoteID writes back the server-assigned id and marks the row synced.
func (s *Store) SetTripRemoteID(ctx context.Context, id int64, remoteID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `
		UPDATE trips SET remote_id=?, synced=1, updated_at=? WHERE id=?
	`, remoteID, nowMillis(), id)
	if err != nil {
		return fmt.Errorf("failed to set trip remote id: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityTrip, Op: OpUpdate, LocalID: id})
	return nil
}

// MarkTripSynced flips the synced flag without touching content fields.
func (s *Store) MarkTripSynced(ctx context.Context, id int64, synced bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `UPDATE trips SET synced=? WHERE id=?`, boolToInt(synced), id)
	if err != nil {
		return fmt.Errorf("failed to mark trip synced: %w", err)
	}
	return nil
}

// DeleteTrip removes the trip row together with its activities and expenses,
// atomically. The orphan sweep in the engine is the safety net for rows left
// behind by interrupted older versions.
func (s *Store) DeleteTrip(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM activities WHERE trip_id=?`,
		`DELETE FROM expenses WHERE trip_id=?`,
		`DELETE FROM trips WHERE id=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete trip: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trip delete: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityTrip, Op: OpDelete, LocalID: id})
	return nil
}

// TripByID returns the trip with the given local id.
func (s *Store) TripByID(ctx context.Context, id int64) (*Trip, error) {
	t, err := scanTrip(s.DB.QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trip: %w", err)
	}
	return t, nil
}

// TripByRemoteID returns the trip holding the given non-empty remote id.
func (s *Store) TripByRemoteID(ctx context.Context, remoteID string) (*Trip, error) {
	if remoteID == "" {
		return nil, ErrNotFound
	}
	t, err := scanTrip(s.DB.QueryRowContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE remote_id=? LIMIT 1`, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trip by remote id: %w", err)
	}
	return t, nil
}

// AllTrips returns every trip ordered by creation time.
func (s *Store) AllTrips(ctx context.Context) ([]*Trip, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trips: %w", err)
	}
	return trips, nil
}

// UnsyncedTrips returns trips whose local state has not reached the server.
func (s *Store) UnsyncedTrips(ctx context.Context) ([]*Trip, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE synced=0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced trips: %w", err)
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// FindSimilarTrip returns a trip matching the semantic key fields exactly
// (title, destination, start date, end date), or ErrNotFound.
func (s *Store) FindSimilarTrip(ctx context.Context, title, destination string, startDate, endDate int64) (*Trip, error) {
	t, err := scanTrip(s.DB.QueryRowContext(ctx, `
		SELECT `+tripColumns+` FROM trips
		WHERE title=? AND destination=? AND start_date=? AND end_date=?
		LIMIT 1
	`, title, destination, startDate, endDate))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query similar trip: %w", err)
	}
	return t, nil
}

// CountTripsByTitle counts trips sharing the exact title. Used by the ingest
// spam guard.
func (s *Store) CountTripsByTitle(ctx context.Context, title string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM trips WHERE title=?`, title).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count trips by title: %w", err)
	}
	return n, nil
}
