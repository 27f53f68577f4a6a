// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const activityColumns = `id, trip_id, remote_id, title, description, location, date_time, day_number, image_url, created_at, updated_at, synced`

func scanActivity(row interface{ Scan(...any) error }) (*Activity, error) {
	var a Activity
	var synced int
	err := row.Scan(&a.ID, &a.TripID, &a.RemoteID, &a.Title, &a.Description,
		&a.Location, &a.DateTime, &a.DayNumber, &a.ImageURL, &a.CreatedAt,
		&a.UpdatedAt, &synced)
	if err != nil {
		return nil, err
	}
	a.Synced = synced != 0
	return &a, nil
}

// InsertActivity inserts a new activity. The schema carries no foreign key
// to trips; rows whose owning trip is gone are removed by the orphan sweep.
func (s *Store) InsertActivity(ctx context.Context, a *Activity) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := nowMillis()
	if a.CreatedAt == 0 {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO activities (trip_id, remote_id, title, description, location, date_time, day_number, image_url, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.TripID, a.RemoteID, a.Title, a.Description, a.Location, a.DateTime,
		a.DayNumber, a.ImageURL, a.CreatedAt, a.UpdatedAt, boolToInt(a.Synced))
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get activity id: %w", err)
	}
	a.ID = id
	s.notifier.publish(Change{Entity: EntityActivity, Op: OpInsert, LocalID: id, TripID: a.TripID})
	return nil
}

// UpdateActivity overwrites all mutable fields of the activity row.
func (s *Store) UpdateActivity(ctx context.Context, a *Activity) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	a.UpdatedAt = nowMillis()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE activities SET trip_id=?, remote_id=?, title=?, description=?, location=?, date_time=?, day_number=?, image_url=?, updated_at=?, synced=?
		WHERE id=?
	`, a.TripID, a.RemoteID, a.Title, a.Description, a.Location, a.DateTime,
		a.DayNumber, a.ImageURL, a.UpdatedAt, boolToInt(a.Synced), a.ID)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.notifier.publish(Change{Entity: EntityActivity, Op: OpUpdate, LocalID: a.ID, TripID: a.TripID})
	return nil
}

// SetActivityRemoteID writes back the server-assigned id and marks the row synced.
func (s *Store) SetActivityRemoteID(ctx context.Context, id int64, remoteID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `
		UPDATE activities SET remote_id=?, synced=1, updated_at=? WHERE id=?
	`, remoteID, nowMillis(), id)
	if err != nil {
		return fmt.Errorf("failed to set activity remote id: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityActivity, Op: OpUpdate, LocalID: id})
	return nil
}

// DeleteActivity removes the activity row.
func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `DELETE FROM activities WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityActivity, Op: OpDelete, LocalID: id})
	return nil
}

// ActivityByID returns the activity with the given local id.
func (s *Store) ActivityByID(ctx context.Context, id int64) (*Activity, error) {
	a, err := scanActivity(s.DB.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	return a, nil
}

// ActivityByRemoteID returns the activity holding the given remote id.
func (s *Store) ActivityByRemoteID(ctx context.Context, remoteID string) (*Activity, error) {
	if remoteID == "" {
		return nil, ErrNotFound
	}
	a, err := scanActivity(s.DB.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE remote_id=? LIMIT 1`, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query activity by remote id: %w", err)
	}
	return a, nil
}

// ActivitiesForTrip returns all activities of a trip ordered by date and day.
func (s *Store) ActivitiesForTrip(ctx context.Context, tripID int64) ([]*Activity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE trip_id=? ORDER BY day_number, date_time`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// AllActivities returns every activity.
func (s *Store) AllActivities(ctx context.Context) ([]*Activity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities ORDER BY trip_id, date_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// UnsyncedActivities returns activities whose local state has not reached the server.
func (s *Store) UnsyncedActivities(ctx context.Context) ([]*Activity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+activityColumns+` FROM activities WHERE synced=0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

// FindSimilarActivity returns an activity of the trip whose title matches
// exactly and whose date-time lies within the window, or ErrNotFound.
func (s *Store) FindSimilarActivity(ctx context.Context, tripID int64, title string, dateTime, windowMillis int64) (*Activity, error) {
	a, err := scanActivity(s.DB.QueryRowContext(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE trip_id=? AND title=? AND date_time BETWEEN ? AND ?
		LIMIT 1
	`, tripID, title, dateTime-windowMillis, dateTime+windowMillis))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query similar activity: %w", err)
	}
	return a, nil
}

// ReparentActivity moves an activity under a different trip, clearing its
// remote id: under the new parent it is a new document remotely.
func (s *Store) ReparentActivity(ctx context.Context, id, newTripID int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `
		UPDATE activities SET trip_id=?, remote_id='', synced=0, updated_at=? WHERE id=?
	`, newTripID, nowMillis(), id)
	if err != nil {
		return fmt.Errorf("failed to reparent activity: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityActivity, Op: OpUpdate, LocalID: id, TripID: newTripID})
	return nil
}

// OrphanedActivities returns activities whose owning trip row is gone.
func (s *Store) OrphanedActivities(ctx context.Context) ([]*Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+activityColumns+` FROM activities a
		WHERE NOT EXISTS (SELECT 1 FROM trips t WHERE t.id = a.trip_id)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned activities: %w", err)
	}
	defer rows.Close()

	var activities []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
