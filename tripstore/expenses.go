// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const expenseColumns = `id, trip_id, remote_id, title, amount, category, note, timestamp, created_at, updated_at, synced`

func scanExpense(row interface{ Scan(...any) error }) (*Expense, error) {
	var e Expense
	var synced int
	err := row.Scan(&e.ID, &e.TripID, &e.RemoteID, &e.Title, &e.Amount,
		&e.Category, &e.Note, &e.Timestamp, &e.CreatedAt, &e.UpdatedAt, &synced)
	if err != nil {
		return nil, err
	}
	e.Synced = synced != 0
	return &e, nil
}

// InsertExpense inserts a new budget entry.
func (s *Store) InsertExpense(ctx context.Context, e *Expense) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := nowMillis()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Timestamp == 0 {
		e.Timestamp = now
	}

	res, err := s.DB.ExecContext(ctx, `
		INSERT INTO expenses (trip_id, remote_id, title, amount, category, note, timestamp, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.TripID, e.RemoteID, e.Title, e.Amount, e.Category, e.Note, e.Timestamp,
		e.CreatedAt, e.UpdatedAt, boolToInt(e.Synced))
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get expense id: %w", err)
	}
	e.ID = id
	s.notifier.publish(Change{Entity: EntityExpense, Op: OpInsert, LocalID: id, TripID: e.TripID})
	return nil
}

// UpdateExpense overwrites all mutable fields of the expense row.
func (s *Store) UpdateExpense(ctx context.Context, e *Expense) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	e.UpdatedAt = nowMillis()
	res, err := s.DB.ExecContext(ctx, `
		UPDATE expenses SET trip_id=?, remote_id=?, title=?, amount=?, category=?, note=?, timestamp=?, updated_at=?, synced=?
		WHERE id=?
	`, e.TripID, e.RemoteID, e.Title, e.Amount, e.Category, e.Note, e.Timestamp,
		e.UpdatedAt, boolToInt(e.Synced), e.ID)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.notifier.publish(Change{Entity: EntityExpense, Op: OpUpdate, LocalID: e.ID, TripID: e.TripID})
	return nil
}

// SetExpenseRemoteID writes back the server-assigned id and marks the row synced.
func (s *Store) SetExpenseRemoteID(ctx context.Context, id int64, remoteID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `
		UPDATE expenses SET remote_id=?, synced=1, updated_at=? WHERE id=?
	`, remoteID, nowMillis(), id)
	if err != nil {
		return fmt.Errorf("failed to set expense remote id: %w", err)
	}
	return nil
}

// DeleteExpense removes the expense row.
func (s *Store) DeleteExpense(ctx context.Context, id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.DB.ExecContext(ctx, `DELETE FROM expenses WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	s.notifier.publish(Change{Entity: EntityExpense, Op: OpDelete, LocalID: id})
	return nil
}

// ExpenseByID returns the expense with the given local id.
func (s *Store) ExpenseByID(ctx context.Context, id int64) (*Expense, error) {
	e, err := scanExpense(s.DB.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query expense: %w", err)
	}
	return e, nil
}

// ExpenseByRemoteID returns the expense holding the given remote id.
func (s *Store) ExpenseByRemoteID(ctx context.Context, remoteID string) (*Expense, error) {
	if remoteID == "" {
		return nil, ErrNotFound
	}
	e, err := scanExpense(s.DB.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE remote_id=? LIMIT 1`, remoteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query expense by remote id: %w", err)
	}
	return e, nil
}

// ExpensesForTrip returns all expenses of a trip, newest first.
func (s *Store) ExpensesForTrip(ctx context.Context, tripID int64) ([]*Expense, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE trip_id=? ORDER BY timestamp DESC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// UnsyncedExpenses returns budget entries not yet pushed to the server.
func (s *Store) UnsyncedExpenses(ctx context.Context) ([]*Expense, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE synced=0 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// CountExpensesForTrip reports the number of expense rows owned by a trip.
func (s *Store) CountExpensesForTrip(ctx context.Context, tripID int64) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE trip_id=?`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return n, nil
}
