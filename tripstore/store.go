// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

// Package tripstore is the SQLite-backed local store for trips, activities
// and budget entries. The local store is the source of truth for the UI;
// the sync engine in package tripsync reads and writes it around remote
// operations.
package tripstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps a SQLite database holding the three entity tables.
// Write operations are serialized to prevent SQLite locking issues.
type Store struct {
	DB      *sql.DB
	logger  *slog.Logger
	writeMu sync.Mutex

	notifier *notifier
}

// Open opens (or creates) the database at path and initializes the schema.
// Use ":memory:" for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{DB: db, logger: logger, notifier: newNotifier()}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.notifier.close()
	return s.DB.Close()
}

func (s *Store) initialize() error {
	if _, err := s.DB.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.DB.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	tables := []string{
		`CREATE TABLE IF NOT EXISTS trips (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			remote_id    TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			destination  TEXT NOT NULL DEFAULT '',
			start_date   INTEGER NOT NULL DEFAULT 0,
			end_date     INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			synced       INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS activities (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			trip_id      INTEGER NOT NULL,
			remote_id    TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			location     TEXT NOT NULL DEFAULT '',
			date_time    INTEGER NOT NULL DEFAULT 0,
			day_number   INTEGER NOT NULL DEFAULT 0,
			image_url    TEXT NOT NULL DEFAULT '',
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			synced       INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			trip_id      INTEGER NOT NULL,
			remote_id    TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL,
			amount       REAL NOT NULL DEFAULT 0,
			category     TEXT NOT NULL DEFAULT '',
			note         TEXT NOT NULL DEFAULT '',
			timestamp    INTEGER NOT NULL DEFAULT 0,
			created_at   INTEGER NOT NULL,
			updated_at   INTEGER NOT NULL,
			synced       INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_trips_remote_id ON trips(remote_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_trip_id ON activities(trip_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_remote_id ON activities(remote_id)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_trip_id ON expenses(trip_id)`,
	}
	for _, table := range tables {
		if _, err := s.DB.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
