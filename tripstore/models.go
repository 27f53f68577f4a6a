// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripstore

import (
	"strconv"
	"strings"
)

// Trip is a locally stored trip. ID is the local rowid; RemoteID is assigned
// by the document server on first successful push and never changes afterwards
// (except when duplicate resolution replaces the whole record).
type Trip struct {
	ID          int64
	RemoteID    string
	Title       string
	Destination string
	StartDate   int64 // unix millis
	EndDate     int64 // unix millis
	CreatedAt   int64
	UpdatedAt   int64
	Synced      bool
}

// Activity belongs to exactly one local trip. ImageURL holds either a remote
// https URL or a pending local file path that still needs an asset upload.
type Activity struct {
	ID          int64
	TripID      int64
	RemoteID    string
	Title       string
	Description string
	Location    string
	DateTime    int64 // unix millis
	DayNumber   int
	ImageURL    string
	CreatedAt   int64
	UpdatedAt   int64
	Synced      bool
}

// Expense is a budget entry owned by a trip.
type Expense struct {
	ID        int64
	TripID    int64
	RemoteID  string
	Title     string
	Amount    float64
	Category  string
	Note      string
	Timestamp int64
	CreatedAt int64
	UpdatedAt int64
	Synced    bool
}

// HasRemoteID reports whether the trip is remotely addressable.
func (t *Trip) HasRemoteID() bool { return t.RemoteID != "" }

// HasRemoteID reports whether the activity is remotely addressable.
func (a *Activity) HasRemoteID() bool { return a.RemoteID != "" }

// ContentKey returns the normalized semantic key used for duplicate grouping:
// case/whitespace-insensitive title and destination plus the date range.
func (t *Trip) ContentKey() string {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
	return norm(t.Title) + "|" + norm(t.Destination) + "|" +
		strconv.FormatInt(t.StartDate, 10) + "|" + strconv.FormatInt(t.EndDate, 10)
}

// HasPendingImage reports whether the activity carries a local asset path that
// has not been uploaded yet. Remote URLs start with http(s).
func (a *Activity) HasPendingImage() bool {
	if a.ImageURL == "" {
		return false
	}
	return !strings.HasPrefix(a.ImageURL, "http://") && !strings.HasPrefix(a.ImageURL, "https://")
}
