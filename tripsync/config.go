// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import "time"

// Mode selects how the engine treats remote-driven local mutation.
// It replaces the mutable process-wide toggles of earlier designs with an
// explicit state selected at construction or via SetMode.
type Mode int

const (
	// ModeNormal applies listener events to the local store.
	ModeNormal Mode = iota
	// ModeListenerPaused keeps subscriptions open but ignores their events,
	// used while a bulk local rewrite is in progress.
	ModeListenerPaused
	// ModeRemoteAuthority suppresses engine-driven local mutation entirely in
	// favor of remote-store authority.
	ModeRemoteAuthority
)

// Config holds tunables for the reconciliation engine.
type Config struct {
	// PushTimeout guards every remote push of an existing document.
	PushTimeout time.Duration
	// FirstInsertTimeout guards the first remote add of an entity, which the
	// server may take longer to acknowledge.
	FirstInsertTimeout time.Duration
	// SimilarityWindow is the date-time tolerance when matching activities by
	// content.
	SimilarityWindow time.Duration
	// DeletionTTL bounds the exclusion window of the deletion tracker.
	DeletionTTL time.Duration
	// CleanupDelay is how long the engine waits after ingest inserts a new
	// trip before running the deferred duplicate sweep.
	CleanupDelay time.Duration
	// DuplicateTitleLimit is the ingest spam guard: once this many local
	// trips share a title, further inserts with that title are skipped.
	DuplicateTitleLimit int
	// Workers bounds the pool executing background remote work.
	Workers int
	// Mode is the initial engine mode.
	Mode Mode
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		PushTimeout:         15 * time.Second,
		FirstInsertTimeout:  30 * time.Second,
		SimilarityWindow:    60 * time.Second,
		DeletionTTL:         5 * time.Second,
		CleanupDelay:        2 * time.Second,
		DuplicateTitleLimit: 3,
		Workers:             4,
		Mode:                ModeNormal,
	}
}
