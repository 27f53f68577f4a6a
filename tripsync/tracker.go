// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"sync"
	"time"
)

// DeletionTracker is an in-memory registry of remote ids whose local
// deletion is still propagating. While an id is tracked, incoming change-feed
// events for it are dropped so a stale MODIFIED event cannot resurrect a
// record the user just deleted. Entries expire after ttl regardless of
// whether the remote delete confirmed, so a stuck key cannot block future
// legitimate updates to a re-created document with the same id.
type DeletionTracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewDeletionTracker creates a tracker with the given expiry window.
func NewDeletionTracker(ttl time.Duration) *DeletionTracker {
	return &DeletionTracker{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkDeleting records that a deletion of key has started.
func (t *DeletionTracker) MarkDeleting(key string) {
	if key == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = t.now()
}

// IsDeleting reports whether key is inside its deletion window. Expired
// entries are purged before the lookup.
func (t *DeletionTracker) IsDeleting(key string) bool {
	if key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.purgeLocked()
	_, ok := t.entries[key]
	return ok
}

// Clear removes key, typically after the remote delete confirmed.
func (t *DeletionTracker) Clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Len reports the number of live entries after purging.
func (t *DeletionTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.purgeLocked()
	return len(t.entries)
}

func (t *DeletionTracker) purgeLocked() {
	cutoff := t.now().Add(-t.ttl)
	for key, started := range t.entries {
		if started.Before(cutoff) {
			delete(t.entries, key)
		}
	}
}
