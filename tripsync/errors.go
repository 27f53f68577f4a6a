// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAuthenticated is returned by explicit fetch and sync-status
// operations when no user is signed in. Mutating operations do not return
// it; they complete locally and skip the remote leg.
var ErrNotAuthenticated = errors.New("tripsync: not authenticated")

// SyncPendingError reports that a mutation is durable locally but its remote
// push did not complete (network failure or timeout). The entity stays
// unsynced so a later push can finish the job.
type SyncPendingError struct {
	Entity string
	Err    error
}

func (e *SyncPendingError) Error() string {
	return fmt.Sprintf("%s saved locally, sync pending: %v", e.Entity, e.Err)
}

func (e *SyncPendingError) Unwrap() error { return e.Err }

// PartialError aggregates per-item failures of a fan-out batch into the
// single terminal result the coordinator delivers.
type PartialError struct {
	Succeeded int
	Total     int
	Failures  []string
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d/%d succeeded: %s", e.Succeeded, e.Total, strings.Join(e.Failures, "; "))
}
