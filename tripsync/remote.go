// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import (
	"context"
	"fmt"
)

// Document is one remote record: a server-assigned id plus a flat field map.
type Document struct {
	ID   string
	Data map[string]any
}

// ChangeType tags a change-feed event.
type ChangeType string

const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeModified ChangeType = "MODIFIED"
	ChangeRemoved  ChangeType = "REMOVED"
)

// ChangeEvent is one discrete mutation delivered by a collection subscription.
type ChangeEvent struct {
	Type ChangeType
	Path string
	Doc  Document
}

// RemoteStore is the hierarchical document store the engine synchronizes
// with. Paths are relative to the authenticated user's namespace, e.g.
// "trips" or "trips/{tripID}/activities". Set uses merge semantics: fields
// absent from data are preserved on the server.
type RemoteStore interface {
	Add(ctx context.Context, path string, data map[string]any) (id string, err error)
	Set(ctx context.Context, path, id string, data map[string]any) error
	Get(ctx context.Context, path, id string) (Document, error)
	Delete(ctx context.Context, path, id string) error
	List(ctx context.Context, path string) ([]Document, error)

	// Watch opens a standing subscription on a collection. Events arrive on
	// the returned channel until ctx is cancelled or stop is called; the
	// channel is closed afterwards.
	Watch(ctx context.Context, path string) (events <-chan ChangeEvent, stop func(), err error)
}

// AssetStore uploads binary blobs and returns a stable URL for them.
type AssetStore interface {
	Upload(ctx context.Context, localPath string) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// Identity resolves the caller's stable identity. ok is false when no user is
// signed in, which switches the engine into pure local mode.
type Identity interface {
	UserID() (id string, ok bool)
}

// IdentityFunc adapts a function to the Identity interface.
type IdentityFunc func() (string, bool)

func (f IdentityFunc) UserID() (string, bool) { return f() }

func tripsPath() string { return "trips" }

func activitiesPath(tripRemoteID string) string {
	return fmt.Sprintf("trips/%s/activities", tripRemoteID)
}

func budgetPath(tripRemoteID string) string {
	return fmt.Sprintf("trips/%s/budget", tripRemoteID)
}

// budgetDocID is the fixed document id holding a trip's aggregate budget,
// stored alongside the expense documents in the budget sub-collection.
const budgetDocID = "tripBudget"
