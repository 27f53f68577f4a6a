// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDocNotFound is returned for lookups of documents that do not exist.
var ErrDocNotFound = errors.New("document not found")

// WireDoc is a document as it crosses the REST and websocket APIs.
type WireDoc struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// WireEvent is one change-feed entry as it crosses the websocket API.
type WireEvent struct {
	Type string  `json:"type"`
	Path string  `json:"path"`
	Doc  WireDoc `json:"doc"`
}

const (
	EventAdded    = "ADDED"
	EventModified = "MODIFIED"
	EventRemoved  = "REMOVED"
)

// Service stores per-user hierarchical documents. Paths are collection paths
// relative to the user's namespace ("trips", "trips/{id}/activities",
// "trips/{id}/budget"); the user id scopes every query so one user can never
// see another's documents.
type Service struct {
	db     Querier
	hub    *Hub
	logger *slog.Logger
}

func NewService(db Querier, hub *Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, hub: hub, logger: logger}
}

// Add stores a new document under a server-generated id.
func (s *Service) Add(ctx context.Context, userID, path string, data map[string]any) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, user_id, path, payload, updated_at)
		VALUES ($1,$2,$3,$4,now())
	`, id, userID, path, payload)
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	s.publish(userID, path, WireEvent{Type: EventAdded, Path: path, Doc: WireDoc{ID: id, Data: data}})
	return id, nil
}

// Set writes a document under a caller-chosen id with RFC 7386 merge
// semantics: fields absent from data keep their stored values, fields set to
// null are removed. A missing document is created.
func (s *Service) Set(ctx context.Context, userID, path, id string, data map[string]any) error {
	patch, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	current := []byte(`{}`)
	existed := true
	err = s.db.QueryRow(ctx, `
		SELECT payload FROM documents WHERE user_id=$1 AND path=$2 AND id=$3
	`, userID, path, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		existed = false
		current = []byte(`{}`)
	} else if err != nil {
		return fmt.Errorf("failed to load document for merge: %w", err)
	}

	merged, err := jsonpatch.MergePatch(current, patch)
	if err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO documents (id, user_id, path, payload, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (user_id, path, id)
		DO UPDATE SET payload=EXCLUDED.payload, updated_at=now()
	`, id, userID, path, merged)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	var mergedData map[string]any
	if err := json.Unmarshal(merged, &mergedData); err != nil {
		return fmt.Errorf("failed to decode merged document: %w", err)
	}
	eventType := EventModified
	if !existed {
		eventType = EventAdded
	}
	s.publish(userID, path, WireEvent{Type: eventType, Path: path, Doc: WireDoc{ID: id, Data: mergedData}})
	return nil
}

// Get loads one document.
func (s *Service) Get(ctx context.Context, userID, path, id string) (WireDoc, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, `
		SELECT payload FROM documents WHERE user_id=$1 AND path=$2 AND id=$3
	`, userID, path, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return WireDoc{}, ErrDocNotFound
	}
	if err != nil {
		return WireDoc{}, fmt.Errorf("failed to load document: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil {
		return WireDoc{}, fmt.Errorf("failed to decode document: %w", err)
	}
	return WireDoc{ID: id, Data: data}, nil
}

// Delete removes one document. Deleting a missing document succeeds.
func (s *Service) Delete(ctx context.Context, userID, path, id string) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM documents WHERE user_id=$1 AND path=$2 AND id=$3
	`, userID, path, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.publish(userID, path, WireEvent{Type: EventRemoved, Path: path, Doc: WireDoc{ID: id}})
	}
	return nil
}

// List returns every document in a collection in insertion order.
func (s *Service) List(ctx context.Context, userID, path string) ([]WireDoc, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, payload FROM documents WHERE user_id=$1 AND path=$2 ORDER BY seq
	`, userID, path)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []WireDoc
	for rows.Next() {
		var doc WireDoc
		var payload []byte
		if err := rows.Scan(&doc.ID, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal(payload, &doc.Data); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Service) publish(userID, path string, ev WireEvent) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode feed event", "path", path, "error", err)
		return
	}
	s.hub.Broadcast(feedKey(userID, path), payload)
}
