// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package docserver

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		username      TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		seq        BIGSERIAL,
		id         TEXT NOT NULL,
		user_id    TEXT NOT NULL,
		path       TEXT NOT NULL,
		payload    JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, path, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user_path ON documents (user_id, path)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		name       TEXT NOT NULL,
		content    BYTEA NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// InitSchema creates the server tables if they do not exist.
func InitSchema(ctx context.Context, db Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
