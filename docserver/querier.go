// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

// Package docserver is the remote side of the sync protocol: a per-user
// hierarchical document store over Postgres with merge-set semantics, a
// websocket change feed fanned out through redis, asset storage and token
// auth.
package docserver

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the minimal database surface the services use. Both
// *pgxpool.Pool and pgxmock pools satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
