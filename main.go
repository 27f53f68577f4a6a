// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
)

func main() {
	fmt.Println("WanderPlan trip sync")
	fmt.Println("====================")
	fmt.Println()
	fmt.Println("Local-first synchronization between an on-device SQLite trip store and a")
	fmt.Println("remote per-user document store, with change-feed ingestion and duplicate")
	fmt.Println("resolution.")
	fmt.Println()
	fmt.Println("Packages:")
	fmt.Println()
	fmt.Println("  tripstore/   SQLite local store for trips, activities and expenses")
	fmt.Println("  tripsync/    reconciliation engine: push, pull, listeners, cleanup")
	fmt.Println("  remotehttp/  REST + websocket client for the document server")
	fmt.Println("  docserver/   Postgres document server with change feed and assets")
	fmt.Println()
	fmt.Println("Run the server: go run ./cmd/tripsyncd serve")
}
