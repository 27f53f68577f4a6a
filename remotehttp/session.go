// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

// Package remotehttp is the client side of the sync protocol: a RemoteStore
// and AssetStore speaking the document server's REST and websocket APIs with
// JWT bearer auth.
package remotehttp

import "sync"

// Session holds the signed-in user's token and id. It satisfies the engine's
// Identity contract: an empty session means pure local mode.
type Session struct {
	mu     sync.Mutex
	token  string
	userID string
}

// UserID reports the signed-in user, if any.
func (s *Session) UserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

// Token reports the bearer token, if any.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *Session) set(token, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.userID = userID
}

// Clear signs the session out.
func (s *Session) Clear() {
	s.set("", "")
}
