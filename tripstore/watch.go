// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripstore

import "sync"

// Entity identifies which table a change touched.
type Entity int

const (
	EntityTrip Entity = iota
	EntityActivity
	EntityExpense
)

// Op identifies the kind of local mutation.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

// Change describes a committed local mutation. The UI layer subscribes to
// these to re-query rows; the sync engine does not consume them.
type Change struct {
	Entity  Entity
	Op      Op
	LocalID int64
	TripID  int64 // set for activity/expense changes
}

// notifier fans committed changes out to registered subscribers. Slow
// subscribers drop changes rather than block store writes.
type notifier struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	closed bool
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]chan Change)}
}

// Subscribe registers a change listener. The returned cancel func must be
// called to release the subscription.
func (s *Store) Subscribe() (<-chan Change, func()) {
	n := s.notifier
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	ch := make(chan Change, 64)
	if n.closed {
		close(ch)
		return ch, func() {}
	}
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if c, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (n *notifier) publish(c Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
