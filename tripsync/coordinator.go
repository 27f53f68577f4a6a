// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

package tripsync

import "sync"

// Batch accumulates the results of N concurrent remote operations and
// delivers exactly one terminal callback once all of them have landed.
// A Batch is constructed per fan-out and never reused; its counters are the
// only shared state and live under one mutex, so completion is exactly-once
// by construction.
type Batch struct {
	mu        sync.Mutex
	total     int
	completed int
	succeeded int
	failures  []string
	done      func(error)
	finished  bool
}

// NewBatch creates a batch of n operations reporting into done. n == 0
// completes immediately with success. done is called exactly once, with nil
// on full success or a *PartialError otherwise.
func NewBatch(n int, done func(error)) *Batch {
	b := &Batch{total: n, done: done}
	if n == 0 {
		b.finished = true
		done(nil)
	}
	return b
}

// OK records one successful operation.
func (b *Batch) OK() {
	b.complete(true, "")
}

// Fail records one failed operation with its message.
func (b *Batch) Fail(msg string) {
	b.complete(false, msg)
}

func (b *Batch) complete(ok bool, msg string) {
	b.mu.Lock()
	if b.finished || b.completed >= b.total {
		b.mu.Unlock()
		return
	}
	b.completed++
	if ok {
		b.succeeded++
	} else {
		b.failures = append(b.failures, msg)
	}
	terminal := b.completed == b.total
	if terminal {
		b.finished = true
	}
	succeeded, total := b.succeeded, b.total
	failures := b.failures
	b.mu.Unlock()

	if !terminal {
		return
	}
	if succeeded == total {
		b.done(nil)
		return
	}
	b.done(&PartialError{Succeeded: succeeded, Total: total, Failures: failures})
}

// RunBatch is a convenience for callers that want the terminal result as a
// blocking return instead of a callback. launch receives the batch and is
// expected to start the n operations, each reporting OK or Fail.
func RunBatch(n int, launch func(b *Batch)) error {
	ch := make(chan error, 1)
	b := NewBatch(n, func(err error) { ch <- err })
	if n > 0 {
		launch(b)
	}
	return <-ch
}
