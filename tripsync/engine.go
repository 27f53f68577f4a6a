// Copyright 2025 WanderPlan Authors
// SPDX-License-Identifier: Apache-2.0

// Package tripsync reconciles the local trip store with the remote document
// store. The local store is always written first and is never rolled back;
// remote pushes, pulls and continuous change-feed ingestion run around it
// and converge both sides onto a single logical record set.
package tripsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Perth00/WanderPlan-sub001/tripstore"
)

// Engine orchestrates push-sync, pull-sync, listener ingestion and duplicate
// resolution for trips, activities and budget records.
type Engine struct {
	local    *tripstore.Store
	remote   RemoteStore
	assets   AssetStore
	identity Identity
	tracker  *DeletionTracker
	config   *Config
	logger   *slog.Logger

	mode         int32 // atomic Mode
	sweepPending int32 // one deferred duplicate sweep at a time

	// workers bounds background remote work so engine callers never block on
	// the remote store.
	workers chan struct{}
	wg      sync.WaitGroup

	// watchMu guards the per-trip activity watch registry; watches are keyed
	// by local trip id and re-established when duplicate resolution replaces
	// a trip record.
	watchMu       sync.Mutex
	tripWatchStop func()
	actWatchStops map[int64]func()
}

// New creates an engine. assets may be nil when no binary uploads are needed
// (activities with pending local images will then fail their remote leg).
func New(local *tripstore.Store, remote RemoteStore, assets AssetStore, identity Identity, config *Config, logger *slog.Logger) (*Engine, error) {
	if local == nil {
		return nil, fmt.Errorf("local store cannot be nil")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote store cannot be nil")
	}
	if identity == nil {
		return nil, fmt.Errorf("identity cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	workers := config.Workers
	if workers <= 0 {
		workers = 1
	}
	e := &Engine{
		local:         local,
		remote:        remote,
		assets:        assets,
		identity:      identity,
		tracker:       NewDeletionTracker(config.DeletionTTL),
		config:        config,
		logger:        logger,
		workers:       make(chan struct{}, workers),
		actWatchStops: make(map[int64]func()),
	}
	atomic.StoreInt32(&e.mode, int32(config.Mode))
	return e, nil
}

// Mode returns the current engine mode.
func (e *Engine) Mode() Mode {
	return Mode(atomic.LoadInt32(&e.mode))
}

// SetMode transitions the engine between normal, listener-paused and
// remote-authority operation. Subscriptions stay open across transitions.
func (e *Engine) SetMode(m Mode) error {
	switch m {
	case ModeNormal, ModeListenerPaused, ModeRemoteAuthority:
	default:
		return fmt.Errorf("unknown engine mode %d", m)
	}
	old := Mode(atomic.SwapInt32(&e.mode, int32(m)))
	if old != m {
		e.logger.Info("engine mode changed", "from", int(old), "to", int(m))
	}
	return nil
}

// Tracker exposes the deletion tracker, mainly for tests and diagnostics.
func (e *Engine) Tracker() *DeletionTracker { return e.tracker }

// userID resolves the caller identity; ok is false in pure local mode.
func (e *Engine) userID() (string, bool) {
	return e.identity.UserID()
}

// submit runs fn on the bounded worker pool.
func (e *Engine) submit(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.workers <- struct{}{}
		defer func() { <-e.workers }()
		fn()
	}()
}

// Drain waits for all background work to finish. Intended for shutdown and
// tests.
func (e *Engine) Drain() {
	e.wg.Wait()
}

// scheduleSweep queues one deferred duplicate/orphan sweep on the worker
// pool. Ingest inserts can race concurrent pushes into brief duplicates, so
// every new insert arms a sweep; pending sweeps coalesce.
func (e *Engine) scheduleSweep() {
	if !atomic.CompareAndSwapInt32(&e.sweepPending, 0, 1) {
		return
	}
	e.submit(func() {
		time.Sleep(e.config.CleanupDelay)
		atomic.StoreInt32(&e.sweepPending, 0)
		ctx := context.Background()
		if _, err := e.CleanupDuplicates(ctx); err != nil {
			e.logger.Warn("deferred duplicate sweep failed", "error", err)
			return
		}
		if _, err := e.CleanupOrphans(ctx); err != nil {
			e.logger.Warn("deferred orphan sweep failed", "error", err)
		}
	})
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// onceResult guards a timed remote operation so that the timeout handler and
// the real completion cannot both deliver a result; whichever fires first
// wins and the other is a no-op.
type onceResult struct {
	mu    sync.Mutex
	fired bool
}

func (o *onceResult) fire() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fired {
		return false
	}
	o.fired = true
	return true
}

// withTimeout runs op with a deadline and a single-fire result guard.
// Returns the op error, or a timeout error if the deadline fired first.
func (e *Engine) withTimeout(ctx context.Context, d time.Duration, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	guard := &onceResult{}
	result := make(chan error, 1)
	go func() {
		err := op(opCtx)
		if guard.fire() {
			result <- err
		}
	}()

	select {
	case err := <-result:
		return err
	case <-opCtx.Done():
		if guard.fire() {
			return fmt.Errorf("remote operation timed out after %s: %w", d, opCtx.Err())
		}
		// The op won the race; its result is already buffered.
		return <-result
	}
}
