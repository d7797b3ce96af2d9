package headway

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// LoadFunc builds a fresh snapshot for a window. The lifecycle manager
// never calls it concurrently with itself.
type LoadFunc func(window Window) (*Snapshot, error)

// SyncInfo is handed to observers after a successful refresh.
type SyncInfo struct {
	LastSyncedHour time.Time
	WindowStart    time.Time
	WindowEnd      time.Time
}

// Manager owns the single mutable cell of the system: the atomic reference
// to the active snapshot. It rebuilds the snapshot on an hourly schedule,
// swaps the reference, and notifies observers. Queries running against a
// replaced snapshot keep it alive through their own pointer until they
// finish; retirement is the garbage collector's job.
type Manager struct {
	loader  LoadFunc
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics

	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	observers []func(SyncInfo)
}

// NewManager creates a lifecycle manager. clock, logger and metrics may be
// nil; sensible defaults apply.
func NewManager(loader LoadFunc, clock Clock, logger *slog.Logger, metrics *Metrics) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		loader:  loader,
		clock:   clock,
		logger:  logger.With(slog.String("component", "lifecycle")),
		metrics: metrics,
	}
}

// Snapshot returns the active snapshot, or nil before the first successful
// refresh.
func (m *Manager) Snapshot() *Snapshot {
	return m.current.Load()
}

// Subscribe registers a callback invoked after every successful refresh.
func (m *Manager) Subscribe(fn func(SyncInfo)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Refresh rebuilds the snapshot for the hour containing now and publishes
// it. On failure the active snapshot is left untouched and the error
// returned; the next tick retries.
func (m *Manager) Refresh(now time.Time) (*Snapshot, error) {
	window := WindowFor(now)
	start := time.Now()

	sn, err := m.loader(window)
	if err != nil {
		m.metrics.ObserveRefresh("error", time.Since(start))
		m.logger.Error("snapshot refresh failed, keeping current snapshot",
			"hour", window.Hour, "error", err)
		return nil, fmt.Errorf("refresh snapshot: %w", err)
	}

	m.current.Store(sn)

	stats := sn.Stats()
	m.metrics.ObserveRefresh("ok", time.Since(start))
	m.metrics.SetSnapshotStats(stats)
	m.logger.Info("snapshot refreshed",
		"hour", window.Hour,
		"stops", stats.Stops,
		"routes", stats.Routes,
		"trips", stats.Trips,
		"footpaths", stats.Footpaths)

	info := SyncInfo{
		LastSyncedHour: window.Hour,
		WindowStart:    window.Hour.Add(-time.Hour),
		WindowEnd:      window.Hour.Add(4 * time.Hour),
	}

	m.mu.Lock()
	observers := make([]func(SyncInfo), len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, fn := range observers {
		fn(info)
	}

	return sn, nil
}

// Run refreshes at minute 0 of every wall-clock hour, within a +-30s
// jitter, until ctx is cancelled. Load failures are logged and retried on
// the next tick.
func (m *Manager) Run(ctx context.Context) {
	for {
		now := m.clock.Now()
		wait := nextFire(now).Sub(now)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		m.Refresh(m.clock.Now())
	}
}

// nextFire picks the next top of the hour, jittered by up to +-30s.
func nextFire(now time.Time) time.Time {
	next := now.Truncate(time.Hour).Add(time.Hour)
	jitter := time.Duration(rand.Intn(61)-30) * time.Second
	fire := next.Add(jitter)
	if !fire.After(now) {
		fire = next.Add(30 * time.Second)
	}
	return fire
}
