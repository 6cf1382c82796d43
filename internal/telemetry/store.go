package telemetry

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Store aggregates every piece of telemetry the worker accumulates for its
// single page target: the bounded network and console buffers, the latest
// DOM/accessibility snapshot, and the navigation history used to stamp and
// invalidate the rest (spec §4.3). One Store exists per worker process.
type Store struct {
	log *zap.Logger

	network *NetworkBuffer
	console *BoundedList[ConsoleMessage]

	navMu   sync.RWMutex
	navID   int64
	navLog  []NavigationEvent

	snapMu sync.RWMutex
	snap   *DomSnapshot

	target atomic.Pointer[TargetInfo]
}

// NewStore creates a Store with the given per-buffer capacities.
func NewStore(log *zap.Logger, maxNetwork, maxConsole int) *Store {
	s := &Store{log: log}
	s.network = NewNetworkBuffer(maxNetwork, func() {
		log.Warn("network buffer full, dropping further requests", zap.Int("capacity", maxNetwork))
	})
	s.console = NewBoundedList[ConsoleMessage](maxConsole, func() {
		log.Warn("console buffer full, dropping further messages", zap.Int("capacity", maxConsole))
	})
	return s
}

// Network returns the network request buffer.
func (s *Store) Network() *NetworkBuffer { return s.network }

// Console returns the console message buffer.
func (s *Store) Console() *BoundedList[ConsoleMessage] { return s.console }

// NextNavigationID allocates and records a new navigation, invalidating
// the DOM/accessibility snapshot (but not the network/console history,
// which spec §4.3 retains across navigations for cross-page debugging).
func (s *Store) NextNavigationID(url string, kind NavigationKind, ts func() NavigationEvent) int {
	s.navMu.Lock()
	defer s.navMu.Unlock()
	id := int(atomic.AddInt64(&s.navID, 1))
	ev := ts()
	ev.NavigationID = id
	s.navLog = append(s.navLog, ev)

	s.snapMu.Lock()
	s.snap = nil
	s.snapMu.Unlock()

	return id
}

// CurrentNavigationID returns the most recently allocated navigation id,
// or 0 if no navigation has occurred yet.
func (s *Store) CurrentNavigationID() int {
	return int(atomic.LoadInt64(&s.navID))
}

// NavigationHistory returns every recorded navigation, oldest first.
func (s *Store) NavigationHistory() []NavigationEvent {
	s.navMu.RLock()
	defer s.navMu.RUnlock()
	out := make([]NavigationEvent, len(s.navLog))
	copy(out, s.navLog)
	return out
}

// SetSnapshot stores the latest DOM/accessibility snapshot.
func (s *Store) SetSnapshot(snap *DomSnapshot) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	s.snap = snap
}

// Snapshot returns the latest DOM/accessibility snapshot, or nil if none
// has been captured since the last navigation.
func (s *Store) Snapshot() *DomSnapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

// SetTarget records the worker's single page target.
func (s *Store) SetTarget(t TargetInfo) { s.target.Store(&t) }

// Target returns the worker's current page target, or nil before the first
// target has attached.
func (s *Store) Target() *TargetInfo { return s.target.Load() }

// ClearTelemetry empties the network and console buffers without touching
// navigation history, used by the "clear" command (spec §6).
func (s *Store) ClearTelemetry() {
	s.network.Clear()
	s.console.Clear()
}
