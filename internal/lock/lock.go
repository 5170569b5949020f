// Package lock derives multicast-lock hold state from the three inputs
// named in §4.7: the set of networks the socket provider reports as
// carrying the core over a lock-requiring Wi-Fi transport, the set of
// currently "active" uids, and which of those uids hold a modern-backend
// request against one of those networks.
package lock

import (
	"log/slog"

	"github.com/nsdservice/nsdd/internal/registry"
)

// Entry is one live modern-backend request, as seen by the registry scan
// the owning state machine performs before calling Recompute.
type Entry struct {
	UID     int32
	Network *registry.Network
}

// Manager holds the multicast lock's derived state. Acquire/Release calls
// to the underlying platform lock are idempotent by construction: OnAcquire
// and OnRelease only fire when Recompute's result actually crosses the
// held/not-held boundary (§8 property 5).
type Manager struct {
	requiredNetworks []*registry.Network
	activeUIDs       map[int32]struct{}

	held bool

	// OnAcquire/OnRelease are set once at construction; nil is a valid
	// no-op binding for tests that only want to observe NeedsLockUID.
	OnAcquire func()
	OnRelease func()

	log *slog.Logger
}

// New constructs a Manager. log may be nil.
func New(onAcquire, onRelease func(), log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		activeUIDs: make(map[int32]struct{}),
		OnAcquire:  onAcquire,
		OnRelease:  onRelease,
		log:        log.With("component", "lock"),
	}
}

// SetRequiredNetworks replaces wifiLockRequiredNetworks. Callers should
// call Recompute afterward.
func (m *Manager) SetRequiredNetworks(nets []*registry.Network) {
	m.requiredNetworks = nets
}

// SetActiveUIDs replaces runningAppActiveUids. Callers should call
// Recompute afterward.
func (m *Manager) SetActiveUIDs(uids []int32) {
	m.activeUIDs = make(map[int32]struct{}, len(uids))
	for _, uid := range uids {
		m.activeUIDs[uid] = struct{}{}
	}
}

// Held reports whether the lock is currently considered held.
func (m *Manager) Held() bool {
	return m.held
}

// NeedsLockUID computes needsLockUid per §4.7 without mutating held state —
// exposed separately so tests and the dump command can inspect it.
func (m *Manager) NeedsLockUID(entries []Entry) int32 {
	if len(m.requiredNetworks) == 0 {
		return -1
	}
	for _, e := range entries {
		if _, active := m.activeUIDs[e.UID]; !active {
			continue
		}
		if m.matchesAnyRequired(e.Network) {
			return e.UID
		}
	}
	return -1
}

func (m *Manager) matchesAnyRequired(requested *registry.Network) bool {
	for _, have := range m.requiredNetworks {
		if requested.Matches(have) {
			return true
		}
	}
	return false
}

// Recompute re-evaluates needsLockUid against entries and acquires or
// releases the platform lock if the result crosses the held/not-held
// boundary. It is safe to call after every registry mutation and lock-input
// change (§4.7): re-acquiring while already held, or re-releasing while
// already released, is always a no-op.
func (m *Manager) Recompute(entries []Entry) {
	needsLock := m.NeedsLockUID(entries) >= 0

	switch {
	case needsLock && !m.held:
		m.held = true
		m.log.Debug("acquiring multicast lock")
		if m.OnAcquire != nil {
			m.OnAcquire()
		}
	case !needsLock && m.held:
		m.held = false
		m.log.Debug("releasing multicast lock")
		if m.OnRelease != nil {
			m.OnRelease()
		}
	}
}
