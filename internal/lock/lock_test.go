package lock

import (
	"testing"

	"github.com/nsdservice/nsdd/internal/registry"
)

func TestNeedsLockUID_EmptyRequiredNetworksMeansNoLock(t *testing.T) {
	m := New(nil, nil, nil)
	m.SetActiveUIDs([]int32{1000})
	got := m.NeedsLockUID([]Entry{{UID: 1000, Network: nil}})
	if got != -1 {
		t.Fatalf("got %d, want -1 when no required networks", got)
	}
}

func TestRecompute_IdempotentAcquireRelease(t *testing.T) {
	n1 := &registry.Network{ID: 1}
	var acquires, releases int
	m := New(func() { acquires++ }, func() { releases++ }, nil)
	m.SetRequiredNetworks([]*registry.Network{n1})
	m.SetActiveUIDs([]int32{1000})

	entries := []Entry{{UID: 1000, Network: nil}} // nil requested network matches any

	// Three consecutive recomputes with the lock needed should acquire once.
	m.Recompute(entries)
	m.Recompute(entries)
	m.Recompute(entries)
	if acquires != 1 || releases != 0 {
		t.Fatalf("acquires=%d releases=%d, want 1/0", acquires, releases)
	}

	// Dropping the only matching entry should release exactly once.
	m.Recompute(nil)
	m.Recompute(nil)
	if acquires != 1 || releases != 1 {
		t.Fatalf("acquires=%d releases=%d, want 1/1", acquires, releases)
	}
}

func TestNeedsLockUID_InactiveUIDExcluded(t *testing.T) {
	n1 := &registry.Network{ID: 1}
	m := New(nil, nil, nil)
	m.SetRequiredNetworks([]*registry.Network{n1})
	m.SetActiveUIDs([]int32{1000})

	got := m.NeedsLockUID([]Entry{{UID: 2000, Network: nil}})
	if got != -1 {
		t.Fatalf("got %d, want -1 for non-active uid", got)
	}
}

func TestNeedsLockUID_NetworkMustMatch(t *testing.T) {
	n1 := &registry.Network{ID: 1}
	n2 := &registry.Network{ID: 2}
	m := New(nil, nil, nil)
	m.SetRequiredNetworks([]*registry.Network{n1})
	m.SetActiveUIDs([]int32{1000})

	got := m.NeedsLockUID([]Entry{{UID: 1000, Network: n2}})
	if got != -1 {
		t.Fatalf("got %d, want -1 when requested network does not match", got)
	}

	got = m.NeedsLockUID([]Entry{{UID: 1000, Network: n1}})
	if got != 1000 {
		t.Fatalf("got %d, want 1000", got)
	}
}
