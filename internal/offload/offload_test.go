package offload

import (
	"context"
	"sync/atomic"
	"testing"
)

type countingCallback struct {
	updates int32
	stops   int32
}

func (c *countingCallback) OnOffloadStartOrUpdate(ServiceInfo) error {
	atomic.AddInt32(&c.updates, 1)
	return nil
}

func (c *countingCallback) OnOffloadStop(ServiceInfo) error {
	atomic.AddInt32(&c.stops, 1)
	return nil
}

func TestBroadcast_MatchesInterfaceAndTypeBits(t *testing.T) {
	r := New(nil)
	cb := &countingCallback{}
	r.Register("eth0", 0b01, cb)

	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "eth0", TypeBits: 0b01, Key: "svc1"})
	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "wlan0", TypeBits: 0b01, Key: "svc2"})
	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "eth0", TypeBits: 0b10, Key: "svc3"})

	if got := atomic.LoadInt32(&cb.updates); got != 1 {
		t.Fatalf("got %d updates, want 1", got)
	}
}

func TestRegister_ReplaysSnapshot(t *testing.T) {
	r := New(nil)
	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "eth0", TypeBits: 0b01, Key: "svc1"})

	cb := &countingCallback{}
	r.Register("eth0", 0b01, cb)

	if got := atomic.LoadInt32(&cb.updates); got != 1 {
		t.Fatalf("got %d replayed updates, want 1", got)
	}
}

func TestUnregister_StopsDispatch(t *testing.T) {
	r := New(nil)
	cb := &countingCallback{}
	entry := r.Register("eth0", 0b01, cb)
	r.Unregister(entry)

	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "eth0", TypeBits: 0b01, Key: "svc1"})
	if got := atomic.LoadInt32(&cb.updates); got != 0 {
		t.Fatalf("got %d updates after unregister, want 0", got)
	}
}

func TestBroadcast_DeadPeerErrorSwallowed(t *testing.T) {
	r := New(nil)
	deadCB := failingCallback{}
	liveCB := &countingCallback{}
	r.Register("eth0", 0b01, deadCB)
	r.Register("eth0", 0b01, liveCB)

	r.BroadcastUpdate(context.Background(), ServiceInfo{InterfaceName: "eth0", TypeBits: 0b01, Key: "svc1"})
	if got := atomic.LoadInt32(&liveCB.updates); got != 1 {
		t.Fatalf("live peer should still be dispatched to despite dead peer error, got %d", got)
	}
}

type failingCallback struct{}

func (failingCallback) OnOffloadStartOrUpdate(ServiceInfo) error { return errDeadPeer }
func (failingCallback) OnOffloadStop(ServiceInfo) error          { return errDeadPeer }

type deadPeerError struct{}

func (deadPeerError) Error() string { return "dead peer" }

var errDeadPeer = deadPeerError{}
