package legacy

import (
	"context"
	"errors"
	"testing"
)

type fakeDaemon struct {
	started  bool
	stopped  bool
	discover []int32
	stopOps  []int32
	failNext bool
}

func (d *fakeDaemon) Start(ctx context.Context) error { d.started = true; return nil }
func (d *fakeDaemon) Stop(ctx context.Context) error  { d.stopped = true; return nil }

func (d *fakeDaemon) Discover(txID int32, serviceType string) error {
	if d.failNext {
		return errors.New("boom")
	}
	d.discover = append(d.discover, txID)
	return nil
}

func (d *fakeDaemon) Register(txID int32, instanceName, serviceType string, port int, txt []byte) error {
	return nil
}

func (d *fakeDaemon) Resolve(txID int32, instanceName, serviceType string) error { return nil }

func (d *fakeDaemon) GetAddrInfo(txID int32, hostname string, ifaceIndex int) error { return nil }

func (d *fakeDaemon) StopOperation(txID int32) error {
	d.stopOps = append(d.stopOps, txID)
	return nil
}

func TestAdapter_StartIsIdempotent(t *testing.T) {
	d := &fakeDaemon{}
	a := New(d, func(Event) {}, nil)

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !d.started {
		t.Fatal("expected daemon.Start to have been called")
	}
	if !a.Running() {
		t.Fatal("expected adapter to report running")
	}
}

func TestAdapter_StopWhenNotRunningIsNoop(t *testing.T) {
	d := &fakeDaemon{}
	a := New(d, func(Event) {}, nil)

	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if d.stopped {
		t.Fatal("daemon.Stop should not have been called when not running")
	}
}

func TestAdapter_VerbsPassThrough(t *testing.T) {
	d := &fakeDaemon{}
	a := New(d, func(Event) {}, nil)

	if err := a.Discover(7, "_http._tcp"); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(d.discover) != 1 || d.discover[0] != 7 {
		t.Fatalf("discover not forwarded: %v", d.discover)
	}

	if err := a.StopOperation(7); err != nil {
		t.Fatalf("StopOperation: %v", err)
	}
	if len(d.stopOps) != 1 || d.stopOps[0] != 7 {
		t.Fatalf("stop not forwarded: %v", d.stopOps)
	}
}

func TestAdapter_HandleEventForwardsToPost(t *testing.T) {
	d := &fakeDaemon{}
	var got []Event
	a := New(d, func(ev Event) { got = append(got, ev) }, nil)

	a.HandleEvent(Event{Kind: EventServiceFound, TransactionID: 3, NetID: 5})
	a.HandleEvent(Event{Kind: EventFailure, TransactionID: 3, Err: errors.New("timeout")})

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Kind != EventServiceFound || got[1].Kind != EventFailure {
		t.Fatalf("unexpected event kinds: %+v", got)
	}
}
