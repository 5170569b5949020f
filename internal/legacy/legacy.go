// Package legacy is the thin adapter over the legacy native mDNS daemon
// (spec.md §1: "treated as a black box with start/stop and four operation
// verbs"). It wraps the four verbs plus stop, and demultiplexes the
// daemon's event callbacks into normalized Events the owning state machine
// posts onto its single event-loop queue — the daemon's own callback
// thread never touches orchestrator state directly (§5).
package legacy

import (
	"context"
	"log/slog"
)

// Daemon is the external collaborator: the legacy native mDNS daemon,
// specified only by the verbs the core needs (spec.md §1 "Out of scope").
type Daemon interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	Discover(txID int32, serviceType string) error
	Register(txID int32, instanceName, serviceType string, port int, txt []byte) error
	Resolve(txID int32, instanceName, serviceType string) error
	GetAddrInfo(txID int32, hostname string, ifaceIndex int) error
	StopOperation(txID int32) error
}

// EventKind is one of the five event kinds the daemon can report, plus a
// terminal failure shared across all of them (§4.5).
type EventKind int

const (
	EventServiceFound EventKind = iota
	EventServiceLost
	EventServiceRegistered
	EventServiceResolved
	EventGetAddrSuccess
	EventFailure
)

// NetID sentinels used by the daemon's discovery events (§4.4, §4.6).
const (
	NetIDUnset      int64 = 0
	NetIDLocalDummy int64 = -1
)

// Event is a normalized daemon callback, posted to the state machine.
type Event struct {
	Kind          EventKind
	TransactionID int32

	NetID      int64
	IfaceIndex int

	InstanceName string
	ServiceType  string
	Port         int
	TXT          []byte

	Hostname string
	Address  string

	// FromCache reports the daemon answered from its own cache rather than
	// a live packet (§3, §8 property 6 "isServiceFromCache").
	FromCache bool

	Err error
}

// Adapter wraps a Daemon and forwards its callbacks to post.
type Adapter struct {
	daemon  Daemon
	post    func(Event)
	running bool
	log     *slog.Logger
}

// New constructs an Adapter. post is called for every daemon event,
// including from the daemon's own callback goroutine — it must do nothing
// but enqueue onto the state machine's message channel.
func New(daemon Daemon, post func(Event), log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{daemon: daemon, post: post, log: log.With("component", "legacy")}
}

// Running reports whether the daemon is currently started.
func (a *Adapter) Running() bool {
	return a.running
}

// Start starts the daemon if it isn't already running.
func (a *Adapter) Start(ctx context.Context) error {
	if a.running {
		return nil
	}
	if err := a.daemon.Start(ctx); err != nil {
		return err
	}
	a.running = true
	return nil
}

// Stop stops the daemon if it's running.
func (a *Adapter) Stop(ctx context.Context) error {
	if !a.running {
		return nil
	}
	if err := a.daemon.Stop(ctx); err != nil {
		return err
	}
	a.running = false
	return nil
}

func (a *Adapter) Discover(txID int32, serviceType string) error {
	return a.daemon.Discover(txID, serviceType)
}

func (a *Adapter) Register(txID int32, instanceName, serviceType string, port int, txt []byte) error {
	return a.daemon.Register(txID, instanceName, serviceType, port, txt)
}

func (a *Adapter) Resolve(txID int32, instanceName, serviceType string) error {
	return a.daemon.Resolve(txID, instanceName, serviceType)
}

func (a *Adapter) GetAddrInfo(txID int32, hostname string, ifaceIndex int) error {
	return a.daemon.GetAddrInfo(txID, hostname, ifaceIndex)
}

// StopOperation cancels a single in-flight transaction.
func (a *Adapter) StopOperation(txID int32) error {
	return a.daemon.StopOperation(txID)
}

// HandleEvent is the callback the Daemon implementation invokes (from
// whatever thread it runs its own I/O on). It does nothing but forward.
func (a *Adapter) HandleEvent(ev Event) {
	a.post(ev)
}
