// Package offload implements the offload-engine broadcast registry (§4.8):
// a list of (interfaceName, type bits, callback) entries that the advertiser
// side fans out OffloadServiceInfo updates to, using errgroup so one slow
// or dead peer can't stall the rest of the broadcast — the registration
// path for REGISTER_OFFLOAD_ENGINE still runs synchronously on the state
// machine thread (§5 forbids suspension points there), it's only the
// per-engine callback dispatch that runs concurrently and is waited on
// before the handler returns.
package offload

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ServiceInfo is the opaque offload payload; the core only inspects
// InterfaceName and TypeBits for routing (§6 "Offload protocol"). Key
// identifies the advertised service instance (e.g. "instance._type._tcp")
// so the snapshot can track multiple services per interface/type-bits pair.
type ServiceInfo struct {
	InterfaceName string
	TypeBits      uint32
	Key           string
	Payload       any
}

// Callback is the per-engine offload consumer.
type Callback interface {
	OnOffloadStartOrUpdate(info ServiceInfo) error
	OnOffloadStop(info ServiceInfo) error
}

// Entry is one registered offload engine.
type Entry struct {
	InterfaceName string
	TypeBits      uint32
	Callback      Callback
}

func (e *Entry) matches(info ServiceInfo) bool {
	return e.InterfaceName == info.InterfaceName && e.TypeBits&info.TypeBits != 0
}

// Registry is the offload broadcast registry.
type Registry struct {
	mu       sync.Mutex // only to protect the snapshot map/entries slice from being read concurrently with errgroup callbacks
	entries  []*Entry
	snapshot map[string]map[string]ServiceInfo // interfaceName -> instance key -> last known info

	log *slog.Logger
}

// New constructs an empty Registry. log may be nil.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		snapshot: make(map[string]map[string]ServiceInfo),
		log:      log.With("component", "offload"),
	}
}

// Register adds an offload engine and immediately replays the current
// snapshot of advertised services on its interface (§4.8), synchronously,
// before returning.
func (r *Registry) Register(interfaceName string, typeBits uint32, cb Callback) *Entry {
	r.mu.Lock()
	entry := &Entry{InterfaceName: interfaceName, TypeBits: typeBits, Callback: cb}
	r.entries = append(r.entries, entry)
	replay := make([]ServiceInfo, 0, len(r.snapshot[interfaceName]))
	for _, info := range r.snapshot[interfaceName] {
		if entry.matches(info) {
			replay = append(replay, info)
		}
	}
	r.mu.Unlock()

	for _, info := range replay {
		if err := cb.OnOffloadStartOrUpdate(info); err != nil {
			r.log.Warn("offload snapshot replay failed, peer likely gone", "interface", interfaceName, "error", err)
		}
	}
	return entry
}

// Unregister removes a previously registered offload engine.
func (r *Registry) Unregister(entry *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e == entry {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

func instanceKey(info ServiceInfo) string {
	return info.Key
}

// BroadcastUpdate dispatches an OffloadStartOrUpdate to every matching
// engine concurrently, waiting for all of them before returning. Remote
// errors are swallowed (logged) per §4.8 — a failing callback indicates a
// dead peer, cleaned up out of band via its own death notification.
func (r *Registry) BroadcastUpdate(ctx context.Context, info ServiceInfo) {
	r.mu.Lock()
	if r.snapshot[info.InterfaceName] == nil {
		r.snapshot[info.InterfaceName] = make(map[string]ServiceInfo)
	}
	r.snapshot[info.InterfaceName][instanceKey(info)] = info
	targets := r.matchingEntries(info)
	r.mu.Unlock()

	r.dispatch(ctx, targets, func(cb Callback) error { return cb.OnOffloadStartOrUpdate(info) })
}

// BroadcastStop dispatches an OffloadStop to every matching engine.
func (r *Registry) BroadcastStop(ctx context.Context, info ServiceInfo) {
	r.mu.Lock()
	if m := r.snapshot[info.InterfaceName]; m != nil {
		delete(m, instanceKey(info))
	}
	targets := r.matchingEntries(info)
	r.mu.Unlock()

	r.dispatch(ctx, targets, func(cb Callback) error { return cb.OnOffloadStop(info) })
}

func (r *Registry) matchingEntries(info ServiceInfo) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.matches(info) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) dispatch(ctx context.Context, targets []*Entry, call func(Callback) error) {
	if len(targets) == 0 {
		return
	}
	g, _ := errgroup.WithContext(ctx)
	for _, e := range targets {
		e := e
		g.Go(func() error {
			if err := call(e.Callback); err != nil {
				r.log.Warn("offload dispatch failed, peer likely gone", "interface", e.InterfaceName, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
