// Package modern is the adapter over the in-process modern mDNS engine
// (spec.md §4.5). It exposes registerListener/unregisterListener for
// discovery-style requests and addService/removeService/getAdvertiserMetrics
// for advertising, and lowers the engine's MdnsServiceInfo callbacks into the
// historical type-string shapes the rest of the orchestrator expects (§4.4
// "Modern event lowering").
package modern

import (
	"fmt"
	"log/slog"
	"strings"
)

// EventKind distinguishes the shapes of user-visible type string the
// lowering rule must produce (§4.4).
type EventKind int

const (
	EventServiceFound EventKind = iota
	EventServiceLost
	EventResolveServiceSucceeded
	EventOther
)

// ServiceInfo mirrors the engine's MdnsServiceInfo: a label sequence that
// must terminate in "local", plus instance metadata.
type ServiceInfo struct {
	Labels       []string // e.g. ["_http", "_tcp", "local"]
	InstanceName string
	Port         int
	TXT          []byte
	NetID        int64
	IfaceIndex   int
	HostAddress  string
	FromCache    bool // the engine is answering from its own cache, not a live packet
}

// hasLocalSuffix reports whether the label sequence ends in "local",
// the engine-side invariant the lowering rule must enforce (§4.4).
func hasLocalSuffix(labels []string) bool {
	return len(labels) > 0 && labels[len(labels)-1] == "local"
}

// LowerType constructs the user-visible service-type string for kind from
// info's label sequence, applying the historical per-event-kind shape
// (§4.4). It returns false if the label sequence doesn't terminate in
// "local", in which case the caller must log loudly and drop the event.
func LowerType(kind EventKind, info ServiceInfo) (string, bool) {
	if !hasLocalSuffix(info.Labels) {
		return "", false
	}
	joined := strings.Join(info.Labels, ".")
	switch kind {
	case EventServiceFound, EventServiceLost:
		return joined + ".", true
	case EventResolveServiceSucceeded:
		return "." + joined, true
	default:
		return joined, true
	}
}

// Listener receives raw engine events for a single registerListener
// request; the caller (not the engine) is responsible for lowering
// info's label sequence into a user-visible type string via Adapter.Lower
// before acting on an event (§4.4 "Modern event lowering").
type Listener interface {
	OnServiceFound(transactionID int32, info ServiceInfo)
	OnServiceLost(transactionID int32, info ServiceInfo)
	OnResolveServiceSucceeded(transactionID int32, info ServiceInfo)
	OnFailure(transactionID int32, err error)
}

// ListenerOptions configures a registerListener call.
type ListenerOptions struct {
	Network int64 // requested network, 0 meaning "any"
}

// Engine is the external collaborator: the in-process modern mDNS engine.
type Engine interface {
	RegisterListener(serviceType string, opts ListenerOptions, listener Listener) (Handle, error)
	UnregisterListener(h Handle) error

	AddService(instanceName, serviceType string, port int, txt []byte) (Handle, error)
	RemoveService(h Handle) error

	GetAdvertiserMetrics() AdvertiserMetrics
}

// Handle identifies a live listener or advertised service inside Engine.
type Handle interface{}

// AdvertiserMetrics is the engine's advertising health snapshot.
type AdvertiserMetrics struct {
	ActiveRegistrations int
	FailedRegistrations int
}

// Adapter is the thin wrapper the state machine holds instead of Engine
// directly, so it only ever sees the verbs named in §4.5.
type Adapter struct {
	engine Engine
	log    *slog.Logger
}

// New constructs an Adapter over engine.
func New(engine Engine, log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{engine: engine, log: log.With("component", "modern")}
}

// RegisterListener starts a discovery-style request against the engine.
func (a *Adapter) RegisterListener(serviceType string, opts ListenerOptions, listener Listener) (Handle, error) {
	return a.engine.RegisterListener(serviceType, opts, listener)
}

// UnregisterListener tears down a previously registered listener.
func (a *Adapter) UnregisterListener(h Handle) error {
	return a.engine.UnregisterListener(h)
}

// AddService advertises a service instance through the engine.
func (a *Adapter) AddService(instanceName, serviceType string, port int, txt []byte) (Handle, error) {
	return a.engine.AddService(instanceName, serviceType, port, txt)
}

// RemoveService withdraws a previously advertised service.
func (a *Adapter) RemoveService(h Handle) error {
	return a.engine.RemoveService(h)
}

// GetAdvertiserMetrics reports the engine's current advertising health.
func (a *Adapter) GetAdvertiserMetrics() AdvertiserMetrics {
	return a.engine.GetAdvertiserMetrics()
}

// Lower wraps LowerType, logging loudly and returning false when the
// engine hands back a label sequence that doesn't terminate in "local" —
// the one place this adapter treats an engine event as malformed rather
// than passing it straight through.
func (a *Adapter) Lower(kind EventKind, transactionID int32, info ServiceInfo) (string, bool) {
	typeString, ok := LowerType(kind, info)
	if !ok {
		a.log.Error("modern engine service info missing local suffix",
			"transaction_id", transactionID, "labels", fmt.Sprint(info.Labels))
		return "", false
	}
	return typeString, true
}
