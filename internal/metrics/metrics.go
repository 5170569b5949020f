// Package metrics defines the MetricsSink interface the orchestrator
// reports through (per-client and per-backend counters named in §3 and §9)
// and a prometheus-backed implementation, grounded on the Prometheus
// instrumentation pattern the good-practice example in the teacher repo's
// semgrep tests shows for an mDNS service
// (mdns_packets_received_total-style counters).
package metrics

import "time"

// Sink is the metrics collaborator the state machine reports through. It
// is an external collaborator per spec.md §1 — the orchestrator only
// depends on this interface, never on a concrete sink.
type Sink interface {
	DiscoveryStarted()
	ServiceFound()
	ServiceLost()
	RegisterSucceeded()
	RegisterFailed()
	ResolveSucceeded()
	ResolveFailed()
	DaemonStarted()
	DaemonStopped()
	LockAcquired()
	LockReleased()
	RequestDuration(verb string, d time.Duration)
}

// Noop discards every call. It's the default Sink when none is supplied.
type Noop struct{}

func (Noop) DiscoveryStarted()   {}
func (Noop) ServiceFound()       {}
func (Noop) ServiceLost()        {}
func (Noop) RegisterSucceeded()  {}
func (Noop) RegisterFailed()     {}
func (Noop) ResolveSucceeded()   {}
func (Noop) ResolveFailed()      {}
func (Noop) DaemonStarted()      {}
func (Noop) DaemonStopped()      {}
func (Noop) LockAcquired()       {}
func (Noop) LockReleased()       {}

func (Noop) RequestDuration(verb string, d time.Duration) {}
