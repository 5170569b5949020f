// Package registry implements the request/transaction registry: the
// bidirectional (client, clientRequestId) ↔ transactionId ↔ request index
// that the single-threaded state machine owns and mutates exclusively on
// its own goroutine (per the design notes, this is never a package-global —
// it's a struct constructed once and threaded through the event loop).
package registry

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MaxUniqueNames bounds the uniqueNames set tracked per request (§3).
const MaxUniqueNames = 100

// Backend identifies which backend a request was routed to, recorded on the
// request at accept time so cancel-time cleanup dispatches to the right
// implementation without re-running the routing decision.
type Backend int

const (
	BackendLegacy Backend = iota
	BackendModern
)

func (b Backend) String() string {
	if b == BackendModern {
		return "modern"
	}
	return "legacy"
}

// Kind is the ClientRequest's variant tag.
type Kind int

const (
	// KindLegacy is used for every verb routed to the legacy daemon
	// (discover/register/resolve); LegacyVerb records which one so cleanup
	// invokes the matching stop.
	KindLegacy Kind = iota
	// KindAdvertiser is a modern-backend REGISTER_SERVICE request.
	KindAdvertiser
	// KindDiscoveryManager is a modern-backend discover/resolve/callback
	// request, carrying a listener handle into the modern engine.
	KindDiscoveryManager
)

// LegacyVerb identifies which legacy operation a KindLegacy request started.
type LegacyVerb int

const (
	LegacyDiscover LegacyVerb = iota
	LegacyRegister
	LegacyResolve
)

// ModernVerb identifies which modern-backend operation a KindDiscoveryManager
// request started, since all three share the same engine listener mechanics
// but deliver to different client callbacks (§4.4, §6): a watch request's
// found/lost events are onServiceUpdated/onServiceUpdatedLost, not
// onServiceFound/onServiceLost, and its async failures are distinguished
// from a resolve's.
type ModernVerb int

const (
	ModernDiscover ModernVerb = iota
	ModernResolve
	ModernWatch
)

// Counters hold the running statistics every request variant shares.
type Counters struct {
	FoundCount     int
	LostCount      int
	SentQueryCount int

	uniqueNames *lru.Cache[string, struct{}]

	// fromCache is sticky: once true it must never revert to false (§3,
	// §8 property 6).
	fromCache bool
}

// NoteUniqueName records an instance name observed for this request,
// bounded to MaxUniqueNames via LRU eviction of the least recently touched
// name rather than an unbounded set.
func (c *Counters) NoteUniqueName(name string) {
	if c.uniqueNames == nil {
		// lru.New never errors for a positive size.
		c.uniqueNames, _ = lru.New[string, struct{}](MaxUniqueNames)
	}
	c.uniqueNames.Add(name, struct{}{})
}

// UniqueNameCount reports how many distinct instance names have been seen.
func (c *Counters) UniqueNameCount() int {
	if c.uniqueNames == nil {
		return 0
	}
	return c.uniqueNames.Len()
}

// MarkFromCache sets the sticky isServiceFromCache flag. Calling it with
// false is a no-op once it has been set true.
func (c *Counters) MarkFromCache(v bool) {
	if v {
		c.fromCache = true
	}
}

// FromCache reports the current (sticky) isServiceFromCache value.
func (c *Counters) FromCache() bool {
	return c.fromCache
}

// Network is a nullable network identifier. A nil *Network means "any
// network" throughout the lock manager and router.
type Network struct {
	ID int64
}

// Matches reports whether want (the network a request asked for, possibly
// nil for "any") is satisfied by have. A nil want always matches.
func (want *Network) Matches(have *Network) bool {
	if want == nil {
		return true
	}
	if have == nil {
		return false
	}
	return want.ID == have.ID
}

// ClientRequest is one outstanding operation. Exactly one of the Kind-
// specific fields below is meaningful, selected by Kind — a tagged sum
// rather than an interface, since cleanup only ever needs to switch on the
// tag once to find the right stop call.
type ClientRequest struct {
	TransactionID   int32
	ClientRequestID uint16
	StartTime       time.Time
	Backend         Backend
	Kind            Kind
	Counters        Counters

	// KindLegacy
	LegacyVerb LegacyVerb

	// KindAdvertiser, KindLegacy (register only): the network a caller
	// requested for an advertisement, consulted by lock recomputation and
	// the offload bridge. KindDiscoveryManager doesn't carry one: §6 gives
	// no network parameter on discover/resolve/watch, only on register.
	RequestedNetwork *Network

	// KindDiscoveryManager
	ListenerHandle any
	ModernVerb     ModernVerb
}
