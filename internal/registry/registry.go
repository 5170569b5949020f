package registry

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nsdservice/nsdd/internal/nsderrors"
)

// Hooks lets the owning package (nsd) react to registry mutation without
// the registry package knowing anything about backend lifecycle, timers, or
// the multicast lock — it just calls back after its own bookkeeping is
// consistent.
type Hooks[C any] struct {
	// AfterStore runs once a request has been fully indexed.
	AfterStore func(client *ClientInfo[C], req *ClientRequest)
	// AfterRemove runs once a request has been fully unindexed.
	AfterRemove func(client *ClientInfo[C], req *ClientRequest)
}

type txEntry[C any] struct {
	client *ClientInfo[C]
	req    *ClientRequest
}

// Registry is the request/transaction registry (§3, §4.3). It is owned by
// exactly one goroutine — the state-machine event loop — and carries no
// internal locking, matching the "single-writer" design this whole service
// is built around.
type Registry[C any] struct {
	clients map[int64]*ClientInfo[C]
	txIndex map[int32]txEntry[C]

	nextConnectorID int64
	txAlloc         idAllocator

	hooks Hooks[C]
}

// New constructs an empty Registry.
func New[C any](hooks Hooks[C]) *Registry[C] {
	return &Registry[C]{
		clients: make(map[int64]*ClientInfo[C]),
		txIndex: make(map[int32]txEntry[C]),
		hooks:   hooks,
	}
}

// RegisterClient creates a new ClientInfo for a freshly connected callback
// channel and indexes it by connector identity.
func (r *Registry[C]) RegisterClient(cb C, uid int32, usesModernBackend bool, log *slog.Logger) *ClientInfo[C] {
	r.nextConnectorID++
	client := newClientInfo(r.nextConnectorID, cb, uid, usesModernBackend, log)
	r.clients[client.ConnectorID] = client
	return client
}

// UnregisterClient destroys a ClientInfo, expunging every outstanding
// request. onEach is invoked once per request before it is unindexed so the
// caller can cancel the matching backend operation and emit metrics; it
// must not itself mutate the registry.
func (r *Registry[C]) UnregisterClient(client *ClientInfo[C], onEach func(*ClientRequest)) {
	for id, req := range client.Requests {
		if onEach != nil {
			onEach(req)
		}
		delete(client.Requests, id)
		delete(r.txIndex, req.TransactionID)
		if r.hooks.AfterRemove != nil {
			r.hooks.AfterRemove(client, req)
		}
	}
	delete(r.clients, client.ConnectorID)
}

// Store allocates a transaction id, lets build construct the request around
// it, and indexes the result — enforcing the per-client quota (§3, §8
// property 2) before any mutation happens.
func (r *Registry[C]) Store(client *ClientInfo[C], clientRequestID uint16, build func(txID int32) *ClientRequest) (*ClientRequest, error) {
	if len(client.Requests) >= MaxRequestsPerClient {
		return nil, nsderrors.New("store", nsderrors.MaxLimit)
	}

	txID := r.txAlloc.next()
	req := build(txID)
	req.TransactionID = txID
	req.ClientRequestID = clientRequestID
	req.StartTime = time.Now()

	client.Requests[clientRequestID] = req
	r.txIndex[txID] = txEntry[C]{client: client, req: req}

	if r.hooks.AfterStore != nil {
		r.hooks.AfterStore(client, req)
	}
	return req, nil
}

// Remove unindexes the request named by clientRequestID on client, if any.
func (r *Registry[C]) Remove(client *ClientInfo[C], clientRequestID uint16) (*ClientRequest, bool) {
	req, ok := client.Requests[clientRequestID]
	if !ok {
		return nil, false
	}
	delete(client.Requests, clientRequestID)
	delete(r.txIndex, req.TransactionID)
	if r.hooks.AfterRemove != nil {
		r.hooks.AfterRemove(client, req)
	}
	return req, true
}

// RemoveByTransaction unindexes the request owning txID, if any. Used by
// the legacy two-phase resolve chain, which migrates a request from one
// transaction id to another mid-flight.
func (r *Registry[C]) RemoveByTransaction(txID int32) (*ClientInfo[C], *ClientRequest, bool) {
	entry, ok := r.txIndex[txID]
	if !ok {
		return nil, nil, false
	}
	delete(entry.client.Requests, entry.req.ClientRequestID)
	delete(r.txIndex, txID)
	if r.hooks.AfterRemove != nil {
		r.hooks.AfterRemove(entry.client, entry.req)
	}
	return entry.client, entry.req, true
}

// Migrate re-indexes req (already removed from the old transaction via
// RemoveByTransaction) under a freshly allocated transaction id, preserving
// its ClientRequestID and StartTime, and returns the new id. This is the
// tx1 → tx2 step of the legacy resolve chain (§4.4).
func (r *Registry[C]) Migrate(client *ClientInfo[C], req *ClientRequest) int32 {
	newID := r.txAlloc.next()
	req.TransactionID = newID
	client.Requests[req.ClientRequestID] = req
	r.txIndex[newID] = txEntry[C]{client: client, req: req}
	if r.hooks.AfterStore != nil {
		r.hooks.AfterStore(client, req)
	}
	return newID
}

// ClientForTransaction looks up the owning client for a transaction id.
func (r *Registry[C]) ClientForTransaction(txID int32) (*ClientInfo[C], bool) {
	entry, ok := r.txIndex[txID]
	return entry.client, ok
}

// RequestForTransaction looks up the request for a transaction id.
func (r *Registry[C]) RequestForTransaction(txID int32) (*ClientRequest, bool) {
	entry, ok := r.txIndex[txID]
	return entry.req, ok
}

// ForEachTransaction iterates every live (client, request) pair. Used by
// the lock manager to recompute needsLockUid (§4.7).
func (r *Registry[C]) ForEachTransaction(fn func(client *ClientInfo[C], req *ClientRequest)) {
	for _, entry := range r.txIndex {
		fn(entry.client, entry.req)
	}
}

// TransactionCount reports the number of live transactions, for tests and
// the plain-text dump.
func (r *Registry[C]) TransactionCount() int {
	return len(r.txIndex)
}

// ClientCount reports the number of connected clients.
func (r *Registry[C]) ClientCount() int {
	return len(r.clients)
}

// CheckInvariant verifies the structural invariant from §8 property 1: a
// transactionId is present in the transaction index iff some ClientInfo
// holds a request with that id. Intended for use from tests.
func (r *Registry[C]) CheckInvariant() error {
	seen := make(map[int32]bool, len(r.txIndex))
	for _, client := range r.clients {
		for _, req := range client.Requests {
			seen[req.TransactionID] = true
			if _, ok := r.txIndex[req.TransactionID]; !ok {
				return &invariantError{txID: req.TransactionID, reason: "present in client but not in transaction index"}
			}
		}
	}
	for txID := range r.txIndex {
		if !seen[txID] {
			return &invariantError{txID: txID, reason: "present in transaction index but no client holds it"}
		}
	}
	return nil
}

type invariantError struct {
	txID   int32
	reason string
}

func (e *invariantError) Error() string {
	return fmt.Sprintf("registry: transaction %d: %s", e.txID, e.reason)
}
