package registry

import "testing"

type fakeCallback struct {
	id int
}

func newReg() *Registry[*fakeCallback] {
	return New[*fakeCallback](Hooks[*fakeCallback]{})
}

func TestStore_IndexesBothWays(t *testing.T) {
	r := newReg()
	client := r.RegisterClient(&fakeCallback{1}, 1000, false, nil)

	req, err := r.Store(client, 1, func(txID int32) *ClientRequest {
		return &ClientRequest{Kind: KindLegacy, Backend: BackendLegacy}
	})
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if req.TransactionID == 0 {
		t.Fatalf("allocated transaction id must never be 0")
	}

	got, ok := r.ClientForTransaction(req.TransactionID)
	if !ok || got != client {
		t.Fatalf("ClientForTransaction did not round-trip")
	}
	if err := r.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}

	r.Remove(client, 1)
	if err := r.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated after remove: %v", err)
	}
	if _, ok := r.ClientForTransaction(req.TransactionID); ok {
		t.Fatalf("transaction still indexed after Remove")
	}
}

func TestStore_QuotaEnforced(t *testing.T) {
	r := newReg()
	client := r.RegisterClient(&fakeCallback{1}, 1000, false, nil)

	for i := 0; i < MaxRequestsPerClient; i++ {
		_, err := r.Store(client, uint16(i), func(txID int32) *ClientRequest {
			return &ClientRequest{Kind: KindLegacy}
		})
		if err != nil {
			t.Fatalf("request %d unexpectedly rejected: %v", i, err)
		}
	}

	before := r.TransactionCount()
	_, err := r.Store(client, uint16(MaxRequestsPerClient), func(txID int32) *ClientRequest {
		return &ClientRequest{Kind: KindLegacy}
	})
	if err == nil {
		t.Fatalf("11th request should have been rejected")
	}
	if r.TransactionCount() != before {
		t.Fatalf("rejected request mutated the registry: before=%d after=%d", before, r.TransactionCount())
	}
}

func TestTransactionIDs_MonotoneAndNeverZero(t *testing.T) {
	r := newReg()
	client := r.RegisterClient(&fakeCallback{1}, 1000, false, nil)

	var last int32
	for i := 0; i < 50; i++ {
		req, err := r.Store(client, uint16(i%MaxRequestsPerClient)+1000, func(txID int32) *ClientRequest {
			return &ClientRequest{Kind: KindLegacy}
		})
		if err != nil {
			continue
		}
		if req.TransactionID == 0 {
			t.Fatalf("transaction id 0 allocated")
		}
		if req.TransactionID <= last {
			t.Fatalf("transaction ids not monotone: %d then %d", last, req.TransactionID)
		}
		last = req.TransactionID
		r.Remove(client, req.ClientRequestID)
	}
}

func TestUnregisterClient_ExpungesEverything(t *testing.T) {
	r := newReg()
	client := r.RegisterClient(&fakeCallback{1}, 1000, false, nil)
	for i := 0; i < 3; i++ {
		_, _ = r.Store(client, uint16(i), func(txID int32) *ClientRequest {
			return &ClientRequest{Kind: KindLegacy}
		})
	}

	var cancelled int
	r.UnregisterClient(client, func(req *ClientRequest) { cancelled++ })

	if cancelled != 3 {
		t.Fatalf("expected 3 cancellations, got %d", cancelled)
	}
	if r.ClientCount() != 0 || r.TransactionCount() != 0 {
		t.Fatalf("client/transaction state not fully cleaned up")
	}
	if err := r.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestCounters_FromCacheIsSticky(t *testing.T) {
	var c Counters
	c.MarkFromCache(true)
	c.MarkFromCache(false)
	if !c.FromCache() {
		t.Fatalf("isServiceFromCache reverted to false")
	}
}

func TestCounters_UniqueNamesCapped(t *testing.T) {
	var c Counters
	for i := 0; i < MaxUniqueNames+50; i++ {
		c.NoteUniqueName(string(rune('a' + i%26)))
	}
	if c.UniqueNameCount() > MaxUniqueNames {
		t.Fatalf("unique name count %d exceeds cap %d", c.UniqueNameCount(), MaxUniqueNames)
	}
}
