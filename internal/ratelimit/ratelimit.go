// Package ratelimit throttles per-client request submission (spec.md §9
// optional submission rate limit, disabled by default). It keeps the
// teacher security package's bounded-map-with-LRU-eviction shape
// (internal/security.RateLimiter) but replaces the hand-rolled sliding
// window counter with golang.org/x/time/rate, since the corpus already
// reaches for that library for exactly this.
package ratelimit

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Limiter bounds how many Store() calls a single client connector may make
// per second, tracked in a capped LRU so a churn of short-lived clients
// can't grow the tracking map without bound.
type Limiter struct {
	perSecond float64
	burst     int
	byClient  *lru.Cache[int64, *rate.Limiter]
}

// New constructs a Limiter. maxEntries bounds the number of distinct
// clients tracked at once (oldest evicted first). perSecond <= 0 disables
// limiting: Allow always returns true.
func New(perSecond float64, burst int, maxEntries int) *Limiter {
	cache, _ := lru.New[int64, *rate.Limiter](maxEntries)
	return &Limiter{perSecond: perSecond, burst: burst, byClient: cache}
}

// Allow reports whether connectorID may submit another request right now.
func (l *Limiter) Allow(connectorID int64) bool {
	if l.perSecond <= 0 {
		return true
	}
	lim, ok := l.byClient.Get(connectorID)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perSecond), l.burst)
		l.byClient.Add(connectorID, lim)
	}
	return lim.Allow()
}

// Forget drops any tracked state for connectorID, called on client death.
func (l *Limiter) Forget(connectorID int64) {
	l.byClient.Remove(connectorID)
}
