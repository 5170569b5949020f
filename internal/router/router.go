// Package router implements the per-request backend selection table
// (§4.4): for every verb except REGISTER_SERVICE_CALLBACK (always modern),
// the modern engine is chosen if the client opted in, the relevant global
// feature flag is on, or the specific service type is allowlisted.
// Otherwise the legacy daemon handles it.
package router

import (
	"github.com/nsdservice/nsdd/internal/config"
	"github.com/nsdservice/nsdd/internal/registry"
)

// Verb identifies which operation is being routed, since the discovery and
// advertiser feature flags/allowlists are independent.
type Verb int

const (
	VerbDiscover Verb = iota
	VerbRegister
	VerbResolve
	VerbServiceCallback
)

// Select returns the backend a request should be routed to.
func Select(verb Verb, cfg *config.Config, serviceType string, clientOptedModern bool) registry.Backend {
	if verb == VerbServiceCallback {
		return registry.BackendModern
	}
	if clientOptedModern {
		return registry.BackendModern
	}
	if usesDiscoveryManager(verb) {
		if cfg.DiscoveryManagerVersion || cfg.DiscoveryManagerAllowlisted(serviceType) {
			return registry.BackendModern
		}
		return registry.BackendLegacy
	}
	// VerbRegister routes through the advertiser flag/allowlist.
	if cfg.AdvertiserVersion || cfg.AdvertiserAllowlisted(serviceType) {
		return registry.BackendModern
	}
	return registry.BackendLegacy
}

func usesDiscoveryManager(verb Verb) bool {
	return verb == VerbDiscover || verb == VerbResolve
}
