package router

import (
	"testing"

	"github.com/nsdservice/nsdd/internal/config"
	"github.com/nsdservice/nsdd/internal/registry"
)

func TestSelect_ServiceCallbackAlwaysModern(t *testing.T) {
	cfg := config.Default()
	if got := Select(VerbServiceCallback, cfg, "_foo._tcp", false); got != registry.BackendModern {
		t.Fatalf("got %v, want modern", got)
	}
}

func TestSelect_ClientOptIn(t *testing.T) {
	cfg := config.Default()
	if got := Select(VerbDiscover, cfg, "_foo._tcp", true); got != registry.BackendModern {
		t.Fatalf("got %v, want modern", got)
	}
}

func TestSelect_TypeAllowlistOverridesGlobalFlag(t *testing.T) {
	// S5: mdns_type_allowlist_flags = "_foo._tcp:foo",
	// mdns_discovery_manager_allowlist_foo_version = true, global flag false.
	cfg := config.Default()
	cfg.TypeAllowlist["_foo._tcp"] = "foo"
	cfg.DiscoveryManagerAllowlist["foo"] = true

	if got := Select(VerbDiscover, cfg, "_foo._tcp", false); got != registry.BackendModern {
		t.Fatalf("_foo._tcp: got %v, want modern", got)
	}
	if got := Select(VerbDiscover, cfg, "_bar._tcp", false); got != registry.BackendLegacy {
		t.Fatalf("_bar._tcp: got %v, want legacy", got)
	}
}

func TestSelect_DefaultsToLegacy(t *testing.T) {
	cfg := config.Default()
	if got := Select(VerbRegister, cfg, "_foo._tcp", false); got != registry.BackendLegacy {
		t.Fatalf("got %v, want legacy", got)
	}
}

func TestSelect_AdvertiserFlagIndependentOfDiscovery(t *testing.T) {
	cfg := config.Default()
	cfg.AdvertiserVersion = true
	if got := Select(VerbRegister, cfg, "_foo._tcp", false); got != registry.BackendModern {
		t.Fatalf("got %v, want modern", got)
	}
	if got := Select(VerbDiscover, cfg, "_foo._tcp", false); got != registry.BackendLegacy {
		t.Fatalf("discover should be unaffected by advertiser flag, got %v", got)
	}
}
