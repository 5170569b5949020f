package config

import "testing"

func TestParseTypeAllowlist(t *testing.T) {
	got := parseTypeAllowlist("_foo._tcp:foo,_bar._tcp:bar")
	if got["_foo._tcp"] != "foo" || got["_bar._tcp"] != "bar" {
		t.Fatalf("got %#v", got)
	}
}

func TestParseTypeAllowlist_Empty(t *testing.T) {
	got := parseTypeAllowlist("")
	if len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}

func TestLoad_TypeAllowlistFlagsFromEnv(t *testing.T) {
	t.Setenv("MDNS_TYPE_ALLOWLIST_FLAGS", "_foo._tcp:foo")
	t.Setenv("MDNS_DISCOVERY_MANAGER_ALLOWLIST_FOO_VERSION", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DiscoveryManagerAllowlisted("_foo._tcp") {
		t.Fatalf("expected _foo._tcp to be discovery-manager allowlisted")
	}
	if cfg.AdvertiserAllowlisted("_foo._tcp") {
		t.Fatalf("advertiser allowlist should be unaffected")
	}
	if cfg.DiscoveryManagerAllowlisted("_bar._tcp") {
		t.Fatalf("unrelated type should not be allowlisted")
	}
}
