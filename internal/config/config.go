// Package config loads the orchestrator's feature-flag configuration (§6)
// through viper, the layered env+file config library this pack's
// marmos91-dittofs repo uses, and exposes it as a read-only snapshot the
// state machine treats as immutable for the lifetime of one Config value.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a point-in-time snapshot of the orchestrator's feature flags.
// A new Config is produced on load or reload; nothing in this package
// mutates a Config after Load returns it.
type Config struct {
	// DiscoveryManagerVersion and AdvertiserVersion are the global
	// modern-backend flags (mdns_discovery_manager_version,
	// mdns_advertiser_version).
	DiscoveryManagerVersion bool
	AdvertiserVersion       bool

	// TypeAllowlist maps a service type to its allowlist tag, parsed from
	// mdns_type_allowlist_flags ("_foo._tcp:foo,_bar._tcp:bar").
	TypeAllowlist map[string]string

	// DiscoveryManagerAllowlist and AdvertiserAllowlist map a tag to
	// whether that tag's per-type flag is enabled
	// (mdns_discovery_manager_allowlist_<tag>_version,
	// mdns_advertiser_allowlist_<tag>_version).
	DiscoveryManagerAllowlist map[string]bool
	AdvertiserAllowlist       map[string]bool

	// RunningAppActiveImportanceCutoff is the importance threshold below
	// which a uid counts as "active" for the lock manager
	// (mdns_config_running_app_active_importance_cutoff).
	RunningAppActiveImportanceCutoff int32

	// DaemonCleanupDelay is the legacy-daemon quiescence delay carried in
	// the snapshot (§4.3, default 10s). nsd.Machine does not read this
	// field; its delay is set with nsd.WithDaemonCleanupDelay.
	DaemonCleanupDelay time.Duration
}

const (
	keyDiscoveryManagerVersion = "mdns_discovery_manager_version"
	keyAdvertiserVersion       = "mdns_advertiser_version"
	keyTypeAllowlistFlags      = "mdns_type_allowlist_flags"
	keyImportanceCutoff        = "mdns_config_running_app_active_importance_cutoff"
	discoveryAllowlistPrefix   = "mdns_discovery_manager_allowlist_"
	discoveryAllowlistSuffix   = "_version"
	advertiserAllowlistPrefix  = "mdns_advertiser_allowlist_"
	advertiserAllowlistSuffix  = "_version"
)

// Default returns the zero-value configuration: both modern-backend flags
// off, empty allowlists, the default daemon cleanup delay.
func Default() *Config {
	return &Config{
		TypeAllowlist:             map[string]string{},
		DiscoveryManagerAllowlist: map[string]bool{},
		AdvertiserAllowlist:       map[string]bool{},
		DaemonCleanupDelay:        10 * time.Second,
	}
}

// Load reads the configuration keys from §6 via viper, layering environment
// variables over an optional config file at path (ignored if empty or
// missing). Per-type allowlist flags are discovered by scanning every key
// viper knows about for the allowlist prefixes, since their tag suffix is
// open-ended.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := Default()
	cfg.DiscoveryManagerVersion = v.GetBool(keyDiscoveryManagerVersion)
	cfg.AdvertiserVersion = v.GetBool(keyAdvertiserVersion)
	cfg.TypeAllowlist = parseTypeAllowlist(v.GetString(keyTypeAllowlistFlags))

	if cutoff := v.GetInt32(keyImportanceCutoff); cutoff != 0 {
		cfg.RunningAppActiveImportanceCutoff = cutoff
	}

	// Per-type allowlist keys have an open-ended <tag> segment, so they
	// can't be pre-registered with viper the way the fixed keys above are.
	// viper's AllSettings only enumerates keys it already knows about
	// (file contents, or env vars it has been asked for by name), so we
	// additionally scan the file settings and the process environment
	// directly for the two prefixes.
	scanAllowlistKeys(v.AllSettings(), cfg)
	scanAllowlistEnv(os.Environ(), cfg)

	return cfg, nil
}

func scanAllowlistKeys(settings map[string]any, cfg *Config) {
	for key, val := range settings {
		assignAllowlistKey(strings.ToLower(key), fmt.Sprint(val), cfg)
	}
}

func scanAllowlistEnv(environ []string, cfg *Config) {
	for _, kv := range environ {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			continue
		}
		assignAllowlistKey(strings.ToLower(kv[:idx]), kv[idx+1:], cfg)
	}
}

func assignAllowlistKey(lowerKey, rawVal string, cfg *Config) {
	val, _ := strconv.ParseBool(rawVal)
	switch {
	case strings.HasPrefix(lowerKey, discoveryAllowlistPrefix) && strings.HasSuffix(lowerKey, discoveryAllowlistSuffix):
		tag := strings.TrimSuffix(strings.TrimPrefix(lowerKey, discoveryAllowlistPrefix), discoveryAllowlistSuffix)
		cfg.DiscoveryManagerAllowlist[tag] = val
	case strings.HasPrefix(lowerKey, advertiserAllowlistPrefix) && strings.HasSuffix(lowerKey, advertiserAllowlistSuffix):
		tag := strings.TrimSuffix(strings.TrimPrefix(lowerKey, advertiserAllowlistPrefix), advertiserAllowlistSuffix)
		cfg.AdvertiserAllowlist[tag] = val
	}
}

// parseTypeAllowlist parses "type:tag,type2:tag2" into a type→tag map,
// skipping malformed entries rather than failing the whole load.
func parseTypeAllowlist(raw string) map[string]string {
	out := map[string]string{}
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		out[pair[:idx]] = pair[idx+1:]
	}
	return out
}

// TagFor returns the allowlist tag configured for a service type, if any.
func (c *Config) TagFor(serviceType string) (string, bool) {
	tag, ok := c.TypeAllowlist[serviceType]
	return tag, ok
}

// DiscoveryManagerAllowlisted reports whether serviceType's tag (if any) has
// its discovery-manager allowlist flag enabled.
func (c *Config) DiscoveryManagerAllowlisted(serviceType string) bool {
	tag, ok := c.TagFor(serviceType)
	if !ok {
		return false
	}
	return c.DiscoveryManagerAllowlist[tag]
}

// AdvertiserAllowlisted reports whether serviceType's tag (if any) has its
// advertiser allowlist flag enabled.
func (c *Config) AdvertiserAllowlisted(serviceType string) bool {
	tag, ok := c.TagFor(serviceType)
	if !ok {
		return false
	}
	return c.AdvertiserAllowlist[tag]
}
