package registry

import "log/slog"

// MaxRequestsPerClient is the per-client outstanding-request quota (MAX_LIMIT, §3).
const MaxRequestsPerClient = 10

// ResolvedService is the scratchpad a legacy two-phase resolve populates
// between the SERVICE_RESOLVED and SERVICE_GET_ADDR_SUCCESS/FAILED events.
// It is non-nil only for the lifetime of that chain (§3).
type ResolvedService struct {
	InstanceName string
	ServiceType  string
	Port         int
	TXT          []byte
	Host         string
	Network      *Network
	IfaceIndex   int
}

// ClientInfo is the per-connector state the registry owns. C is the
// concrete outbound-callback type the owning package (nsd) supplies — kept
// generic here so this package never has to know the shape of the client
// RPC surface it is indexing.
type ClientInfo[C any] struct {
	ConnectorID int64
	Callback    C
	UID         int32

	// UsesModernBackend is the client's opt-in hint (§3); the router also
	// consults the global feature flag and the per-type allowlist.
	UsesModernBackend bool

	// IsPreS is set only when the client issues DAEMON_STARTUP (§3); while
	// true, the legacy daemon is kept running even with zero outstanding
	// legacy requests.
	IsPreS bool

	Requests map[uint16]*ClientRequest

	// ResolvedService is non-nil only between a legacy RESOLVE_SERVICE
	// acceptance and its terminal event.
	ResolvedService *ResolvedService

	Log *slog.Logger
}

func newClientInfo[C any](id int64, cb C, uid int32, usesModern bool, log *slog.Logger) *ClientInfo[C] {
	return &ClientInfo[C]{
		ConnectorID:       id,
		Callback:          cb,
		UID:               uid,
		UsesModernBackend: usesModern,
		Requests:          make(map[uint16]*ClientRequest),
		Log:               log,
	}
}

// HasLegacyResolveInFlight reports whether this client already has a legacy
// resolve request outstanding (§4.4 RESOLVE_SERVICE precondition).
func (c *ClientInfo[C]) HasLegacyResolveInFlight() bool {
	for _, req := range c.Requests {
		if req.Kind == KindLegacy && req.LegacyVerb == LegacyResolve {
			return true
		}
	}
	return false
}

// HasModernRequestMatching reports whether this client holds at least one
// modern-backend request whose requested network matches candidate (§4.7).
func (c *ClientInfo[C]) HasModernRequestMatching(candidate *Network) bool {
	for _, req := range c.Requests {
		if req.Backend != BackendModern {
			continue
		}
		if req.RequestedNetwork.Matches(candidate) {
			return true
		}
	}
	return false
}
