package nsd

import (
	"context"
	"hash/fnv"
	"time"
	"unicode/utf8"

	"github.com/nsdservice/nsdd/internal/modern"
	"github.com/nsdservice/nsdd/internal/offload"
	"github.com/nsdservice/nsdd/internal/registry"
	"github.com/nsdservice/nsdd/internal/router"
	"github.com/nsdservice/nsdd/internal/svctype"
)

// advertisedServicePayload is the concrete shape this orchestrator fills
// into an offload broadcast's opaque Payload (§4.8's OffloadServiceInfo is
// opaque to the core beyond InterfaceName/TypeBits).
type advertisedServicePayload struct {
	InstanceName string
	ServiceType  string
	Port         int
	TXT          []byte
}

// offloadTypeBits derives a stable single-bit capability tag from a service
// type string, since neither backend hands the core a real capability
// bitmask (§6 "opaque offloadType bitmask"; this is the core's own
// assignment of one, not a value either backend defines).
func offloadTypeBits(serviceType string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(serviceType))
	return 1 << (h.Sum32() % 32)
}

// requestVerbLabel names req for the RequestDuration metric (§9).
func requestVerbLabel(req *registry.ClientRequest) string {
	switch req.Kind {
	case registry.KindAdvertiser:
		return "register"
	case registry.KindLegacy:
		switch req.LegacyVerb {
		case registry.LegacyDiscover:
			return "discover"
		case registry.LegacyRegister:
			return "register"
		case registry.LegacyResolve:
			return "resolve"
		}
	case registry.KindDiscoveryManager:
		switch req.ModernVerb {
		case registry.ModernDiscover:
			return "discover"
		case registry.ModernResolve:
			return "resolve"
		case registry.ModernWatch:
			return "watch"
		}
	}
	return "unknown"
}

func (m *Machine) recordRequestDuration(req *registry.ClientRequest) {
	m.metricsSink.RequestDuration(requestVerbLabel(req), time.Since(req.StartTime))
}

// truncateUTF8 truncates s to at most maxBytes bytes, never splitting a
// UTF-8 code point (§6 "on registration they are truncated to 63 UTF-8
// bytes (at a code-point boundary)").
func truncateUTF8(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	b := []byte(s)[:maxBytes]
	for len(b) > 0 && !utf8.RuneStart(b[len(b)-1]) {
		b = b[:len(b)-1]
	}
	// Drop a final rune left truncated mid-sequence.
	if len(b) > 0 {
		if r, size := utf8.DecodeLastRune(b); r == utf8.RuneError && size <= 1 {
			b = b[:len(b)-1]
		}
	}
	return string(b)
}

func (m *Machine) selectBackend(verb router.Verb, client *registry.ClientInfo[Callback], serviceType string) registry.Backend {
	return router.Select(verb, m.cfg, serviceType, client.UsesModernBackend)
}

// rateLimited reports whether client has exceeded the optional submission
// rate limit (§9; disabled unless WithRateLimit was applied). A limited
// submission is logged and dropped, the same treatment §7 gives other
// unrecoverable conditions, rather than mapped to a client-visible failure
// code the spec doesn't define for this case.
func (m *Machine) rateLimited(client *registry.ClientInfo[Callback]) bool {
	if m.limiter == nil {
		return false
	}
	if m.limiter.Allow(client.ConnectorID) {
		return false
	}
	m.log.Warn("client submission rate limit exceeded, dropping request", "connector_id", client.ConnectorID)
	return true
}

// handleDiscoverServices implements DISCOVER_SERVICES (§4.4).
func (m *Machine) handleDiscoverServices(client *registry.ClientInfo[Callback], clientRequestID uint16, serviceType string) {
	if !m.enabled {
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureInternalError)
		return
	}
	if m.rateLimited(client) {
		return
	}
	parsed, ok := svctype.Parse(serviceType)
	if !ok {
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureInternalError)
		return
	}

	backend := m.selectBackend(router.VerbDiscover, client, serviceType)
	_, err := m.reg.Store(client, clientRequestID, func(txID int32) *registry.ClientRequest {
		if backend == registry.BackendModern {
			return &registry.ClientRequest{Backend: backend, Kind: registry.KindDiscoveryManager, ModernVerb: registry.ModernDiscover}
		}
		return &registry.ClientRequest{Backend: backend, Kind: registry.KindLegacy, LegacyVerb: registry.LegacyDiscover}
	})
	if err != nil {
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureMaxLimit)
		return
	}
	req := client.Requests[clientRequestID]

	if backend == registry.BackendModern {
		handle, err := m.modern.RegisterListener(serviceType, modern.ListenerOptions{}, m.newModernListener(req.TransactionID))
		if err != nil {
			m.reg.Remove(client, clientRequestID)
			client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureInternalError)
			return
		}
		req.ListenerHandle = handle
	} else {
		if err := m.legacy.Discover(req.TransactionID, parsed.Type); err != nil {
			m.reg.Remove(client, clientRequestID)
			client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureInternalError)
			return
		}
	}

	m.metricsSink.DiscoveryStarted()
	client.Callback.OnDiscoverServicesStarted(clientRequestID, serviceType)
	m.dump.logf("discover started: type=%s tx=%d backend=%s", serviceType, req.TransactionID, backend)
}

// handleStopDiscovery implements STOP_DISCOVERY.
func (m *Machine) handleStopDiscovery(client *registry.ClientInfo[Callback], clientRequestID uint16) {
	req, ok := client.Requests[clientRequestID]
	if !ok {
		m.log.Warn("stop discovery for unknown request", "client_request_id", clientRequestID)
		return
	}
	if err := m.stopBackendRequest(req); err != nil {
		client.Callback.OnStopDiscoveryFailed(clientRequestID, FailureInternalError)
		return
	}
	m.recordRequestDuration(req)
	m.reg.Remove(client, clientRequestID)
	client.Callback.OnStopDiscoverySucceeded(clientRequestID)
}

// handleRegisterService implements REGISTER_SERVICE.
func (m *Machine) handleRegisterService(client *registry.ClientInfo[Callback], clientRequestID uint16, instanceName, serviceType string, port int, txt []byte, requestedNetwork *Network) {
	if !m.enabled {
		client.Callback.OnRegisterServiceFailed(clientRequestID, FailureInternalError)
		return
	}
	if m.rateLimited(client) {
		return
	}
	if _, ok := svctype.Parse(serviceType); !ok {
		client.Callback.OnRegisterServiceFailed(clientRequestID, FailureInternalError)
		return
	}
	instanceName = truncateUTF8(instanceName, 63)

	if requestedNetwork != nil {
		if _, ok := m.resolveInterfaceIndex(requestedNetwork); !ok {
			client.Callback.OnRegisterServiceFailed(clientRequestID, FailureInternalError)
			return
		}
	}

	backend := m.selectBackend(router.VerbRegister, client, serviceType)
	_, err := m.reg.Store(client, clientRequestID, func(txID int32) *registry.ClientRequest {
		if backend == registry.BackendModern {
			return &registry.ClientRequest{Backend: backend, Kind: registry.KindAdvertiser, RequestedNetwork: requestedNetwork}
		}
		return &registry.ClientRequest{Backend: backend, Kind: registry.KindLegacy, LegacyVerb: registry.LegacyRegister, RequestedNetwork: requestedNetwork}
	})
	if err != nil {
		client.Callback.OnRegisterServiceFailed(clientRequestID, FailureMaxLimit)
		return
	}
	req := client.Requests[clientRequestID]

	if backend == registry.BackendModern {
		handle, err := m.modern.AddService(instanceName, serviceType, port, txt)
		if err != nil {
			m.reg.Remove(client, clientRequestID)
			m.metricsSink.RegisterFailed()
			client.Callback.OnRegisterServiceFailed(clientRequestID, FailureInternalError)
			return
		}
		req.ListenerHandle = handle
		m.metricsSink.RegisterSucceeded()
		m.broadcastOffloadUpdate(req.TransactionID, instanceName, serviceType, port, txt, requestedNetwork)
		client.Callback.OnRegisterServiceSucceeded(clientRequestID, ServiceInfo{InstanceName: instanceName, ServiceType: serviceType, Port: port, TXT: txt})
		return
	}
	if err := m.legacy.Register(req.TransactionID, instanceName, serviceType, port, txt); err != nil {
		m.reg.Remove(client, clientRequestID)
		m.metricsSink.RegisterFailed()
		client.Callback.OnRegisterServiceFailed(clientRequestID, FailureInternalError)
		return
	}
	// Legacy register awaits a backend event before reporting success (§4.4).
}

// handleUnregisterService implements UNREGISTER_SERVICE.
func (m *Machine) handleUnregisterService(client *registry.ClientInfo[Callback], clientRequestID uint16) {
	req, ok := client.Requests[clientRequestID]
	if !ok {
		m.log.Warn("unregister service for unknown request", "client_request_id", clientRequestID)
		return
	}
	if err := m.stopBackendRequest(req); err != nil {
		client.Callback.OnUnregisterServiceFailed(clientRequestID, FailureInternalError)
		return
	}
	m.broadcastOffloadStop(req.TransactionID)
	m.recordRequestDuration(req)
	m.reg.Remove(client, clientRequestID)
	client.Callback.OnUnregisterServiceSucceeded(clientRequestID)
}

// handleResolveService implements RESOLVE_SERVICE, including the legacy
// two-phase precondition (§4.4).
func (m *Machine) handleResolveService(client *registry.ClientInfo[Callback], clientRequestID uint16, instanceName, serviceType string) {
	if !m.enabled {
		client.Callback.OnResolveServiceFailed(clientRequestID, FailureInternalError)
		return
	}
	if m.rateLimited(client) {
		return
	}
	parsed, ok := svctype.Parse(serviceType)
	if !ok {
		client.Callback.OnResolveServiceFailed(clientRequestID, FailureInternalError)
		return
	}

	backend := m.selectBackend(router.VerbResolve, client, serviceType)
	if backend == registry.BackendLegacy && client.HasLegacyResolveInFlight() {
		client.Callback.OnResolveServiceFailed(clientRequestID, FailureAlreadyActive)
		return
	}

	_, err := m.reg.Store(client, clientRequestID, func(txID int32) *registry.ClientRequest {
		if backend == registry.BackendModern {
			return &registry.ClientRequest{Backend: backend, Kind: registry.KindDiscoveryManager, ModernVerb: registry.ModernResolve}
		}
		return &registry.ClientRequest{Backend: backend, Kind: registry.KindLegacy, LegacyVerb: registry.LegacyResolve}
	})
	if err != nil {
		client.Callback.OnResolveServiceFailed(clientRequestID, FailureMaxLimit)
		return
	}
	req := client.Requests[clientRequestID]

	if backend == registry.BackendModern {
		handle, err := m.modern.RegisterListener(serviceType, modern.ListenerOptions{}, m.newModernListener(req.TransactionID))
		if err != nil {
			m.reg.Remove(client, clientRequestID)
			client.Callback.OnResolveServiceFailed(clientRequestID, FailureInternalError)
			return
		}
		req.ListenerHandle = handle
		return
	}

	client.ResolvedService = &registry.ResolvedService{InstanceName: instanceName, ServiceType: parsed.Type}
	if err := m.legacy.Resolve(req.TransactionID, instanceName, parsed.Type); err != nil {
		client.ResolvedService = nil
		m.reg.Remove(client, clientRequestID)
		client.Callback.OnResolveServiceFailed(clientRequestID, FailureInternalError)
		return
	}
}

// handleStopResolution implements STOP_RESOLUTION.
func (m *Machine) handleStopResolution(client *registry.ClientInfo[Callback], clientRequestID uint16) {
	req, ok := client.Requests[clientRequestID]
	if !ok {
		client.Callback.OnStopResolutionFailed(clientRequestID, FailureOperationNotRunning)
		return
	}
	if err := m.stopBackendRequest(req); err != nil {
		client.Callback.OnStopResolutionFailed(clientRequestID, FailureInternalError)
		return
	}
	m.recordRequestDuration(req)
	m.reg.Remove(client, clientRequestID)
	if req.Kind == registry.KindLegacy {
		client.ResolvedService = nil
	}
	client.Callback.OnStopResolutionSucceeded(clientRequestID)
}

// handleRegisterServiceCallback implements REGISTER_SERVICE_CALLBACK: always
// the modern engine (§4.4).
func (m *Machine) handleRegisterServiceCallback(client *registry.ClientInfo[Callback], clientRequestID uint16, serviceType string) {
	if _, ok := svctype.Parse(serviceType); !ok {
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureBadParameters)
		return
	}
	_, err := m.reg.Store(client, clientRequestID, func(txID int32) *registry.ClientRequest {
		return &registry.ClientRequest{Backend: registry.BackendModern, Kind: registry.KindDiscoveryManager, ModernVerb: registry.ModernWatch}
	})
	if err != nil {
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureMaxLimit)
		return
	}
	req := client.Requests[clientRequestID]
	handle, err := m.modern.RegisterListener(serviceType, modern.ListenerOptions{}, m.newModernListener(req.TransactionID))
	if err != nil {
		m.reg.Remove(client, clientRequestID)
		client.Callback.OnDiscoverServicesFailed(clientRequestID, FailureInternalError)
		return
	}
	req.ListenerHandle = handle
	client.Callback.OnServiceInfoCallbackRegistered(clientRequestID)
}

// handleUnregisterServiceCallback implements UNREGISTER_SERVICE_CALLBACK.
func (m *Machine) handleUnregisterServiceCallback(client *registry.ClientInfo[Callback], clientRequestID uint16) {
	req, ok := client.Requests[clientRequestID]
	if !ok || req.Kind != registry.KindDiscoveryManager {
		m.log.Info("unregister service callback: other variant present, ignoring", "client_request_id", clientRequestID)
		return
	}
	if err := m.stopBackendRequest(req); err != nil {
		client.Callback.OnServiceInfoCallbackUnregistrationFailed(clientRequestID, FailureInternalError)
		return
	}
	m.recordRequestDuration(req)
	m.reg.Remove(client, clientRequestID)
	client.Callback.OnServiceInfoCallbackUnregistered(clientRequestID)
}

// handleRegisterOffloadEngine implements REGISTER_OFFLOAD_ENGINE (§4.8).
func (m *Machine) handleRegisterOffloadEngine(interfaceName string, typeBits uint32, cb offload.Callback) {
	entry := m.offloadReg.Register(interfaceName, typeBits, cb)
	if m.offloadEntries == nil {
		m.offloadEntries = make(map[offload.Callback]*offload.Entry)
	}
	m.offloadEntries[cb] = entry
}

// handleUnregisterOffloadEngine implements UNREGISTER_OFFLOAD_ENGINE.
func (m *Machine) handleUnregisterOffloadEngine(interfaceName string, typeBits uint32, cb offload.Callback) {
	entry, ok := m.offloadEntries[cb]
	if !ok {
		return
	}
	m.offloadReg.Unregister(entry)
	delete(m.offloadEntries, cb)
}

// handleDaemonStartup implements DAEMON_STARTUP (§4.4).
func (m *Machine) handleDaemonStartup(client *registry.ClientInfo[Callback]) {
	if !client.IsPreS {
		client.IsPreS = true
		m.preSClients++
	}
	m.cancelDaemonCleanup()
	if m.legacy != nil {
		if err := m.legacy.Start(context.Background()); err != nil {
			m.log.Warn("legacy daemon start failed", "error", err)
			return
		}
		m.metricsSink.DaemonStarted()
	}
}

// stopBackendRequest cancels the backend operation a request started,
// dispatching to the right adapter by Kind/Backend.
func (m *Machine) stopBackendRequest(req *registry.ClientRequest) error {
	switch {
	case req.Kind == registry.KindLegacy:
		return m.legacy.StopOperation(req.TransactionID)
	case req.ListenerHandle != nil && m.modern != nil:
		return m.modern.UnregisterListener(req.ListenerHandle)
	default:
		return nil
	}
}

// cancelBackendOperation is the onEach callback UnregisterClient invokes
// before expunging a request (§3 "destruction cancels backend operations").
func (m *Machine) cancelBackendOperation(client *registry.ClientInfo[Callback], req *registry.ClientRequest) {
	m.broadcastOffloadStop(req.TransactionID)
	if err := m.stopBackendRequest(req); err != nil {
		m.log.Warn("backend cancel failed during client teardown", "transaction_id", req.TransactionID, "error", err)
	}
}
