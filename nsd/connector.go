package nsd

import (
	"github.com/nsdservice/nsdd/internal/modern"
	"github.com/nsdservice/nsdd/internal/offload"
	"github.com/nsdservice/nsdd/internal/registry"
)

// Connector is the per-connector RPC surface (§6 "Client RPC surface").
// It is returned by Connect and is the only handle client code holds;
// every method enqueues work onto the owning Machine's event loop.
type Connector struct {
	m    *Machine
	info *registry.ClientInfo[Callback]
}

// Connect registers a new client channel (REGISTER_CLIENT, §3 lifecycle)
// and returns its Connector. uid identifies the calling process; set
// useModernBackend to record the client's backend opt-in hint.
func Connect(m *Machine, cb Callback, uid int32, useModernBackend bool) *Connector {
	conn := &Connector{m: m}
	done := make(chan struct{})
	m.enqueue(func() {
		conn.info = m.reg.RegisterClient(cb, uid, useModernBackend, m.log.With("uid", uid))
		m.dump.logf("client connected: uid=%d modern=%v", uid, useModernBackend)
		close(done)
	})
	<-done
	return conn
}

// Disconnect unregisters the client (UNREGISTER_CLIENT), expunging every
// outstanding request: cancelling backend operations, emitting metrics, and
// releasing lock contributions.
func (c *Connector) Disconnect() {
	done := make(chan struct{})
	c.m.enqueue(func() {
		c.m.unregisterClient(c.info)
		close(done)
	})
	<-done
}

// NotifyDeath is the death-notification path for a remote callback channel
// that has gone away without an explicit Disconnect — equivalent cleanup
// (§5 "client-channel death").
func (c *Connector) NotifyDeath() {
	c.Disconnect()
}

func (m *Machine) unregisterClient(client *registry.ClientInfo[Callback]) {
	if client.IsPreS {
		m.preSClients--
	}
	if m.limiter != nil {
		m.limiter.Forget(client.ConnectorID)
	}
	m.reg.UnregisterClient(client, func(req *registry.ClientRequest) {
		m.cancelBackendOperation(client, req)
	})
	m.dump.logf("client disconnected: uid=%d", client.UID)
}

// DiscoverServices issues DISCOVER_SERVICES for serviceType under
// clientRequestID (§4.4).
func (c *Connector) DiscoverServices(clientRequestID uint16, serviceType string) {
	c.m.enqueue(func() { c.m.handleDiscoverServices(c.info, clientRequestID, serviceType) })
}

// StopDiscovery issues STOP_DISCOVERY for clientRequestID.
func (c *Connector) StopDiscovery(clientRequestID uint16) {
	c.m.enqueue(func() { c.m.handleStopDiscovery(c.info, clientRequestID) })
}

// RegisterService issues REGISTER_SERVICE.
func (c *Connector) RegisterService(clientRequestID uint16, instanceName, serviceType string, port int, txt []byte, requestedNetwork *Network) {
	c.m.enqueue(func() {
		c.m.handleRegisterService(c.info, clientRequestID, instanceName, serviceType, port, txt, requestedNetwork)
	})
}

// UnregisterService issues UNREGISTER_SERVICE.
func (c *Connector) UnregisterService(clientRequestID uint16) {
	c.m.enqueue(func() { c.m.handleUnregisterService(c.info, clientRequestID) })
}

// ResolveService issues RESOLVE_SERVICE.
func (c *Connector) ResolveService(clientRequestID uint16, instanceName, serviceType string) {
	c.m.enqueue(func() { c.m.handleResolveService(c.info, clientRequestID, instanceName, serviceType) })
}

// StopResolution issues STOP_RESOLUTION.
func (c *Connector) StopResolution(clientRequestID uint16) {
	c.m.enqueue(func() { c.m.handleStopResolution(c.info, clientRequestID) })
}

// RegisterServiceInfoCallback issues REGISTER_SERVICE_CALLBACK.
func (c *Connector) RegisterServiceInfoCallback(clientRequestID uint16, serviceType string) {
	c.m.enqueue(func() { c.m.handleRegisterServiceCallback(c.info, clientRequestID, serviceType) })
}

// UnregisterServiceInfoCallback issues UNREGISTER_SERVICE_CALLBACK.
func (c *Connector) UnregisterServiceInfoCallback(clientRequestID uint16) {
	c.m.enqueue(func() { c.m.handleUnregisterServiceCallback(c.info, clientRequestID) })
}

// RegisterOffloadEngine issues REGISTER_OFFLOAD_ENGINE.
func (c *Connector) RegisterOffloadEngine(interfaceName string, typeBits uint32, cb offload.Callback) {
	c.m.enqueue(func() { c.m.handleRegisterOffloadEngine(interfaceName, typeBits, cb) })
}

// UnregisterOffloadEngine issues UNREGISTER_OFFLOAD_ENGINE.
func (c *Connector) UnregisterOffloadEngine(interfaceName string, typeBits uint32, cb offload.Callback) {
	c.m.enqueue(func() { c.m.handleUnregisterOffloadEngine(interfaceName, typeBits, cb) })
}

// StartDaemon issues DAEMON_STARTUP: marks this client pre-S, cancels any
// scheduled daemon stop, and starts the legacy daemon.
func (c *Connector) StartDaemon() {
	c.m.enqueue(func() { c.m.handleDaemonStartup(c.info) })
}

// AdvertiserMetrics reports the modern engine's current advertising health,
// or the zero value if no modern engine is configured.
func (c *Connector) AdvertiserMetrics() modern.AdvertiserMetrics {
	done := make(chan modern.AdvertiserMetrics, 1)
	c.m.enqueue(func() {
		if c.m.modern == nil {
			done <- modern.AdvertiserMetrics{}
			return
		}
		done <- c.m.modern.GetAdvertiserMetrics()
	})
	return <-done
}
