package nsd

import (
	"context"
	"log/slog"
	"time"

	"github.com/nsdservice/nsdd/internal/config"
	"github.com/nsdservice/nsdd/internal/legacy"
	"github.com/nsdservice/nsdd/internal/lock"
	"github.com/nsdservice/nsdd/internal/metrics"
	"github.com/nsdservice/nsdd/internal/modern"
	"github.com/nsdservice/nsdd/internal/offload"
	"github.com/nsdservice/nsdd/internal/ratelimit"
	"github.com/nsdservice/nsdd/internal/registry"
)

// StateBroadcaster is the external collaborator that turns
// NSD_STATE_CHANGED/NSD_STATE_ENABLED into whatever sticky-intent mechanism
// the surrounding platform uses (§6 "Broadcasts").
type StateBroadcaster interface {
	BroadcastStateEnabled()
}

// Option configures a Machine at construction time.
type Option func(*Machine) error

// WithConfig supplies the feature-flag snapshot (§6). Default() is used if
// this option is never applied.
func WithConfig(cfg *config.Config) Option {
	return func(m *Machine) error { m.cfg = cfg; return nil }
}

// WithMetrics supplies the metrics sink. metrics.Noop{} is used otherwise.
func WithMetrics(sink metrics.Sink) Option {
	return func(m *Machine) error { m.metricsSink = sink; return nil }
}

// WithLegacyDaemon supplies the legacy native daemon collaborator.
func WithLegacyDaemon(d legacy.Daemon) Option {
	return func(m *Machine) error { m.daemon = d; return nil }
}

// WithModernEngine supplies the modern in-process mDNS engine collaborator.
func WithModernEngine(e modern.Engine) Option {
	return func(m *Machine) error { m.engine = e; return nil }
}

// WithLinkPropertyProvider supplies the Network→interface-index resolver.
func WithLinkPropertyProvider(p LinkPropertyProvider) Option {
	return func(m *Machine) error { m.linkProvider = p; return nil }
}

// WithStateBroadcaster supplies the NSD_STATE_ENABLED broadcaster.
func WithStateBroadcaster(b StateBroadcaster) Option {
	return func(m *Machine) error { m.broadcaster = b; return nil }
}

// WithLogger overrides the default slog logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) error { m.log = log; return nil }
}

// WithRateLimit enables the optional per-client submission rate limit
// (disabled by default, §9). perSecond <= 0 leaves it disabled.
func WithRateLimit(perSecond float64, burst, maxEntries int) Option {
	return func(m *Machine) error {
		m.limiter = ratelimit.New(perSecond, burst, maxEntries)
		return nil
	}
}

// WithDaemonCleanupDelay overrides the legacy-daemon quiescence delay
// (default 10s, §4.3/§5).
func WithDaemonCleanupDelay(d time.Duration) Option {
	return func(m *Machine) error { m.cleanupDelay = d; return nil }
}

// Machine is the single-writer state machine (§4.4, §5). Every exported
// method except Run is safe to call from any goroutine: each one only
// builds a closure and hands it to the event loop.
type Machine struct {
	reg        *registry.Registry[Callback]
	lockMgr    *lock.Manager
	offloadReg *offload.Registry
	legacy     *legacy.Adapter
	modern     *modern.Adapter

	cfg          *config.Config
	metricsSink  metrics.Sink
	limiter      *ratelimit.Limiter
	linkProvider LinkPropertyProvider
	broadcaster  StateBroadcaster
	log          *slog.Logger

	daemon legacy.Daemon
	engine modern.Engine

	cleanupDelay time.Duration
	cleanupTimer *time.Timer

	actions chan func()
	stopped chan struct{}

	enabled           bool
	preSClients       int
	offloadEntries    map[offload.Callback]*offload.Entry
	advertisedOffload map[int32]offload.ServiceInfo
	dump              *dumpLog
}

// New constructs a Machine, wiring the registry, lock manager, offload
// registry, and backend adapters together. The returned Machine is not yet
// running — call Run on its own goroutine.
func New(opts ...Option) (*Machine, error) {
	m := &Machine{
		cfg:          config.Default(),
		metricsSink:  metrics.Noop{},
		log:          slog.Default(),
		cleanupDelay: 10 * time.Second,
		actions:      make(chan func(), 64),
		stopped:      make(chan struct{}),
		enabled:      true,
		dump:         newDumpLog(256),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.reg = registry.New[Callback](registry.Hooks[Callback]{
		AfterStore:  m.afterStore,
		AfterRemove: m.afterRemove,
	})
	m.lockMgr = lock.New(m.acquireLock, m.releaseLock, m.log)
	m.offloadReg = offload.New(m.log)

	if m.daemon != nil {
		m.legacy = legacy.New(m.daemon, m.postLegacyEvent, m.log)
	}
	if m.engine != nil {
		m.modern = modern.New(m.engine, m.log)
	}

	return m, nil
}

// Run drains the action queue until ctx is cancelled.
// It must run on exactly one goroutine for the lifetime of the Machine —
// every mutation in this package happens only from within an action.
func (m *Machine) Run(ctx context.Context) {
	defer close(m.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case action := <-m.actions:
			action()
		}
	}
}

// Shutdown blocks until Run has returned. It does not stop the loop itself;
// cancel the context passed to Run to do that.
func (m *Machine) Shutdown() {
	<-m.stopped
}

// enqueue hands a closure to the event loop. Safe from any goroutine.
func (m *Machine) enqueue(action func()) {
	m.actions <- action
}

func (m *Machine) acquireLock() {
	m.metricsSink.LockAcquired()
	m.dump.logf("multicast lock acquired")
}

func (m *Machine) releaseLock() {
	m.metricsSink.LockReleased()
	m.dump.logf("multicast lock released")
}

// broadcastOffloadUpdate is the advertiser-side event source for §4.8: every
// successful advertisement (either backend) is pushed to registered offload
// engines, and the snapshot used for REGISTER_OFFLOAD_ENGINE replay is kept
// through the same call.
func (m *Machine) broadcastOffloadUpdate(txID int32, instanceName, serviceType string, port int, txt []byte, net *Network) {
	info := offload.ServiceInfo{
		InterfaceName: networkKey(net),
		TypeBits:      offloadTypeBits(serviceType),
		Key:           instanceName + "." + serviceType,
		Payload: advertisedServicePayload{
			InstanceName: instanceName,
			ServiceType:  serviceType,
			Port:         port,
			TXT:          txt,
		},
	}
	if m.advertisedOffload == nil {
		m.advertisedOffload = make(map[int32]offload.ServiceInfo)
	}
	m.advertisedOffload[txID] = info
	m.offloadReg.BroadcastUpdate(context.Background(), info)
}

// broadcastOffloadStop is the counterpart fired when an advertisement is
// withdrawn, either explicitly (UNREGISTER_SERVICE) or via client teardown.
// It's a no-op for a transaction that was never advertised through
// broadcastOffloadUpdate.
func (m *Machine) broadcastOffloadStop(txID int32) {
	info, ok := m.advertisedOffload[txID]
	if !ok {
		return
	}
	delete(m.advertisedOffload, txID)
	m.offloadReg.BroadcastStop(context.Background(), info)
}

// recomputeLock rebuilds the lock-manager's view of live modern requests
// and re-evaluates needsLockUid (§4.7). Must run on the event-loop goroutine.
func (m *Machine) recomputeLock() {
	var entries []lock.Entry
	m.reg.ForEachTransaction(func(client *registry.ClientInfo[Callback], req *registry.ClientRequest) {
		if req.Backend != registry.BackendModern {
			return
		}
		entries = append(entries, lock.Entry{UID: client.UID, Network: req.RequestedNetwork})
	})
	m.lockMgr.Recompute(entries)
}

// afterStore is the registry hook (§4.3): cancel the daemon-cleanup timer
// for a fresh legacy request, or recompute the lock for a fresh modern one.
func (m *Machine) afterStore(client *registry.ClientInfo[Callback], req *registry.ClientRequest) {
	if req.Kind == registry.KindLegacy {
		m.cancelDaemonCleanup()
	}
	if req.Backend == registry.BackendModern {
		m.recomputeLock()
	}
}

// afterRemove is the registry hook (§4.3): on a legacy request departing,
// consider scheduling the daemon stop; on a modern one, recompute the lock.
func (m *Machine) afterRemove(client *registry.ClientInfo[Callback], req *registry.ClientRequest) {
	if req.Kind == registry.KindLegacy {
		m.considerDaemonCleanup()
	}
	if req.Backend == registry.BackendModern {
		m.recomputeLock()
	}
}

// considerDaemonCleanup schedules stopping the legacy daemon after
// cleanupDelay if no legacy requests remain and no pre-S client is
// connected (§4.3, §4.4 DAEMON_CLEANUP).
func (m *Machine) considerDaemonCleanup() {
	if m.hasLiveLegacyWork() {
		return
	}
	m.cancelDaemonCleanup()
	m.cleanupTimer = time.AfterFunc(m.cleanupDelay, func() {
		m.enqueue(m.handleDaemonCleanupTimer)
	})
}

func (m *Machine) cancelDaemonCleanup() {
	if m.cleanupTimer != nil {
		m.cleanupTimer.Stop()
		m.cleanupTimer = nil
	}
}

func (m *Machine) hasLiveLegacyWork() bool {
	found := false
	m.reg.ForEachTransaction(func(_ *registry.ClientInfo[Callback], req *registry.ClientRequest) {
		if req.Kind == registry.KindLegacy {
			found = true
		}
	})
	return found
}

func (m *Machine) hasPreSClient() bool {
	// ClientCount/ForEachTransaction don't expose clients directly without a
	// live request, so pre-S clients are counted instead: DAEMON_STARTUP
	// sets ClientInfo.IsPreS and increments preSClients, and unregistering a
	// pre-S client decrements it.
	return m.preSClients > 0
}

// handleDaemonCleanupTimer fires when the cleanup delay elapses with no
// intervening legacy activity (§4.4 DAEMON_CLEANUP).
func (m *Machine) handleDaemonCleanupTimer() {
	m.cleanupTimer = nil
	if m.hasLiveLegacyWork() || m.hasPreSClient() {
		m.dump.logf("daemon cleanup timer fired but condition no longer holds, ignoring")
		return
	}
	if m.legacy != nil && m.legacy.Running() {
		if err := m.legacy.Stop(context.Background()); err != nil {
			m.log.Warn("legacy daemon stop failed", "error", err)
		} else {
			m.metricsSink.DaemonStopped()
			m.dump.logf("legacy daemon stopped after quiescence")
		}
	}
}

// Enable transitions Default→Enabled, broadcasting NSD_STATE_ENABLED.
func (m *Machine) Enable() {
	m.enqueue(func() {
		m.enabled = true
		if m.broadcaster != nil {
			m.broadcaster.BroadcastStateEnabled()
		}
		m.dump.logf("state machine entered Enabled")
	})
}

// Disable transitions Enabled→Default, scheduling the daemon stop the same
// way natural quiescence does (§4.4 "On exit: schedules daemon stop").
func (m *Machine) Disable() {
	m.enqueue(func() {
		m.enabled = false
		m.considerDaemonCleanup()
		m.dump.logf("state machine returned to Default")
	})
}

// Dump returns a plain-text, reverse-chronological log of recent
// transitions and service events (§6 "Dump").
func (m *Machine) Dump() string {
	done := make(chan string, 1)
	m.enqueue(func() {
		done <- m.dump.render(m.reg.TransactionCount(), m.reg.ClientCount(), m.lockMgr.Held())
	})
	return <-done
}
