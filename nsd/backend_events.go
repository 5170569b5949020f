package nsd

import (
	"strings"

	"github.com/nsdservice/nsdd/internal/escape"
	"github.com/nsdservice/nsdd/internal/legacy"
	"github.com/nsdservice/nsdd/internal/modern"
	"github.com/nsdservice/nsdd/internal/registry"
)

// postLegacyEvent is the post func handed to legacy.New: it is called from
// the daemon's own callback thread and must do nothing but enqueue onto the
// event loop (§5).
func (m *Machine) postLegacyEvent(ev legacy.Event) {
	m.enqueue(func() { m.handleLegacyEvent(ev) })
}

func (m *Machine) handleLegacyEvent(ev legacy.Event) {
	client, ok := m.reg.ClientForTransaction(ev.TransactionID)
	if !ok {
		return // request already torn down client-side; drop per §7.
	}
	req, _ := m.reg.RequestForTransaction(ev.TransactionID)

	switch ev.Kind {
	case legacy.EventServiceFound, legacy.EventServiceLost:
		m.handleLegacyDiscoveryEvent(client, req, ev)
	case legacy.EventServiceRegistered:
		m.handleLegacyRegistered(client, req, ev)
	case legacy.EventServiceResolved:
		m.handleLegacyResolved(client, req, ev)
	case legacy.EventGetAddrSuccess:
		m.handleLegacyGetAddrSuccess(client, req, ev)
	case legacy.EventFailure:
		m.handleLegacyFailure(client, req, ev)
	}
}

func (m *Machine) handleLegacyDiscoveryEvent(client *registry.ClientInfo[Callback], req *registry.ClientRequest, ev legacy.Event) {
	if discardDiscoveryEvent(ev.NetID) {
		return
	}
	req.Counters.MarkFromCache(ev.FromCache)
	net, _ := attributeNetwork(ev.NetID, ev.IfaceIndex)
	info := ServiceInfo{InstanceName: ev.InstanceName, ServiceType: ev.ServiceType, Network: net, FromCache: req.Counters.FromCache()}

	switch ev.Kind {
	case legacy.EventServiceFound:
		req.Counters.FoundCount++
		req.Counters.NoteUniqueName(ev.InstanceName)
		m.metricsSink.ServiceFound()
		client.Callback.OnServiceFound(req.ClientRequestID, info)
	case legacy.EventServiceLost:
		req.Counters.LostCount++
		m.metricsSink.ServiceLost()
		client.Callback.OnServiceLost(req.ClientRequestID, info)
	}
}

func (m *Machine) handleLegacyRegistered(client *registry.ClientInfo[Callback], req *registry.ClientRequest, ev legacy.Event) {
	m.metricsSink.RegisterSucceeded()
	m.broadcastOffloadUpdate(req.TransactionID, ev.InstanceName, ev.ServiceType, ev.Port, ev.TXT, req.RequestedNetwork)
	client.Callback.OnRegisterServiceSucceeded(req.ClientRequestID, ServiceInfo{
		InstanceName: ev.InstanceName, ServiceType: ev.ServiceType, Port: ev.Port, TXT: ev.TXT,
	})
}

// handleLegacyResolved is phase 1 of the legacy two-phase resolve (§4.4
// step 2): parse the escaped name, populate the scratch, migrate to tx2,
// and issue getAddrInfo.
func (m *Machine) handleLegacyResolved(client *registry.ClientInfo[Callback], req *registry.ClientRequest, ev legacy.Event) {
	instance, svcType, host := splitEscapedResolvedName(ev.InstanceName)

	client.ResolvedService = &registry.ResolvedService{
		InstanceName: instance,
		ServiceType:  svcType,
		Port:         ev.Port,
		TXT:          ev.TXT,
	}

	_ = m.legacy.StopOperation(ev.TransactionID)
	_, removedReq, ok := m.reg.RemoveByTransaction(ev.TransactionID)
	if !ok {
		return
	}

	newTxID := m.reg.Migrate(client, removedReq)
	if err := m.legacy.GetAddrInfo(newTxID, host, ev.IfaceIndex); err != nil {
		client.ResolvedService = nil
		m.reg.Remove(client, removedReq.ClientRequestID)
		client.Callback.OnResolveServiceFailed(removedReq.ClientRequestID, FailureInternalError)
	}
}

// splitEscapedResolvedName splits a fully-escaped "instance.type.domain"
// name, honoring \. and \\ escapes, per §4.4 step 2.
func splitEscapedResolvedName(fullName string) (instance, serviceType, host string) {
	labels := scanEscapedLabels(fullName)
	if len(labels) == 0 {
		return "", "", ""
	}
	instance = escape.Unescape(nil, labels[0])
	if len(labels) > 1 {
		serviceType = strings.Join(labels[1:], ".")
	}
	host = serviceType
	return instance, serviceType, host
}

// scanEscapedLabels splits fullName on unescaped '.' separators, treating
// "\." and "\\" as literal escapes rather than separators/escape starts.
func scanEscapedLabels(fullName string) []string {
	var labels []string
	var cur strings.Builder
	for i := 0; i < len(fullName); i++ {
		c := fullName[i]
		if c == '\\' && i+1 < len(fullName) {
			cur.WriteByte(c)
			cur.WriteByte(fullName[i+1])
			i++
			continue
		}
		if c == '.' {
			labels = append(labels, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	labels = append(labels, cur.String())
	return labels
}

// handleLegacyGetAddrSuccess is phase 2 of the legacy two-phase resolve
// (§4.4 step 3).
func (m *Machine) handleLegacyGetAddrSuccess(client *registry.ClientInfo[Callback], req *registry.ClientRequest, ev legacy.Event) {
	defer func() {
		client.ResolvedService = nil
		m.reg.Remove(client, req.ClientRequestID)
		_ = m.legacy.StopOperation(ev.TransactionID)
	}()

	if ev.NetID == NetIDUnset || ev.Address == "" || client.ResolvedService == nil {
		m.metricsSink.ResolveFailed()
		client.Callback.OnResolveServiceFailed(req.ClientRequestID, FailureInternalError)
		return
	}

	net, _ := attributeNetwork(ev.NetID, ev.IfaceIndex)
	scratch := client.ResolvedService
	m.metricsSink.ResolveSucceeded()
	client.Callback.OnResolveServiceSucceeded(req.ClientRequestID, ServiceInfo{
		InstanceName: scratch.InstanceName,
		ServiceType:  scratch.ServiceType,
		Port:         scratch.Port,
		TXT:          scratch.TXT,
		Host:         ev.Address,
		Network:      net,
	})
}

// handleLegacyFailure implements §4.4 step 4: any failure at either phase
// tears down the current transaction and reports failure.
func (m *Machine) handleLegacyFailure(client *registry.ClientInfo[Callback], req *registry.ClientRequest, ev legacy.Event) {
	client.ResolvedService = nil
	m.broadcastOffloadStop(req.TransactionID)
	m.recordRequestDuration(req)
	m.reg.Remove(client, req.ClientRequestID)
	_ = m.legacy.StopOperation(ev.TransactionID)

	switch req.LegacyVerb {
	case registry.LegacyDiscover:
		client.Callback.OnDiscoverServicesFailed(req.ClientRequestID, FailureInternalError)
	case registry.LegacyRegister:
		m.metricsSink.RegisterFailed()
		client.Callback.OnRegisterServiceFailed(req.ClientRequestID, FailureInternalError)
	case registry.LegacyResolve:
		m.metricsSink.ResolveFailed()
		client.Callback.OnResolveServiceFailed(req.ClientRequestID, FailureInternalError)
	}
}

// modernListener adapts engine callbacks for one registerListener request
// into Machine event-loop actions (§4.4 "Modern event lowering"). The
// engine is the source of truth for which transaction each callback
// belongs to; this wrapper only binds the callback to a Machine.
type modernListener struct {
	m *Machine
}

func (m *Machine) newModernListener(transactionID int32) *modernListener {
	return &modernListener{m: m}
}

func (l *modernListener) OnServiceFound(transactionID int32, info modern.ServiceInfo) {
	l.m.enqueue(func() { l.m.lowerAndDeliver(modern.EventServiceFound, transactionID, info) })
}

func (l *modernListener) OnServiceLost(transactionID int32, info modern.ServiceInfo) {
	l.m.enqueue(func() { l.m.lowerAndDeliver(modern.EventServiceLost, transactionID, info) })
}

func (l *modernListener) OnResolveServiceSucceeded(transactionID int32, info modern.ServiceInfo) {
	l.m.enqueue(func() { l.m.lowerAndDeliver(modern.EventResolveServiceSucceeded, transactionID, info) })
}

func (l *modernListener) OnFailure(transactionID int32, err error) {
	l.m.enqueue(func() { l.m.deliverModernFailure(transactionID, err) })
}

func (m *Machine) lowerAndDeliver(kind modern.EventKind, transactionID int32, info modern.ServiceInfo) {
	client, ok := m.reg.ClientForTransaction(transactionID)
	if !ok {
		return
	}
	req, _ := m.reg.RequestForTransaction(transactionID)

	typeString, ok := m.modern.Lower(kind, transactionID, info)
	if !ok {
		return
	}
	req.Counters.MarkFromCache(info.FromCache)
	net, _ := attributeNetwork(info.NetID, info.IfaceIndex)
	out := ServiceInfo{
		InstanceName: info.InstanceName, ServiceType: typeString, Port: info.Port, TXT: info.TXT,
		Host: info.HostAddress, Network: net, FromCache: req.Counters.FromCache(),
	}

	// A watch request (REGISTER_SERVICE_CALLBACK) shares the same
	// listener mechanics as discover/resolve but reports found/lost
	// through onServiceUpdated/onServiceUpdatedLost instead (§6).
	isWatch := req.ModernVerb == registry.ModernWatch

	switch kind {
	case modern.EventServiceFound:
		req.Counters.FoundCount++
		req.Counters.NoteUniqueName(info.InstanceName)
		m.metricsSink.ServiceFound()
		if isWatch {
			client.Callback.OnServiceUpdated(req.ClientRequestID, out)
		} else {
			client.Callback.OnServiceFound(req.ClientRequestID, out)
		}
	case modern.EventServiceLost:
		req.Counters.LostCount++
		m.metricsSink.ServiceLost()
		if isWatch {
			client.Callback.OnServiceUpdatedLost(req.ClientRequestID, out)
		} else {
			client.Callback.OnServiceLost(req.ClientRequestID, out)
		}
	case modern.EventResolveServiceSucceeded:
		m.metricsSink.ResolveSucceeded()
		client.Callback.OnResolveServiceSucceeded(req.ClientRequestID, out)
	}
}

func (m *Machine) deliverModernFailure(transactionID int32, err error) {
	client, ok := m.reg.ClientForTransaction(transactionID)
	if !ok {
		return
	}
	req, _ := m.reg.RequestForTransaction(transactionID)
	m.log.Warn("modern engine reported failure", "transaction_id", transactionID, "error", err)

	switch {
	case req.Kind == registry.KindAdvertiser:
		m.metricsSink.RegisterFailed()
		m.broadcastOffloadStop(req.TransactionID)
		client.Callback.OnRegisterServiceFailed(req.ClientRequestID, FailureInternalError)
	case req.ModernVerb == registry.ModernResolve:
		m.metricsSink.ResolveFailed()
		client.Callback.OnResolveServiceFailed(req.ClientRequestID, FailureInternalError)
	default:
		// Discover and watch requests share the same registration-failure
		// callback as their initial-registration path (§6 has no dedicated
		// async failure callback for either).
		client.Callback.OnDiscoverServicesFailed(req.ClientRequestID, FailureInternalError)
	}
	m.recordRequestDuration(req)
	m.reg.Remove(client, req.ClientRequestID)
}
