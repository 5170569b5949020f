package nsd

// Callback is the client-facing surface (§6): the symmetric set of onXxx
// methods the orchestrator drives as it accepts, rejects, and reports
// backend progress for a connector's requests. A dead callback channel is
// reported to the Machine out of band, via Connector.NotifyDeath —
// Callback implementations never return an error the core acts on.
type Callback interface {
	OnDiscoverServicesStarted(clientRequestID uint16, serviceType string)
	OnDiscoverServicesFailed(clientRequestID uint16, code FailureCode)
	OnServiceFound(clientRequestID uint16, info ServiceInfo)
	OnServiceLost(clientRequestID uint16, info ServiceInfo)
	OnStopDiscoverySucceeded(clientRequestID uint16)
	OnStopDiscoveryFailed(clientRequestID uint16, code FailureCode)

	OnRegisterServiceSucceeded(clientRequestID uint16, info ServiceInfo)
	OnRegisterServiceFailed(clientRequestID uint16, code FailureCode)
	OnUnregisterServiceSucceeded(clientRequestID uint16)
	OnUnregisterServiceFailed(clientRequestID uint16, code FailureCode)

	OnResolveServiceSucceeded(clientRequestID uint16, info ServiceInfo)
	OnResolveServiceFailed(clientRequestID uint16, code FailureCode)
	OnStopResolutionSucceeded(clientRequestID uint16)
	OnStopResolutionFailed(clientRequestID uint16, code FailureCode)

	OnServiceInfoCallbackRegistered(clientRequestID uint16)
	OnServiceInfoCallbackUnregistrationFailed(clientRequestID uint16, code FailureCode)
	OnServiceUpdated(clientRequestID uint16, info ServiceInfo)
	OnServiceUpdatedLost(clientRequestID uint16, info ServiceInfo)
	OnServiceInfoCallbackUnregistered(clientRequestID uint16)
}

// ServiceInfo is the service-instance payload delivered to clients:
// instance name, resolved type string, host/port, TXT record, and the
// attributed Network (nil if attribution cleared it, per §4.6).
type ServiceInfo struct {
	InstanceName string
	ServiceType  string
	Host         string
	Port         int
	TXT          []byte
	Network      *Network
	FromCache    bool
}
