package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink is a Sink backed by prometheus counters and a histogram,
// registered against the caller-supplied registerer so multiple
// orchestrator instances in one process don't collide on the default
// registry.
type PrometheusSink struct {
	discoveryStarted  prometheus.Counter
	servicesFound     prometheus.Counter
	servicesLost      prometheus.Counter
	registerResults   *prometheus.CounterVec
	resolveResults    *prometheus.CounterVec
	daemonStarts      prometheus.Counter
	daemonStops       prometheus.Counter
	lockAcquisitions  prometheus.Counter
	lockReleases      prometheus.Counter
	requestDuration   *prometheus.HistogramVec
}

// NewPrometheusSink constructs and registers a PrometheusSink against reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		discoveryStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_discoveries_started_total",
			Help: "Total number of DISCOVER_SERVICES requests accepted.",
		}),
		servicesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_services_found_total",
			Help: "Total number of onServiceFound callbacks delivered.",
		}),
		servicesLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_services_lost_total",
			Help: "Total number of onServiceLost callbacks delivered.",
		}),
		registerResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nsd_register_service_total",
			Help: "REGISTER_SERVICE outcomes.",
		}, []string{"result"}),
		resolveResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nsd_resolve_service_total",
			Help: "RESOLVE_SERVICE outcomes.",
		}, []string{"result"}),
		daemonStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_legacy_daemon_starts_total",
			Help: "Total number of legacy daemon starts.",
		}),
		daemonStops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_legacy_daemon_stops_total",
			Help: "Total number of legacy daemon stops.",
		}),
		lockAcquisitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_multicast_lock_acquisitions_total",
			Help: "Total number of multicast-lock acquire transitions.",
		}),
		lockReleases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nsd_multicast_lock_releases_total",
			Help: "Total number of multicast-lock release transitions.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nsd_request_duration_seconds",
			Help:    "Time from request acceptance to terminal event, by verb.",
			Buckets: prometheus.DefBuckets,
		}, []string{"verb"}),
	}

	reg.MustRegister(
		s.discoveryStarted, s.servicesFound, s.servicesLost,
		s.registerResults, s.resolveResults,
		s.daemonStarts, s.daemonStops,
		s.lockAcquisitions, s.lockReleases,
		s.requestDuration,
	)
	return s
}

func (s *PrometheusSink) DiscoveryStarted() { s.discoveryStarted.Inc() }
func (s *PrometheusSink) ServiceFound()     { s.servicesFound.Inc() }
func (s *PrometheusSink) ServiceLost()      { s.servicesLost.Inc() }

func (s *PrometheusSink) RegisterSucceeded() { s.registerResults.WithLabelValues("success").Inc() }
func (s *PrometheusSink) RegisterFailed()    { s.registerResults.WithLabelValues("failure").Inc() }
func (s *PrometheusSink) ResolveSucceeded()  { s.resolveResults.WithLabelValues("success").Inc() }
func (s *PrometheusSink) ResolveFailed()     { s.resolveResults.WithLabelValues("failure").Inc() }

func (s *PrometheusSink) DaemonStarted() { s.daemonStarts.Inc() }
func (s *PrometheusSink) DaemonStopped() { s.daemonStops.Inc() }
func (s *PrometheusSink) LockAcquired()  { s.lockAcquisitions.Inc() }
func (s *PrometheusSink) LockReleased()  { s.lockReleases.Inc() }

func (s *PrometheusSink) RequestDuration(verb string, d time.Duration) {
	s.requestDuration.WithLabelValues(verb).Observe(d.Seconds())
}
