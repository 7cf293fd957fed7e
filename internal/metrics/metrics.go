// Package metrics declares the prometheus collectors shared across
// ErpClient, ClientPool, MetadataCache, OpDispatcher, and McpSession,
// registered once against a single private registry. No HTTP route
// serves that registry; its Gatherer is the only way to read it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector this system exposes. It is passed
// by pointer to components that need to record something, rather than
// relying on the prometheus default global registry, so tests can
// construct isolated instances.
type Registry struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	ErpReloginTotal          *prometheus.CounterVec
	ErpCallDurationSeconds   *prometheus.HistogramVec
	ClientPoolActiveClients  prometheus.Gauge
	MetadataCacheHitsTotal   prometheus.Counter
	MetadataCacheMissesTotal prometheus.Counter
	ToolDispatchDuration     *prometheus.HistogramVec
	McpSessionsActive        prometheus.Gauge
}

// New constructs a Registry with all collectors registered against a
// fresh prometheus.Registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		Registerer: reg,
		Gatherer:   reg,
		ErpReloginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erp_relogin_total",
			Help: "Number of transparent Legacy re-logins performed, by instance.",
		}, []string{"instance"}),
		ErpCallDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erp_call_duration_seconds",
			Help:    "Duration of ErpClient wire calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"instance", "op", "outcome"}),
		ClientPoolActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clientpool_active_clients",
			Help: "Number of live ClientEntry instances in the pool.",
		}),
		MetadataCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metadatacache_hits_total",
			Help: "MetadataCache lookups served from cache.",
		}),
		MetadataCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metadatacache_misses_total",
			Help: "MetadataCache lookups not served from a fresh cache entry.",
		}),
		ToolDispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tool_dispatch_duration_seconds",
			Help:    "Duration of OpDispatcher.Dispatch calls, by tool.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool", "outcome"}),
		McpSessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_sessions_active",
			Help: "Number of currently connected McpSessions.",
		}),
	}

	reg.MustRegister(
		m.ErpReloginTotal,
		m.ErpCallDurationSeconds,
		m.ClientPoolActiveClients,
		m.MetadataCacheHitsTotal,
		m.MetadataCacheMissesTotal,
		m.ToolDispatchDuration,
		m.McpSessionsActive,
	)

	return m
}
