package tenancy

import "github.com/prometheus/client_golang/prometheus"

type registryMetrics struct {
	open         prometheus.Gauge
	acquisitions *prometheus.CounterVec
	evictions    prometheus.Counter
}

func newRegistryMetrics(reg prometheus.Registerer) *registryMetrics {
	m := &registryMetrics{
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "assetflow",
			Subsystem: "tenant_registry",
			Name:      "open_connections",
			Help:      "Number of open tenant database connections.",
		}),
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "assetflow",
			Subsystem: "tenant_registry",
			Name:      "acquisitions_total",
			Help:      "Tenant connection acquisitions by result.",
		}, []string{"result"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "assetflow",
			Subsystem: "tenant_registry",
			Name:      "evictions_total",
			Help:      "Idle tenant connections closed by the sweeper.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.open, m.acquisitions, m.evictions)
	}
	return m
}
