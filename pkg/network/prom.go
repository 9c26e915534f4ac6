package network

import "github.com/prometheus/client_golang/prometheus"

// PromMetrics exports every adapter's Metrics snapshot as Prometheus gauges
// labeled by adapter name. It sits alongside the in-memory EMA tracking in
// Metrics rather than replacing it: the selection engine and failover
// supervisor read Metrics directly, Prometheus is an additional
// observability surface for operators.
type PromMetrics struct {
	latency     *prometheus.GaugeVec
	bandwidth   *prometheus.GaugeVec
	reliability *prometheus.GaugeVec
	loss        *prometheus.GaugeVec
}

// NewPromMetrics creates and registers the adapter gauge vectors against reg.
func NewPromMetrics(reg prometheus.Registerer) (*PromMetrics, error) {
	pm := &PromMetrics{
		latency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "myriadmesh",
			Subsystem: "adapter",
			Name:      "latency_ms",
			Help:      "EMA-smoothed observed latency per adapter.",
		}, []string{"adapter"}),
		bandwidth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "myriadmesh",
			Subsystem: "adapter",
			Name:      "bandwidth_bps",
			Help:      "EMA-smoothed observed bandwidth per adapter.",
		}, []string{"adapter"}),
		reliability: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "myriadmesh",
			Subsystem: "adapter",
			Name:      "reliability",
			Help:      "EMA-smoothed delivery reliability per adapter.",
		}, []string{"adapter"}),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "myriadmesh",
			Subsystem: "adapter",
			Name:      "loss_rate",
			Help:      "Observed send loss rate per adapter.",
		}, []string{"adapter"}),
	}
	for _, c := range []prometheus.Collector{pm.latency, pm.bandwidth, pm.reliability, pm.loss} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// Observe records name's current snapshot against every gauge.
func (pm *PromMetrics) Observe(name string, snap Snapshot) {
	pm.latency.WithLabelValues(name).Set(snap.LatencyMs)
	pm.bandwidth.WithLabelValues(name).Set(snap.BandwidthBps)
	pm.reliability.WithLabelValues(name).Set(snap.Reliability)
	pm.loss.WithLabelValues(name).Set(snap.LossRate)
}

// ObserveAll exports every adapter currently registered with manager.
func (pm *PromMetrics) ObserveAll(manager *Manager) {
	for name := range manager.All() {
		if m, ok := manager.Metrics(name); ok {
			pm.Observe(name, m.Snapshot())
		}
	}
}
