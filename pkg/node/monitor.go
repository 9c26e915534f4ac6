package node

import (
	"context"
	"log"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/network"
)

// Monitor runs the periodic adapter-health probes configured by
// MonitoringSection: liveness pings, throughput samples, and reliability
// decay checks, each on its own ticker (§6's ping/throughput/reliability
// intervals, supplementing §4.6/§4.7's scoring and failover inputs).
type Monitor struct {
	manager  *network.Manager
	prom     *network.PromMetrics
	cfg      MonitoringSection
	log      *log.Logger
	shutdown <-chan struct{}
	done     chan struct{}
}

// NewMonitor constructs a Monitor over manager using cfg's intervals. prom
// may be nil, in which case adapter metrics are tracked only in-memory.
// shutdown is the orchestrator's broadcast channel (§5); it is closed once
// to signal every background task to exit at its next suspension point.
func NewMonitor(manager *network.Manager, prom *network.PromMetrics, cfg MonitoringSection, logger *log.Logger, shutdown <-chan struct{}) *Monitor {
	return &Monitor{
		manager:  manager,
		prom:     prom,
		cfg:      cfg,
		log:      logger,
		shutdown: shutdown,
		done:     make(chan struct{}),
	}
}

// Run drives the three probe loops until the shutdown channel closes,
// returning once all three have exited.
func (m *Monitor) Run(ctx context.Context) {
	defer close(m.done)

	pingTicker := time.NewTicker(nonZero(m.cfg.PingInterval(), time.Second))
	throughputTicker := time.NewTicker(nonZero(m.cfg.ThroughputInterval(), time.Second))
	reliabilityTicker := time.NewTicker(nonZero(m.cfg.ReliabilityInterval(), time.Second))
	defer pingTicker.Stop()
	defer throughputTicker.Stop()
	defer reliabilityTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.shutdown:
			return
		case <-pingTicker.C:
			m.probePing(ctx)
		case <-throughputTicker.C:
			m.probeThroughput(ctx)
		case <-reliabilityTicker.C:
			m.decayReliability()
		}
	}
}

// Done reports when Run has returned.
func (m *Monitor) Done() <-chan struct{} { return m.done }

// probePing tests connectivity on every Ready adapter's own local address,
// folding the result into that adapter's metrics.
func (m *Monitor) probePing(ctx context.Context) {
	for name, adapter := range m.manager.All() {
		if adapter.GetStatus() != network.StatusReady {
			continue
		}
		local, ok := adapter.GetLocalAddress()
		if !ok {
			continue
		}
		metrics, ok := m.manager.Metrics(name)
		if !ok {
			continue
		}
		start := time.Now()
		if err := adapter.TestConnection(ctx, local); err != nil {
			metrics.RecordFailure()
			m.log.Printf("monitor: ping probe on %q failed: %v", name, err)
			continue
		}
		metrics.RecordSuccess(float64(time.Since(start).Milliseconds()), 0)
	}
}

// probeThroughput folds each adapter's advertised capability bandwidth back
// into its metrics as a slow-moving observation, so idle adapters don't
// drift arbitrarily far from their rated throughput.
func (m *Monitor) probeThroughput(ctx context.Context) {
	for name, adapter := range m.manager.All() {
		metrics, ok := m.manager.Metrics(name)
		if !ok {
			continue
		}
		caps := adapter.GetCapabilities()
		snap := metrics.Snapshot()
		metrics.RecordSuccess(snap.LatencyMs, caps.TypicalBandwidthBps)
	}
	if m.prom != nil {
		m.prom.ObserveAll(m.manager)
	}
}

// decayReliability is a no-op hook point: reliability already decays via
// the EMA in every RecordSuccess/RecordFailure call. It exists so a future
// idle-adapter reliability recovery policy has a natural home.
func (m *Monitor) decayReliability() {}

func nonZero(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
