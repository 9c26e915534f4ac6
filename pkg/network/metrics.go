package network

import (
	"sync"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
)

// Metrics tracks an adapter's observed latency, bandwidth, and reliability
// as exponentially-smoothed running averages (§4.6). A fresh Metrics starts
// at the adapter's advertised Capabilities until real observations arrive.
type Metrics struct {
	mu sync.Mutex

	latencyMs    float64
	bandwidthBps float64
	sent         uint64
	lost         uint64
	reliability  float64

	consecutiveFailures int
}

// NewMetrics seeds a Metrics from an adapter's static capabilities.
func NewMetrics(caps Capabilities) *Metrics {
	return &Metrics{
		latencyMs:    caps.TypicalLatencyMs,
		bandwidthBps: caps.TypicalBandwidthBps,
		reliability:  1.0,
	}
}

// ema applies the §4.6 exponential-moving-average smoothing to sample given
// the current value.
func ema(current, sample float64) float64 {
	return (1-constants.MetricsEMAAlpha)*current + constants.MetricsEMAAlpha*sample
}

// RecordSuccess folds a successful send's observed latency and throughput
// into the running averages and resets the consecutive-failure counter.
func (m *Metrics) RecordSuccess(latencyMs, bandwidthBps float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyMs = ema(m.latencyMs, latencyMs)
	if bandwidthBps > 0 {
		m.bandwidthBps = ema(m.bandwidthBps, bandwidthBps)
	}
	m.sent++
	m.reliability = ema(m.reliability, 1.0)
	m.consecutiveFailures = 0
}

// RecordFailure folds a failed send into the loss rate and bumps the
// consecutive-failure counter used by the failover supervisor (§4.7).
func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent++
	m.lost++
	m.reliability = ema(m.reliability, 0.0)
	m.consecutiveFailures++
}

// Snapshot is a point-in-time, lock-free copy of a Metrics' values.
type Snapshot struct {
	LatencyMs           float64
	BandwidthBps        float64
	Reliability         float64
	LossRate            float64
	ConsecutiveFailures int
}

// Snapshot returns the current metric values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var loss float64
	if m.sent > 0 {
		loss = float64(m.lost) / float64(m.sent)
	}
	return Snapshot{
		LatencyMs:           m.latencyMs,
		BandwidthBps:        m.bandwidthBps,
		Reliability:         m.reliability,
		LossRate:            loss,
		ConsecutiveFailures: m.consecutiveFailures,
	}
}

// ConsecutiveFailures reports the current run of consecutive send failures.
func (m *Metrics) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consecutiveFailures
}
