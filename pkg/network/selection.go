package network

import (
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// candidate pairs a registered adapter name with its live state for scoring.
type candidate struct {
	name    string
	adapter Adapter
}

// Selector picks, for a given (message, destination) pair, the best
// adapter among those that both support the destination address and report
// Ready status (§4.6).
type Selector struct {
	manager *Manager
}

// NewSelector constructs a Selector over manager's registered adapters.
func NewSelector(manager *Manager) *Selector {
	return &Selector{manager: manager}
}

const (
	emergencyPriorityFloor = 224
	highPriorityFloor      = 192
)

func normalize(value, max float64) float64 {
	n := value / max
	if n > 1 {
		return 1
	}
	if n < 0 {
		return 0
	}
	return n
}

// score implements the exact §4.6 formula for one candidate under a given
// message priority.
func score(priority wire.Priority, caps Capabilities, m Snapshot) float64 {
	latencyNorm := normalize(m.LatencyMs, 1000)
	bandwidthNorm := normalize(m.BandwidthBps, 1e8)
	costNorm := normalize(caps.CostPerMB, 1)
	availability := caps.Range.availability()
	reliability := m.Reliability

	switch {
	case uint8(priority) >= emergencyPriorityFloor:
		return 0.6*reliability + 0.3*(1-latencyNorm) + 0.1*availability
	case uint8(priority) >= highPriorityFloor:
		return 0.4*(1-latencyNorm) + 0.3*reliability + 0.2*bandwidthNorm + 0.1*(1-costNorm)
	default:
		return 0.25*(1-latencyNorm) + 0.25*reliability + 0.2*bandwidthNorm + 0.2*(1-costNorm) + 0.1*availability
	}
}

// Select returns the name and adapter with the highest score among those
// that support destination and are Ready, for a message of the given
// priority. Ties are broken by insertion order, i.e. the first-encountered
// maximal candidate in Manager's registration order.
func (s *Selector) Select(destination Address, priority wire.Priority) (string, Adapter, error) {
	order := s.manager.order()

	var supporting []candidate
	for _, c := range order {
		if c.adapter.SupportsAddress(destination) {
			supporting = append(supporting, c)
		}
	}
	if len(supporting) == 0 {
		return "", nil, wire.NewNetworkError(wire.CodeNoCommonAdapter, "no registered adapter supports the destination address")
	}

	var (
		bestName string
		best     Adapter
		bestScr  float64
		found    bool
	)
	for _, c := range supporting {
		if c.adapter.GetStatus() != StatusReady {
			continue
		}
		metrics, ok := s.manager.Metrics(c.name)
		if !ok {
			continue
		}
		sc := score(priority, c.adapter.GetCapabilities(), metrics.Snapshot())
		if !found || sc > bestScr {
			found = true
			bestScr = sc
			bestName = c.name
			best = c.adapter
		}
	}
	if !found {
		return "", nil, wire.NewNetworkError(wire.CodeNoAdaptersAvailable, "no Ready adapter supports the destination address")
	}
	return bestName, best, nil
}
