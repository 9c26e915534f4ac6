package router

import (
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// RateLimiter enforces sliding-window send limits, both per source node and
// across the whole router, so a single noisy or malicious peer cannot
// monopolize forwarding capacity (§4.4).
type RateLimiter struct {
	mu            sync.Mutex
	window        time.Duration
	perNodeLimit  int
	globalLimit   int
	nodeEvents    map[wire.NodeId][]time.Time
	globalEvents  []time.Time
}

// NewRateLimiter creates a limiter allowing up to perNodeLimit events per
// node and globalLimit events in total within any rolling window.
func NewRateLimiter(perNodeLimit, globalLimit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window:       window,
		perNodeLimit: perNodeLimit,
		globalLimit:  globalLimit,
		nodeEvents:   make(map[wire.NodeId][]time.Time),
	}
}

// Allow records one event from source and reports whether it is within both
// the per-node and global limits. On denial it still returns which limit was
// exceeded via the returned error so callers can classify the drop (§7).
func (r *RateLimiter) Allow(source wire.NodeId) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	global := trim(r.globalEvents, cutoff)
	if len(global) >= r.globalLimit {
		r.globalEvents = global
		return wire.NewRoutingError(wire.CodeGlobalRateLimitExceeded, "global rate limit exceeded")
	}

	nodeHist := trim(r.nodeEvents[source], cutoff)
	if len(nodeHist) >= r.perNodeLimit {
		r.nodeEvents[source] = nodeHist
		r.globalEvents = global
		return wire.NewRoutingError(wire.CodeRateLimitExceeded, "per-node rate limit exceeded")
	}

	r.globalEvents = append(global, now)
	r.nodeEvents[source] = append(nodeHist, now)
	return nil
}

// Forget discards any tracked history for source, used when a peer is
// evicted or blacklisted elsewhere.
func (r *RateLimiter) Forget(source wire.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodeEvents, source)
}

func trim(events []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return events
	}
	return append([]time.Time(nil), events[i:]...)
}
