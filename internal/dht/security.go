package dht

import (
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// tokenBucket is a per-peer token bucket used by RequestLimiter.
type tokenBucket struct {
	tokens   int
	lastSeen time.Time
}

// RequestLimiter throttles inbound DHT RPCs per peer and maintains a
// temporary blacklist for peers that keep failing signature checks or
// exceed their quota — a security layer the original spec leaves as an
// implementation detail of "recoverable vs fatal" error handling (§7),
// modeled on the teacher's rate-limiter/security-manager pair.
type RequestLimiter struct {
	mu        sync.Mutex
	buckets   map[wire.NodeId]*tokenBucket
	capacity  int
	refill    time.Duration
	blacklist map[wire.NodeId]time.Time
}

// NewRequestLimiter creates a limiter allowing `capacity` requests per peer,
// refilling one token every `refill`.
func NewRequestLimiter(capacity int, refill time.Duration) *RequestLimiter {
	return &RequestLimiter{
		buckets:   make(map[wire.NodeId]*tokenBucket),
		capacity:  capacity,
		refill:    refill,
		blacklist: make(map[wire.NodeId]time.Time),
	}
}

// Allow reports whether a request from peer should be processed: false if
// the peer is blacklisted or has exhausted its token bucket.
func (l *RequestLimiter) Allow(peer wire.NodeId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, blocked := l.blacklist[peer]; blocked {
		if time.Now().Before(expiry) {
			return false
		}
		delete(l.blacklist, peer)
	}

	now := time.Now()
	b, ok := l.buckets[peer]
	if !ok {
		l.buckets[peer] = &tokenBucket{tokens: l.capacity - 1, lastSeen: now}
		return true
	}

	refills := int(now.Sub(b.lastSeen) / l.refill)
	b.tokens += refills
	if b.tokens >= l.capacity {
		b.tokens = l.capacity
		b.lastSeen = now
	} else {
		b.lastSeen = b.lastSeen.Add(time.Duration(refills) * l.refill)
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Blacklist blocks peer for duration, e.g. after a forged signature.
func (l *RequestLimiter) Blacklist(peer wire.NodeId, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blacklist[peer] = time.Now().Add(duration)
}

// IsBlacklisted reports whether peer is currently blocked.
func (l *RequestLimiter) IsBlacklisted(peer wire.NodeId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.blacklist[peer]
	return ok && time.Now().Before(expiry)
}

// Forget clears all rate-limit and blacklist state for peer.
func (l *RequestLimiter) Forget(peer wire.NodeId) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, peer)
	delete(l.blacklist, peer)
}
