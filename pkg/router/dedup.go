package router

import (
	"container/list"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

type dedupEntry struct {
	id   wire.MessageId
	seen time.Time
}

// DeduplicationCache tracks recently observed MessageIds so a router drops
// retransmissions instead of re-forwarding them (§4.4). It is bounded both
// by entry count (LRU eviction) and by age (TTL sweep), mirroring the
// seen-message bookkeeping a gossip layer needs to avoid reprocessing its
// own traffic.
type DeduplicationCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	order    *list.List
	index    map[wire.MessageId]*list.Element
}

// NewDeduplicationCache creates a cache holding up to capacity entries, each
// expiring ttl after it was last observed (a repeat observation refreshes
// the entry).
func NewDeduplicationCache(capacity int, ttl time.Duration) *DeduplicationCache {
	return &DeduplicationCache{
		ttl:      ttl,
		capacity: capacity,
		order:    list.New(),
		index:    make(map[wire.MessageId]*list.Element),
	}
}

// SeenOrMark reports whether id has already been recorded. If it has not,
// it is atomically marked seen so a concurrent caller observes the mark.
func (c *DeduplicationCache) SeenOrMark(id wire.MessageId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[id]; ok {
		elem.Value.(*dedupEntry).seen = time.Now()
		c.order.MoveToFront(elem)
		return true
	}

	elem := c.order.PushFront(&dedupEntry{id: id, seen: time.Now()})
	c.index[id] = elem

	for c.order.Len() > c.capacity {
		c.evictOldest()
	}

	return false
}

// Sweep removes entries older than the configured TTL, returning the count
// removed.
func (c *DeduplicationCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := time.Now()
	for {
		back := c.order.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*dedupEntry)
		if now.Sub(entry.seen) <= c.ttl {
			break
		}
		c.order.Remove(back)
		delete(c.index, entry.id)
		removed++
	}
	return removed
}

// Len returns the number of entries currently tracked.
func (c *DeduplicationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *DeduplicationCache) evictOldest() {
	back := c.order.Back()
	if back == nil {
		return
	}
	c.order.Remove(back)
	delete(c.index, back.Value.(*dedupEntry).id)
}
