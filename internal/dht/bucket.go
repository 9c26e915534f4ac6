package dht

import (
	"sort"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// KBucket holds up to constants.KBucketSize live NodeInfo entries plus a
// replacement cache used when the bucket is full (§3).
type KBucket struct {
	mu           sync.RWMutex
	nodes        []*NodeInfo
	replacements []*NodeInfo
	maxSize      int
	maxReplace   int
}

// NewKBucket creates an empty k-bucket.
func NewKBucket() *KBucket {
	return &KBucket{
		nodes:        make([]*NodeInfo, 0, constants.KBucketSize),
		replacements: make([]*NodeInfo, 0, constants.KBucketSize),
		maxSize:      constants.KBucketSize,
		maxReplace:   constants.KBucketSize,
	}
}

// AddNode inserts or refreshes a node. If the bucket is full and node is
// new, the head (least-recently-seen entry) is inspected: if it qualifies
// for eviction, it is popped and node takes its place at the tail;
// otherwise node is pushed onto the replacement cache and false is
// returned (§3).
func (b *KBucket) AddNode(node *NodeInfo) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.nodes {
		if existing.ID == node.ID {
			b.nodes[i] = node
			b.moveToEnd(i)
			return true
		}
	}

	if len(b.nodes) < b.maxSize {
		b.nodes = append(b.nodes, node)
		return true
	}

	if b.nodes[0].IsEvictable() {
		copy(b.nodes, b.nodes[1:])
		b.nodes[len(b.nodes)-1] = node
		return true
	}

	b.addToReplacements(node)
	return false
}

// RemoveNode removes a node from the bucket (and promotes a replacement),
// or from the replacement cache if it was only there.
func (b *KBucket) RemoveNode(id wire.NodeId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, node := range b.nodes {
		if node.ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.promoteFromReplacements()
			return true
		}
	}
	for i, node := range b.replacements {
		if node.ID == id {
			b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)
			return true
		}
	}
	return false
}

// Head returns the least-recently-seen node (the eviction candidate), or nil
// if the bucket is empty.
func (b *KBucket) Head() *NodeInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.nodes) == 0 {
		return nil
	}
	return b.nodes[0].Copy()
}

// Get returns a copy of the node with the given id, if present.
func (b *KBucket) Get(id wire.NodeId) *NodeInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, node := range b.nodes {
		if node.ID == id {
			return node.Copy()
		}
	}
	return nil
}

// All returns copies of every live node in the bucket.
func (b *KBucket) All() []*NodeInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*NodeInfo, len(b.nodes))
	for i, n := range b.nodes {
		out[i] = n.Copy()
	}
	return out
}

// Size returns the number of live nodes.
func (b *KBucket) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// IsFull reports whether the bucket has reached capacity.
func (b *KBucket) IsFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes) >= b.maxSize
}

// FindClosest returns up to k nodes from this bucket sorted by distance to
// target.
func (b *KBucket) FindClosest(target wire.NodeId, k int) []*NodeInfo {
	nodes := b.All()
	sort.Sort(byDistance{nodes: nodes, target: target})
	if k < len(nodes) {
		nodes = nodes[:k]
	}
	return nodes
}

// PruneStale evicts any node past IsEvictable, promoting replacements to
// fill the gaps left behind.
func (b *KBucket) PruneStale() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	i := 0
	for i < len(b.nodes) {
		if b.nodes[i].IsEvictable() {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			removed++
			continue
		}
		i++
	}
	for n := removed; n > 0 && len(b.replacements) > 0; n-- {
		b.promoteFromReplacements()
	}
	return removed
}

// RemoveStaleAfter evicts any node not seen within timeout, regardless of
// failure count.
func (b *KBucket) RemoveStaleAfter(timeout time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	i := 0
	for i < len(b.nodes) {
		if time.Since(b.nodes[i].LastSeen) > timeout {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			removed++
			continue
		}
		i++
	}
	for n := removed; n > 0 && len(b.replacements) > 0; n-- {
		b.promoteFromReplacements()
	}
	return removed
}

func (b *KBucket) moveToEnd(i int) {
	if i == len(b.nodes)-1 {
		return
	}
	node := b.nodes[i]
	copy(b.nodes[i:], b.nodes[i+1:])
	b.nodes[len(b.nodes)-1] = node
}

func (b *KBucket) addToReplacements(node *NodeInfo) {
	for i, existing := range b.replacements {
		if existing.ID == node.ID {
			b.replacements[i] = node
			return
		}
	}
	if len(b.replacements) < b.maxReplace {
		b.replacements = append(b.replacements, node)
		return
	}
	copy(b.replacements, b.replacements[1:])
	b.replacements[len(b.replacements)-1] = node
}

func (b *KBucket) promoteFromReplacements() {
	if len(b.replacements) == 0 || len(b.nodes) >= b.maxSize {
		return
	}
	node := b.replacements[0]
	b.replacements = b.replacements[1:]
	b.nodes = append(b.nodes, node)
}
