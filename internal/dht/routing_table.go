package dht

import (
	"sort"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// RoutingTable is a 256-bucket Kademlia routing table keyed on XOR distance
// from the local node (§3, §GLOSSARY).
type RoutingTable struct {
	mu      sync.RWMutex
	localID wire.NodeId
	buckets [constants.NumBuckets]*KBucket
}

// NewRoutingTable creates a routing table for localID.
func NewRoutingTable(localID wire.NodeId) *RoutingTable {
	rt := &RoutingTable{localID: localID}
	for i := range rt.buckets {
		rt.buckets[i] = NewKBucket()
	}
	return rt
}

func (rt *RoutingTable) bucketIndex(id wire.NodeId) int {
	idx := wire.BucketIndex(rt.localID, id)
	if idx < 0 {
		idx = 0
	}
	return idx
}

// AddNode adds a node to the appropriate bucket. The local node itself is
// never added.
func (rt *RoutingTable) AddNode(node *NodeInfo) bool {
	if node.ID == rt.localID {
		return false
	}
	return rt.buckets[rt.bucketIndex(node.ID)].AddNode(node)
}

// RemoveNode removes a node by id.
func (rt *RoutingTable) RemoveNode(id wire.NodeId) bool {
	if id == rt.localID {
		return false
	}
	return rt.buckets[rt.bucketIndex(id)].RemoveNode(id)
}

// Get returns a copy of the node with the given id, if known.
func (rt *RoutingTable) Get(id wire.NodeId) *NodeInfo {
	if id == rt.localID {
		return nil
	}
	return rt.buckets[rt.bucketIndex(id)].Get(id)
}

// FindClosestNodes returns up to k nodes closest to target across the whole
// table, expanding outward from target's own bucket until enough candidates
// are gathered (§3's find_closest_nodes algorithm). Peers below the
// reputation floor are ranked after every peer that meets it, rather than
// removed from consideration, so a truncation to k still drops them first
// (§4.3).
func (rt *RoutingTable) FindClosestNodes(target wire.NodeId, k int) []*NodeInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	targetBucket := rt.bucketIndex(target)
	collected := make(map[int]bool)
	var candidates []*NodeInfo

	candidates = append(candidates, rt.buckets[targetBucket].All()...)
	collected[targetBucket] = true

	for dist := 1; len(candidates) < k && dist < constants.NumBuckets; dist++ {
		if targetBucket+dist < constants.NumBuckets && !collected[targetBucket+dist] {
			candidates = append(candidates, rt.buckets[targetBucket+dist].All()...)
			collected[targetBucket+dist] = true
		}
		if targetBucket-dist >= 0 && !collected[targetBucket-dist] {
			candidates = append(candidates, rt.buckets[targetBucket-dist].All()...)
			collected[targetBucket-dist] = true
		}
	}

	if len(candidates) < k {
		for i := 0; i < constants.NumBuckets; i++ {
			if !collected[i] {
				candidates = append(candidates, rt.buckets[i].All()...)
			}
		}
	}

	sort.Sort(byReputationThenDistance{nodes: candidates, target: target})
	if k < len(candidates) {
		candidates = candidates[:k]
	}
	return candidates
}

// AllNodes returns every node currently in the table.
func (rt *RoutingTable) AllNodes() []*NodeInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	var out []*NodeInfo
	for _, b := range rt.buckets {
		out = append(out, b.All()...)
	}
	return out
}

// Size returns the total number of nodes in the table.
func (rt *RoutingTable) Size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.Size()
	}
	return total
}

// PruneStale runs eviction across every bucket, returning the number of
// nodes removed.
func (rt *RoutingTable) PruneStale() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.PruneStale()
	}
	return total
}

// RemoveStaleAfter evicts nodes unseen for longer than timeout across every
// bucket.
func (rt *RoutingTable) RemoveStaleAfter(timeout time.Duration) int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	total := 0
	for _, b := range rt.buckets {
		total += b.RemoveStaleAfter(timeout)
	}
	return total
}

// BucketUtilization reports the live node count for every non-empty bucket,
// keyed by bucket index.
func (rt *RoutingTable) BucketUtilization() map[int]int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	info := make(map[int]int)
	for i, b := range rt.buckets {
		if size := b.Size(); size > 0 {
			info[i] = size
		}
	}
	return info
}
