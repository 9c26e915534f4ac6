package dht

import (
	"context"
	"sort"
	"sync"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// lookupState tracks the shortlist of candidates visited so far during an
// iterative lookup, and which of them have already been queried.
type lookupState struct {
	mu        sync.Mutex
	target    wire.NodeId
	shortlist []*NodeInfo
	queried   map[wire.NodeId]bool
}

func newLookupState(target wire.NodeId, seed []*NodeInfo) *lookupState {
	s := &lookupState{target: target, queried: make(map[wire.NodeId]bool)}
	s.merge(seed)
	return s
}

func (s *lookupState) merge(nodes []*NodeInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[wire.NodeId]bool, len(s.shortlist))
	for _, n := range s.shortlist {
		seen[n.ID] = true
	}
	for _, n := range nodes {
		if !seen[n.ID] {
			s.shortlist = append(s.shortlist, n)
			seen[n.ID] = true
		}
	}
	sort.Sort(byDistance{nodes: s.shortlist, target: s.target})
	if len(s.shortlist) > constants.KBucketSize {
		s.shortlist = s.shortlist[:constants.KBucketSize]
	}
}

// nextBatch returns up to alpha unqueried candidates from the shortlist.
func (s *lookupState) nextBatch(alpha int) []*NodeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var batch []*NodeInfo
	for _, n := range s.shortlist {
		if len(batch) >= alpha {
			break
		}
		if !s.queried[n.ID] {
			s.queried[n.ID] = true
			batch = append(batch, n)
		}
	}
	return batch
}

func (s *lookupState) top(k int) []*NodeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k > len(s.shortlist) {
		k = len(s.shortlist)
	}
	out := make([]*NodeInfo, k)
	copy(out, s.shortlist[:k])
	return out
}

// IterativeFindNode implements the α-concurrent iterative node lookup: each
// round queries up to Alpha unqueried candidates from the current shortlist
// and merges their results in, stopping once every candidate in the
// K-bounded shortlist has been queried or ctx is canceled (§3).
func IterativeFindNode(ctx context.Context, rpc RPCClient, rt *RoutingTable, target wire.NodeId) []*NodeInfo {
	seed := rt.FindClosestNodes(target, constants.KBucketSize)
	state := newLookupState(target, seed)

	for {
		batch := state.nextBatch(constants.Alpha)
		if len(batch) == 0 {
			break
		}

		var wg sync.WaitGroup
		resultsCh := make(chan []*NodeInfo, len(batch))
		for _, peer := range batch {
			wg.Add(1)
			go func(p *NodeInfo) {
				defer wg.Done()
				found, err := rpc.FindNode(ctx, p, target)
				if err != nil {
					rt.RecordFailure(p.ID)
					return
				}
				rt.RecordSuccess(p.ID)
				resultsCh <- found
			}(peer)
		}
		wg.Wait()
		close(resultsCh)

		for found := range resultsCh {
			state.merge(found)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return state.top(constants.KBucketSize)
}

// IterativeFindValue performs the same iterative search as
// IterativeFindNode but stops early as soon as any queried peer returns a
// value (§3).
func IterativeFindValue(ctx context.Context, rpc RPCClient, rt *RoutingTable, key wire.NodeId) ([]byte, []*NodeInfo, error) {
	seed := rt.FindClosestNodes(key, constants.KBucketSize)
	state := newLookupState(key, seed)

	for {
		batch := state.nextBatch(constants.Alpha)
		if len(batch) == 0 {
			break
		}

		type outcome struct {
			value  []byte
			closer []*NodeInfo
		}
		var wg sync.WaitGroup
		resultsCh := make(chan outcome, len(batch))
		for _, peer := range batch {
			wg.Add(1)
			go func(p *NodeInfo) {
				defer wg.Done()
				value, closer, err := rpc.FindValue(ctx, p, key)
				if err != nil {
					rt.RecordFailure(p.ID)
					return
				}
				rt.RecordSuccess(p.ID)
				resultsCh <- outcome{value: value, closer: closer}
			}(peer)
		}
		wg.Wait()
		close(resultsCh)

		for o := range resultsCh {
			if o.value != nil {
				return o.value, state.top(constants.KBucketSize), nil
			}
			state.merge(o.closer)
		}

		if ctx.Err() != nil {
			break
		}
	}

	return nil, state.top(constants.KBucketSize), wire.NewDHTError(wire.CodeKeyNotFound, "value not found after iterative lookup")
}
