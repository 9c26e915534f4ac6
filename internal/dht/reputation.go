package dht

import (
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// reward nudges a node's reputation up after a successful RPC, capped at 1.0.
func (n *NodeInfo) reward(amount float64) {
	n.Reputation += amount
	if n.Reputation > 1.0 {
		n.Reputation = 1.0
	}
}

// penalize nudges a node's reputation down after a failed RPC, floored at 0.
func (n *NodeInfo) penalize(amount float64) {
	n.Reputation -= amount
	if n.Reputation < 0 {
		n.Reputation = 0
	}
}

// decayTowardNeutral relaxes reputation toward the neutral baseline absent
// fresh observations (§4.3).
func (n *NodeInfo) decayTowardNeutral(fraction float64) {
	n.Reputation += (constants.ReputationNeutral - n.Reputation) * fraction
}

// RecordSuccess reports a successful RPC with peer to the routing table,
// rewarding its reputation and resetting its failure streak.
func (rt *RoutingTable) RecordSuccess(id wire.NodeId) {
	if node := rt.Get(id); node != nil {
		node.Touch()
		node.reward(0.1)
		rt.buckets[rt.bucketIndex(id)].AddNode(node)
	}
}

// RecordFailure reports a failed RPC with peer, penalizing reputation and
// incrementing the consecutive-failure counter used for eviction.
func (rt *RoutingTable) RecordFailure(id wire.NodeId) {
	if node := rt.Get(id); node != nil {
		node.RecordFailure()
		node.penalize(0.2)
		rt.buckets[rt.bucketIndex(id)].AddNode(node)
	}
}

// DecayReputations relaxes every known node's reputation toward neutral; run
// periodically by the node's maintenance loop (§4.3).
func (rt *RoutingTable) DecayReputations(fraction float64) {
	for _, b := range rt.buckets {
		for _, node := range b.All() {
			node.decayTowardNeutral(fraction)
			b.AddNode(node)
		}
	}
}

// BelowReputationFloor reports whether node's reputation has dropped below
// the de-prioritization threshold used when ranking find_closest_nodes
// responses (§4.3) — such nodes are never removed, only ranked last.
func (n *NodeInfo) BelowReputationFloor() bool {
	return n.Reputation < constants.ReputationFloor
}
