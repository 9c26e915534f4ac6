// Package dht implements the Kademlia-compatible distributed hash table:
// the routing table of k-buckets, iterative node/value lookups, and the
// quota-bounded storage nodes provide for each other (§3, §GLOSSARY).
package dht

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// NodeInfo describes a peer known to the routing table: its identity, the
// public key its NodeId was derived from, the addresses it can be reached
// at, and the liveness/reputation bookkeeping used for eviction (§3).
type NodeInfo struct {
	ID                  wire.NodeId
	PublicKey           ed25519.PublicKey
	Addresses           []string
	LastSeen            time.Time
	ConsecutiveFailures int
	Reputation          float64
}

// NewNodeInfo builds a NodeInfo freshly seen, with neutral reputation.
func NewNodeInfo(id wire.NodeId, pub ed25519.PublicKey, addrs []string) *NodeInfo {
	return &NodeInfo{
		ID:         id,
		PublicKey:  append(ed25519.PublicKey(nil), pub...),
		Addresses:  append([]string(nil), addrs...),
		LastSeen:   time.Now(),
		Reputation: constants.ReputationNeutral,
	}
}

// Touch records a successful observation of the node.
func (n *NodeInfo) Touch() {
	n.LastSeen = time.Now()
	n.ConsecutiveFailures = 0
}

// RecordFailure increments the consecutive failure count.
func (n *NodeInfo) RecordFailure() {
	n.ConsecutiveFailures++
}

// IsEvictable reports whether this node qualifies for eviction from a full
// bucket: too many consecutive failures and stale beyond the grace window
// (§3's eviction rule for the least-recently-seen bucket head).
func (n *NodeInfo) IsEvictable() bool {
	return n.ConsecutiveFailures >= constants.MaxConsecutiveFailures &&
		time.Since(n.LastSeen) > constants.StaleAfter
}

// Copy returns a deep copy of the NodeInfo.
func (n *NodeInfo) Copy() *NodeInfo {
	return &NodeInfo{
		ID:                  n.ID,
		PublicKey:           append(ed25519.PublicKey(nil), n.PublicKey...),
		Addresses:           append([]string(nil), n.Addresses...),
		LastSeen:            n.LastSeen,
		ConsecutiveFailures: n.ConsecutiveFailures,
		Reputation:          n.Reputation,
	}
}

func (n *NodeInfo) String() string {
	return fmt.Sprintf("NodeInfo{%s, addrs=%v, reputation=%.2f}", n.ID, n.Addresses, n.Reputation)
}

// byDistance sorts NodeInfo slices by XOR distance to a fixed target.
type byDistance struct {
	nodes  []*NodeInfo
	target wire.NodeId
}

func (d byDistance) Len() int { return len(d.nodes) }
func (d byDistance) Swap(i, j int) {
	d.nodes[i], d.nodes[j] = d.nodes[j], d.nodes[i]
}
func (d byDistance) Less(i, j int) bool {
	di := d.nodes[i].ID.XOR(d.target)
	dj := d.nodes[j].ID.XOR(d.target)
	return di.Less(dj)
}

// byReputationThenDistance sorts NodeInfo slices for find_closest_nodes
// responses: peers below the reputation floor are de-prioritized to the
// tail, never removed, with XOR distance to target breaking ties within
// each reputation tier (§4.3).
type byReputationThenDistance struct {
	nodes  []*NodeInfo
	target wire.NodeId
}

func (d byReputationThenDistance) Len() int { return len(d.nodes) }
func (d byReputationThenDistance) Swap(i, j int) {
	d.nodes[i], d.nodes[j] = d.nodes[j], d.nodes[i]
}
func (d byReputationThenDistance) Less(i, j int) bool {
	iLow, jLow := d.nodes[i].BelowReputationFloor(), d.nodes[j].BelowReputationFloor()
	if iLow != jLow {
		return jLow
	}
	return d.nodes[i].ID.XOR(d.target).Less(d.nodes[j].ID.XOR(d.target))
}
