package dht

import (
	"context"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// RPCClient is the set of Kademlia RPCs a DHT issues against a remote peer.
// Concrete request/response framing and transport selection live in
// pkg/network and pkg/router; the DHT only depends on this interface so its
// lookup algorithms stay transport-agnostic (§3, §6).
type RPCClient interface {
	FindNode(ctx context.Context, peer *NodeInfo, target wire.NodeId) ([]*NodeInfo, error)
	FindValue(ctx context.Context, peer *NodeInfo, key wire.NodeId) (value []byte, closer []*NodeInfo, err error)
	Store(ctx context.Context, peer *NodeInfo, key wire.NodeId, value, signature []byte, publisher wire.NodeId) error
	Ping(ctx context.Context, peer *NodeInfo) error
}
