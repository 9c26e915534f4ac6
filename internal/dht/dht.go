package dht

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// DHT is the node's view of the Kademlia overlay: a routing table of known
// peers, local storage for the keys it custodies, and a rate limiter guarding
// inbound RPCs. It depends on an RPCClient for the actual wire exchange,
// leaving transport selection to pkg/network (§3, §6).
type DHT struct {
	mu       sync.RWMutex
	localID  wire.NodeId
	table    *RoutingTable
	storage  *Storage
	limiter  *RequestLimiter
	rpc      RPCClient
	verifier wire.Verifier

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a DHT for localID. rpc may be nil until a transport layer is
// wired in; verifier is used to check signatures on incoming Store RPCs.
func New(localID wire.NodeId, rpc RPCClient, verifier wire.Verifier) *DHT {
	table := NewRoutingTable(localID)
	return &DHT{
		localID:  localID,
		table:    table,
		storage:  NewStorage(localID, table),
		limiter:  NewRequestLimiter(constants.DefaultPerNodeRateLimit, constants.RateLimitWindow/constants.DefaultPerNodeRateLimit),
		rpc:      rpc,
		verifier: verifier,
		done:     make(chan struct{}),
	}
}

// RoutingTable exposes the underlying routing table for the router and
// adapter-selection code that needs custodian/peer information.
func (d *DHT) RoutingTable() *RoutingTable { return d.table }

// Storage exposes the local storage for direct inspection by diagnostics.
func (d *DHT) Storage() *Storage { return d.storage }

// Limiter exposes the request limiter so the router's ingress path can
// apply it uniformly to DHT RPCs.
func (d *DHT) Limiter() *RequestLimiter { return d.limiter }

// Start launches the periodic maintenance loop (stale-entry pruning,
// reputation decay, expired-record sweep) until ctx is canceled or Stop is
// called. The loop issues no refresh lookups of its own.
func (d *DHT) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.ctx != nil {
		d.mu.Unlock()
		return fmt.Errorf("dht: already running")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Unlock()

	go d.maintenanceLoop()
	return nil
}

// Stop cancels the maintenance loop and waits up to the shutdown grace
// period for it to exit.
func (d *DHT) Stop() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-d.done:
	case <-time.After(constants.ShutdownGracePeriod):
	}
	return nil
}

func (d *DHT) maintenanceLoop() {
	defer close(d.done)
	ticker := time.NewTicker(constants.ReputationDecayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.table.PruneStale()
			d.table.DecayReputations(0.1)
			d.storage.SweepExpired()
		}
	}
}

// Put stores value under key, first locally if this node is a responsible
// custodian, then by pushing it out to the K closest known nodes. Per the
// explicit resolution of the custodian-selection open question (§9): the
// K closest nodes returned by the local routing table's FindClosestNodes at
// the moment of the Put are exactly the custodian set — no additional
// liveness probing round is performed before selecting them.
func (d *DHT) Put(ctx context.Context, key wire.NodeId, value, signature []byte, publisher wire.NodeId) error {
	if d.storage.IsResponsible(key, constants.KBucketSize) {
		if err := d.storage.Put(key, value, signature, publisher, d.verifier, time.Now().Add(constants.StaleAfter)); err != nil {
			return err
		}
	}

	custodians := d.table.FindClosestNodes(key, constants.KBucketSize)
	if d.rpc == nil {
		return nil
	}

	var wg sync.WaitGroup
	for _, peer := range custodians {
		wg.Add(1)
		go func(p *NodeInfo) {
			defer wg.Done()
			if err := d.rpc.Store(ctx, p, key, value, signature, publisher); err != nil {
				d.table.RecordFailure(p.ID)
				return
			}
			d.table.RecordSuccess(p.ID)
		}(peer)
	}
	wg.Wait()
	return nil
}

// Get retrieves a value, checking local storage before falling back to an
// iterative FindValue lookup across the network.
func (d *DHT) Get(ctx context.Context, key wire.NodeId) ([]byte, error) {
	if value, ok := d.storage.Get(key); ok {
		return value, nil
	}
	if d.rpc == nil {
		return nil, wire.NewDHTError(wire.CodeKeyNotFound, "key not found locally and no rpc client configured")
	}
	value, _, err := IterativeFindValue(ctx, d.rpc, d.table, key)
	return value, err
}

// FindNode performs an iterative node lookup for target.
func (d *DHT) FindNode(ctx context.Context, target wire.NodeId) ([]*NodeInfo, error) {
	if d.rpc == nil {
		return d.table.FindClosestNodes(target, constants.KBucketSize), nil
	}
	return IterativeFindNode(ctx, d.rpc, d.table, target), nil
}

// AddNode registers a freshly discovered peer with the routing table.
func (d *DHT) AddNode(node *NodeInfo) bool {
	return d.table.AddNode(node)
}

// Bootstrap seeds the routing table from known entry points and performs an
// initial self-lookup to populate nearby buckets (§3).
func (d *DHT) Bootstrap(ctx context.Context, seeds []*NodeInfo) error {
	if len(seeds) == 0 {
		return fmt.Errorf("dht: bootstrap requires at least one seed node")
	}
	for _, seed := range seeds {
		d.table.AddNode(seed)
	}
	_, err := d.FindNode(ctx, d.localID)
	return err
}
