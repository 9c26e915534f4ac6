package node

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/crypto"
	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/privacy"
	"github.com/myriadmesh/myriadmesh/pkg/router"
	"github.com/myriadmesh/myriadmesh/pkg/store"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// State is the node's lifecycle state, mirroring the teacher's agent
// state machine generalized from a single protocol agent to the whole
// mesh node (DHT, router, adapters, failover, monitoring).
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateError
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "stopped"
	}
}

// identitySigner adapts crypto.Identity to network.HeartbeatSigner.
type identitySigner struct {
	identity *crypto.Identity
}

func (s identitySigner) LocalID() wire.NodeId { return s.identity.NodeID() }
func (s identitySigner) Signer() wire.Signer  { return s.identity }

// receiveTimeout bounds each adapter's blocking Receive call so the receive
// pump can observe shutdown promptly without busy-polling.
const receiveTimeout = 2 * time.Second

// Node wires together the DHT, router, adapter manager, failover
// supervisor, health monitor, privacy layer, and persistent store into one
// running mesh peer (§5, §6). It is the concrete dht.RPCClient/
// router.Forwarder/router.Deliverer glue the rest of the packages depend on
// only as narrow interfaces.
type Node struct {
	mu    sync.RWMutex
	state State

	config      Config
	identity    *crypto.Identity
	overlay     *privacy.DualIdentity
	keyRegistry *crypto.PeerKeyRegistry
	tokens      *privacy.TokenStorage
	store       store.Store

	manager    *network.Manager
	selector   *network.Selector
	supervisor *network.Supervisor
	prom       *network.PromMetrics
	monitor    *Monitor

	dht       *dht.DHT
	dhtClient *DHTClient
	server    *requestServer
	router    *router.Router

	supervisorStarted bool

	log *log.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	shutdown chan struct{}
	wg       sync.WaitGroup
	done     chan struct{}
}

// Option customizes New's construction of a Node.
type Option func(*Node)

// WithLogger overrides the default discarding logger.
func WithLogger(logger *log.Logger) Option {
	return func(n *Node) { n.log = logger }
}

// WithStore overrides the default in-memory persistent-store reference
// implementation (§6 Non-goal: the core only needs the small Store
// interface, not a concrete on-disk backend).
func WithStore(s store.Store) Option {
	return func(n *Node) { n.store = s }
}

// WithPrometheusRegisterer exports adapter metrics (§4.6's EMA latency,
// bandwidth, and reliability) as Prometheus gauges against reg.
func WithPrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(n *Node) {
		pm, err := network.NewPromMetrics(reg)
		if err != nil {
			n.log.Printf("node: prometheus registration failed, adapter metrics export disabled: %v", err)
			return
		}
		n.prom = pm
	}
}

// WithOverlayIdentity attaches a dual-identity privacy layer (§4.8) so the
// node can grant and honor capability tokens over its overlay destination.
func WithOverlayIdentity(overlay *privacy.DualIdentity) Option {
	return func(n *Node) { n.overlay = overlay }
}

// New constructs a Node from cfg and identity, wiring the DHT, router,
// adapter manager, selector, failover supervisor, and monitor together but
// not starting any of them; call Start to begin operation.
func New(cfg Config, identity *crypto.Identity, opts ...Option) (*Node, error) {
	n := &Node{
		state:       StateStopped,
		config:      cfg,
		identity:    identity,
		keyRegistry: crypto.NewPeerKeyRegistry(),
		tokens:      privacy.NewTokenStorage(),
		store:       store.NewMemoryStore(),
		manager:     network.NewManager(),
		log:         log.New(io.Discard, "", 0),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.keyRegistry.Register(identity.SigningPublicKey)
	localID := identity.NodeID()

	n.selector = network.NewSelector(n.manager)
	n.dhtClient = NewDHTClient(localID, identity, n.manager, n.selector)
	n.dht = dht.New(localID, n.dhtClient, n.keyRegistry)
	n.supervisor = network.NewSupervisor(n.manager, identitySigner{identity: identity}, n.log)
	n.monitor = NewMonitor(n.manager, n.prom, cfg.Network.Monitoring, n.log, n.shutdown)

	forwarder := newAdapterForwarder(n.dht, n.manager, n.selector)
	n.router = router.New(router.Config{
		LocalID:          localID,
		DHT:              n.dht,
		Forwarder:        forwarder,
		Deliverer:        n,
		Verifier:         n.keyRegistry,
		Signer:           identity,
		RequireSignature: cfg.Security.RequireSignatures,
		StoreAndForward:  cfg.Routing.StoreAndForward,
		PerNodeRateLimit: constants.DefaultPerNodeRateLimit,
		GlobalRateLimit:  constants.DefaultGlobalRateLimit,
		QueueCapacity:    constants.PriorityQueueCapacityPerBand * 5,
		Logger:           n.log,
	})
	n.server = newRequestServer(localID, n.dht, n.router, n.dhtClient, identity)

	return n, nil
}

// LocalID returns the node's NodeId, derived from its signing identity.
func (n *Node) LocalID() wire.NodeId { return n.identity.NodeID() }

// State reports the node's current lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Node) setState(s State) {
	n.mu.Lock()
	n.state = s
	n.mu.Unlock()
}

// Manager exposes the adapter manager so callers can RegisterAdapter before
// or after Start.
func (n *Node) Manager() *network.Manager { return n.manager }

// Tokens exposes the capability-token storage for the privacy layer (§4.8).
func (n *Node) Tokens() *privacy.TokenStorage { return n.tokens }

// Router exposes the router for local message origination.
func (n *Node) Router() *router.Router { return n.router }

// Overlay returns the node's dual identity, if one was configured via
// WithOverlayIdentity (§4.8).
func (n *Node) Overlay() *privacy.DualIdentity { return n.overlay }

// GrantAccess issues a capability token binding grantee to this node's
// overlay destination, signed by the overlay identity's clearnet key. It
// fails if the node has no overlay identity configured (§4.8).
func (n *Node) GrantAccess(grantee wire.NodeId, validity time.Duration) (*privacy.CapabilityToken, error) {
	if n.overlay == nil {
		return nil, fmt.Errorf("node: no overlay identity configured")
	}
	return n.overlay.GrantAccess(grantee, validity, time.Now())
}

// VerifyCapabilityToken checks token under issuerClearnetPub and, if valid,
// records it in the node's token storage for later reuse (§4.8).
func (n *Node) VerifyCapabilityToken(token *privacy.CapabilityToken, issuerClearnetPub ed25519.PublicKey) error {
	if err := privacy.Verify(token, issuerClearnetPub, n.LocalID(), time.Now()); err != nil {
		return err
	}
	n.tokens.Insert(token)
	return nil
}

// Deliver implements router.Deliverer: a message addressed to this node is
// recorded in the persistent store as delivered. Any richer application
// dispatch (content handlers, subscriptions) is layered on top of this.
func (n *Node) Deliver(msg *wire.Message) error {
	ctx := context.Background()
	now := time.Now().Unix()
	rec := store.MessageRecord{
		ID:          msg.ID.String(),
		Destination: msg.Destination.String(),
		Payload:     msg.Payload,
		Priority:    int(msg.Priority),
		Status:      store.MessageStatusDelivered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := n.store.PutMessage(ctx, rec); err != nil {
		n.log.Printf("node: record delivered message: %v", err)
	}
	return nil
}

// Start brings up the DHT, router, failover supervisor, and monitor, then
// bootstraps the DHT against the configured seed nodes and begins a
// receive pump per registered adapter (§5, §6).
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.state == StateRunning || n.state == StateStarting {
		n.mu.Unlock()
		return fmt.Errorf("node: already %s", n.state)
	}
	n.state = StateStarting
	n.ctx, n.cancel = context.WithCancel(ctx)
	n.mu.Unlock()

	if err := n.dht.Start(n.ctx); err != nil {
		n.setState(StateError)
		return fmt.Errorf("node: start dht: %w", err)
	}
	if err := n.router.Start(n.ctx); err != nil {
		n.setState(StateError)
		return fmt.Errorf("node: start router: %w", err)
	}
	if n.config.Network.Failover.AutoFailover {
		n.supervisor.Start(n.ctx)
		n.supervisorStarted = true
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.monitor.Run(n.ctx)
	}()

	n.startReceivePumps()

	if n.config.DHT.Enabled && len(n.config.DHT.BootstrapNodes) > 0 {
		seeds := parseBootstrapSeeds(n.config.DHT.BootstrapNodes)
		if len(seeds) > 0 {
			n.wg.Add(1)
			go func() {
				defer n.wg.Done()
				if err := n.dht.Bootstrap(n.ctx, seeds); err != nil {
					n.log.Printf("node: dht bootstrap: %v", err)
				}
			}()
		}
	}

	go n.run()

	n.setState(StateRunning)
	return nil
}

// run is the node's background supervisory loop: once the node's context is
// canceled it closes shutdown, waits for every task tracked by wg to exit,
// and then closes done. Stop bounds its own wait on done by the shutdown
// grace period.
func (n *Node) run() {
	defer close(n.done)
	<-n.ctx.Done()
	close(n.shutdown)
	n.wg.Wait()
}

// startReceivePumps spawns one goroutine per currently-registered adapter
// that loops on Receive and dispatches inbound frames to the request
// server. Adapters registered after Start are not picked up automatically;
// callers should register adapters before calling Start.
func (n *Node) startReceivePumps() {
	for name, adapter := range n.manager.All() {
		n.wg.Add(1)
		go n.receivePump(name, adapter)
	}
}

func (n *Node) receivePump(name string, adapter network.Adapter) {
	defer n.wg.Done()
	for {
		select {
		case <-n.ctx.Done():
			return
		default:
		}

		_, frame, err := adapter.Receive(n.ctx, receiveTimeout)
		if err != nil {
			select {
			case <-n.ctx.Done():
				return
			default:
			}
			continue
		}
		if frame == nil {
			continue
		}
		if err := n.server.HandleFrame(n.ctx, frame); err != nil {
			n.log.Printf("node: adapter %q: handle inbound frame: %v", name, err)
		}
	}
}

// Stop signals every background task to exit and waits up to the shutdown
// grace period (§5) for them to do so before abandoning them.
func (n *Node) Stop() error {
	n.mu.Lock()
	if n.state == StateStopped || n.state == StateStopping {
		n.mu.Unlock()
		return fmt.Errorf("node: already %s", n.state)
	}
	n.state = StateStopping
	cancel := n.cancel
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	select {
	case <-n.done:
	case <-time.After(constants.ShutdownGracePeriod):
		n.log.Printf("node: background tasks did not exit within grace period, abandoning")
	}

	if n.supervisorStarted {
		n.supervisor.Stop()
	}
	_ = n.router.Stop()
	_ = n.dht.Stop()
	if err := n.manager.StopAll(context.Background()); err != nil {
		n.log.Printf("node: stop adapters: %v", err)
	}
	if err := n.store.Close(); err != nil {
		n.log.Printf("node: close store: %v", err)
	}

	n.setState(StateStopped)
	return nil
}

// parseBootstrapSeeds parses "<hex-node-id>@<address>" bootstrap entries
// into routing-table seed nodes. Entries that fail to parse are skipped
// and logged rather than aborting the whole bootstrap.
func parseBootstrapSeeds(entries []string) []*dht.NodeInfo {
	seeds := make([]*dht.NodeInfo, 0, len(entries))
	for _, entry := range entries {
		parts := strings.SplitN(entry, "@", 2)
		if len(parts) != 2 {
			continue
		}
		raw, err := hex.DecodeString(parts[0])
		if err != nil {
			continue
		}
		id, err := wire.NodeIdFromBytes(raw)
		if err != nil {
			continue
		}
		seeds = append(seeds, dht.NewNodeInfo(id, nil, []string{parts[1]}))
	}
	return seeds
}
