// Package router implements the message router (§4.4): frame/message
// validation on ingress, deduplication, rate limiting, destination
// classification, a priority-ordered outbound queue, and DHT-backed
// store-and-forward for offline destinations.
package router

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/internal/dht"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// Forwarder hands a frame to the selection engine for transmission toward a
// specific next hop. The node's implementation (pkg/node) resolves the next
// hop's addresses and lets pkg/network's Selector choose among registered
// adapters; the router only needs this narrow interface (§4.6).
type Forwarder interface {
	Forward(ctx context.Context, nextHop wire.NodeId, frame *wire.Frame) error
}

// Deliverer accepts a message destined for the local application layer.
type Deliverer interface {
	Deliver(msg *wire.Message) error
}

// Config collects the router's dependencies and tunables.
type Config struct {
	LocalID          wire.NodeId
	DHT              *dht.DHT
	Forwarder        Forwarder
	Deliverer        Deliverer
	Verifier         wire.Verifier
	Signer           wire.Signer
	RequireSignature bool
	StoreAndForward  bool
	PerNodeRateLimit int
	GlobalRateLimit  int
	QueueCapacity    int
	// Logger receives diagnostic messages. A nil Logger discards them; the
	// router emits nothing by default (§9).
	Logger *log.Logger
}

// Router is the node's single point of message ingress and egress. It never
// blocks on adapter I/O: inbound messages destined elsewhere and locally
// originated messages both funnel through the outbound PriorityQueue, which
// a drain goroutine empties highest-priority-first (§4.4, §5).
type Router struct {
	localID   wire.NodeId
	dht       *dht.DHT
	forwarder Forwarder
	deliverer Deliverer
	verifier  wire.Verifier
	signer    wire.Signer
	policy    wire.ValidationPolicy

	storeAndForward bool

	dedup   *DeduplicationCache
	limiter *RateLimiter
	queue   *PriorityQueue

	log *log.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	droppedMu sync.Mutex
	dropped   map[wire.Code]uint64
}

// New constructs a Router from cfg, filling in defaults from pkg/constants
// for any zero-valued tunable.
func New(cfg Config) *Router {
	perNode := cfg.PerNodeRateLimit
	if perNode <= 0 {
		perNode = constants.DefaultPerNodeRateLimit
	}
	global := cfg.GlobalRateLimit
	if global <= 0 {
		global = constants.DefaultGlobalRateLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	r := &Router{
		localID:         cfg.LocalID,
		dht:             cfg.DHT,
		forwarder:       cfg.Forwarder,
		deliverer:       cfg.Deliverer,
		verifier:        cfg.Verifier,
		signer:          cfg.Signer,
		storeAndForward: cfg.StoreAndForward,
		dedup:           NewDeduplicationCache(constants.DedupCacheSize, constants.DedupTTL),
		limiter:         NewRateLimiter(perNode, global, constants.RateLimitWindow),
		queue:           NewPriorityQueue(cfg.QueueCapacity),
		log:             logger,
		done:            make(chan struct{}),
		dropped:         make(map[wire.Code]uint64),
	}
	r.policy = wire.ValidationPolicy{
		RequireSignatures: cfg.RequireSignature,
		Verifier:          cfg.Verifier,
	}
	return r
}

// Start launches the drain loop and periodic dedup sweep.
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.ctx != nil {
		r.mu.Unlock()
		return fmt.Errorf("router: already running")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	go r.drainLoop()
	go r.sweepLoop()
	return nil
}

// Stop cancels the background loops and waits up to the shutdown grace
// period for them to exit.
func (r *Router) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-r.done:
	case <-time.After(constants.ShutdownGracePeriod):
		r.log.Printf("router: drain loop did not exit within grace period")
	}
	return nil
}

// Ingress processes a frame received from any transport adapter: it
// validates the frame and message, applies deduplication and rate limiting,
// then classifies the destination (§4.4).
func (r *Router) Ingress(ctx context.Context, frame *wire.Frame) error {
	msg, err := frame.ToMessage()
	if err != nil {
		r.countDrop(wire.CodeInvalidMessageFormat)
		return err
	}

	if err := msg.Validate(time.Now(), r.policy); err != nil {
		r.recordFailureFromError(err, msg.Source)
		return err
	}

	if r.dedup.SeenOrMark(msg.ID) {
		return nil
	}

	if err := r.limiter.Allow(msg.Source); err != nil {
		return err
	}

	return r.route(ctx, msg)
}

// SendLocal enqueues a message originated by the local application layer.
// The caller is responsible for signing msg if the node's policy requires
// it.
func (r *Router) SendLocal(ctx context.Context, msg *wire.Message) error {
	r.dedup.SeenOrMark(msg.ID)
	return r.route(ctx, msg)
}

// route implements the destination classification of §4.4: local delivery,
// direct forwarding to a known peer, or DHT-assisted forwarding/store.
func (r *Router) route(ctx context.Context, msg *wire.Message) error {
	if msg.Destination == r.localID {
		return r.deliverLocal(msg)
	}

	if r.dht != nil && r.dht.RoutingTable().Get(msg.Destination) != nil {
		if !msg.DecrementTTL() {
			r.countDrop(wire.CodeTTLExceeded)
			return nil
		}
		return r.enqueue(msg.Destination, msg)
	}

	return r.routeViaDHT(ctx, msg)
}

// routeViaDHT handles a destination not known to be directly reachable: it
// consults the DHT for the closest known peers and either forwards toward
// the nearest one or, if this node is a custodian and store-and-forward is
// enabled, stores the message for later delivery.
func (r *Router) routeViaDHT(ctx context.Context, msg *wire.Message) error {
	if r.dht == nil {
		return wire.NewRoutingError(wire.CodeNoRoute, "no dht configured and destination not directly reachable")
	}

	closest, err := r.dht.FindNode(ctx, msg.Destination)
	if err != nil {
		return err
	}

	isCustodian := r.dht.Storage().IsResponsible(msg.Destination, constants.KBucketSize)
	if r.storeAndForward && isCustodian {
		storeFrame, encErr := wire.FromMessage(msg)
		if encErr != nil {
			return encErr
		}
		payload, encErr := storeFrame.Serialize()
		if encErr != nil {
			return encErr
		}
		ttl := time.Duration(constants.DefaultMessageTTLDays) * 24 * time.Hour
		expiresAt := time.Now().Add(ttl)
		var sig []byte
		if r.signer != nil {
			signed, signErr := dht.StoreSigningBytes(msg.Destination, payload, expiresAt)
			if signErr == nil {
				if s, signErr := r.signer.Sign(signed); signErr == nil {
					sig = s
				}
			}
		}
		if err := r.dht.Storage().Put(msg.Destination, payload, sig, r.localID, r.verifier, expiresAt); err != nil {
			r.log.Printf("router: store-and-forward put failed: %v", err)
		}
		return nil
	}

	if len(closest) == 0 {
		return wire.NewRoutingError(wire.CodeNoRoute, "no known route toward destination")
	}

	if !msg.DecrementTTL() {
		r.countDrop(wire.CodeTTLExceeded)
		return nil
	}
	return r.enqueue(closest[0].ID, msg)
}

func (r *Router) deliverLocal(msg *wire.Message) error {
	if r.deliverer == nil {
		return nil
	}
	if err := r.deliverer.Deliver(msg); err != nil {
		return err
	}
	if msg.Type == wire.MessageTypeData {
		ack := &wire.Message{
			ID:          msg.ID,
			Source:      r.localID,
			Destination: msg.Source,
			Type:        wire.MessageTypeAck,
			Priority:    msg.Priority,
			TTL:         constants.DefaultMaxHops,
			Timestamp:   time.Now().Unix(),
			Sequence:    msg.Sequence,
		}
		if r.signer != nil {
			_ = ack.Sign(r.signer)
		}
		return r.SendLocal(context.Background(), ack)
	}
	return nil
}

// enqueue re-serializes msg (its TTL may just have changed) and pushes the
// result onto the outbound priority queue for nextHop.
func (r *Router) enqueue(nextHop wire.NodeId, msg *wire.Message) error {
	updated, err := wire.FromMessage(msg)
	if err != nil {
		return err
	}
	item := &QueuedMessage{
		Frame:      updated,
		Message:    msg,
		NextHop:    nextHop,
		EnqueuedAt: time.Now(),
	}
	if err := r.queue.Enqueue(item); err != nil {
		r.countDrop(wire.CodeCacheFull)
		return err
	}
	return nil
}

// drainLoop pulls from the priority queue highest-band-first and invokes the
// forwarder, never blocking ingress while an adapter send is in flight.
func (r *Router) drainLoop() {
	defer close(r.done)
	for {
		item, ok := r.queue.Dequeue(r.ctx)
		if !ok {
			return
		}
		if r.forwarder == nil {
			continue
		}
		if err := r.forwarder.Forward(r.ctx, item.NextHop, item.Frame); err != nil {
			r.log.Printf("router: forward to %s failed: %v", item.NextHop, err)
		}
	}
}

func (r *Router) sweepLoop() {
	ticker := time.NewTicker(constants.DedupTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.dedup.Sweep()
		}
	}
}

func (r *Router) recordFailureFromError(err error, source wire.NodeId) {
	if werr, ok := wire.AsError(err); ok {
		r.countDrop(werr.Code)
	}
	if r.dht != nil {
		r.dht.RoutingTable().RecordFailure(source)
	}
}

func (r *Router) countDrop(code wire.Code) {
	r.droppedMu.Lock()
	r.dropped[code]++
	r.droppedMu.Unlock()
}

// DroppedCounts returns a snapshot of how many messages were dropped per
// error code, for diagnostics and metrics export.
func (r *Router) DroppedCounts() map[wire.Code]uint64 {
	r.droppedMu.Lock()
	defer r.droppedMu.Unlock()
	out := make(map[wire.Code]uint64, len(r.dropped))
	for k, v := range r.dropped {
		out[k] = v
	}
	return out
}
