package network

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// HeartbeatSigner signs and identifies outbound heartbeats.
type HeartbeatSigner interface {
	LocalID() wire.NodeId
	Signer() wire.Signer
}

// Supervisor broadcasts periodic heartbeats on every Ready adapter and
// tracks a primary adapter for outbound traffic, demoting it to a backup
// when it degrades and promoting a healthier one in its place (§4.7). It
// follows the retry/health-check loop shape of the teacher's agent
// Supervisor, adapted to adapter health rather than process health.
type Supervisor struct {
	manager  *Manager
	identity HeartbeatSigner
	interval time.Duration
	log      *log.Logger

	mu            sync.Mutex
	primary       string
	lastPromotion time.Time
	demotedAt     map[string]time.Time
	seq           uint64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor constructs a failover Supervisor over manager's adapters.
// If logger is nil, diagnostics are discarded.
func NewSupervisor(manager *Manager, identity HeartbeatSigner, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Supervisor{
		manager:   manager,
		identity:  identity,
		interval:  constants.DefaultHeartbeatInterval,
		log:       logger,
		demotedAt: make(map[string]time.Time),
		done:      make(chan struct{}),
	}
}

// Start launches the heartbeat and health-check loops.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	go s.loop()
}

// Stop cancels the supervisor's background loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	<-s.done
}

// Primary returns the name of the currently preferred adapter for outbound
// traffic, or "" if none has been selected yet.
func (s *Supervisor) Primary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primary
}

func (s *Supervisor) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.broadcastHeartbeat()
			s.evaluateFailover()
		}
	}
}

// broadcastHeartbeat sends a signed heartbeat message on every adapter
// reporting Ready status (§4.7).
func (s *Supervisor) broadcastHeartbeat() {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	msg := &wire.Message{
		ID:        randomishMessageID(seq),
		Source:    s.identity.LocalID(),
		Type:      wire.MessageTypeHeartbeat,
		Priority:  wire.Priority(192),
		TTL:       1,
		Timestamp: time.Now().Unix(),
		Sequence:  seq,
	}
	if signer := s.identity.Signer(); signer != nil {
		if err := msg.Sign(signer); err != nil {
			s.log.Printf("failover: failed to sign heartbeat: %v", err)
			return
		}
	}
	frame, err := wire.FromMessage(msg)
	if err != nil {
		s.log.Printf("failover: failed to encode heartbeat: %v", err)
		return
	}

	for name, adapter := range s.manager.All() {
		if adapter.GetStatus() != StatusReady {
			continue
		}
		local, ok := adapter.GetLocalAddress()
		if !ok {
			continue
		}
		if err := adapter.Send(s.ctx, local, frame); err != nil {
			s.log.Printf("failover: heartbeat send on %q failed: %v", name, err)
		}
	}
}

// evaluateFailover demotes the primary adapter when its metrics cross the
// configured failure thresholds, and promotes the best healthy candidate
// whenever there is no primary, or once the hysteresis window has elapsed
// since the last promotion (§4.7).
func (s *Supervisor) evaluateFailover() {
	s.mu.Lock()
	primary := s.primary
	sinceLastPromotion := time.Since(s.lastPromotion)
	s.mu.Unlock()

	if primary != "" {
		if adapter, ok := s.manager.Get(primary); ok {
			if degraded := s.isDegraded(primary, adapter); degraded {
				s.mu.Lock()
				s.demotedAt[primary] = time.Now()
				s.primary = ""
				s.mu.Unlock()
				s.log.Printf("failover: demoted primary adapter %q", primary)
				primary = ""
			}
		}
	}

	if primary != "" && sinceLastPromotion < constants.FailoverHysteresis {
		return
	}

	best := s.pickHealthiest()
	if best == "" || best == primary {
		return
	}

	s.mu.Lock()
	s.primary = best
	s.lastPromotion = time.Now()
	s.mu.Unlock()
	s.log.Printf("failover: promoted adapter %q to primary", best)
}

// isDegraded reports whether adapter has crossed the consecutive-failure,
// latency, or loss thresholds of §4.7.
func (s *Supervisor) isDegraded(name string, adapter Adapter) bool {
	if adapter.GetStatus() != StatusReady {
		return true
	}
	metrics, ok := s.manager.Metrics(name)
	if !ok {
		return false
	}
	snap := metrics.Snapshot()
	if snap.ConsecutiveFailures >= constants.DefaultRetryAttempts {
		return true
	}
	if snap.LossRate > constants.DefaultLossThreshold {
		return true
	}
	caps := adapter.GetCapabilities()
	if caps.TypicalLatencyMs > 0 && snap.LatencyMs > caps.TypicalLatencyMs*constants.DefaultLatencyThresholdMultiplier {
		return true
	}
	return false
}

// pickHealthiest returns the name of the Ready, non-recently-demoted
// adapter with the best reliability, or "" if none qualifies. Adapters
// demoted within the hysteresis window are excluded to avoid flapping.
func (s *Supervisor) pickHealthiest() string {
	s.mu.Lock()
	demotedAt := make(map[string]time.Time, len(s.demotedAt))
	for k, v := range s.demotedAt {
		demotedAt[k] = v
	}
	s.mu.Unlock()

	var (
		bestName string
		bestRel  float64
		found    bool
	)
	for name, candidate := range s.manager.All() {
		if candidate.GetStatus() != StatusReady {
			continue
		}
		if ts, ok := demotedAt[name]; ok && time.Since(ts) < constants.FailoverHysteresis {
			continue
		}
		metrics, ok := s.manager.Metrics(name)
		if !ok {
			continue
		}
		rel := metrics.Snapshot().Reliability
		if !found || rel > bestRel {
			found = true
			bestRel = rel
			bestName = name
		}
	}
	return bestName
}

// randomishMessageID derives a deterministic, non-colliding-in-practice
// message ID from a monotonic sequence number, since heartbeats need an ID
// but carry no application payload to hash.
func randomishMessageID(seq uint64) wire.MessageId {
	var id wire.MessageId
	for i := 0; i < 8; i++ {
		id[len(id)-1-i] = byte(seq >> (8 * i))
	}
	return id
}
