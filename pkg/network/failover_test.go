package network

import (
	"context"
	"testing"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

type fakeIdentity struct {
	id wire.NodeId
}

func (f fakeIdentity) LocalID() wire.NodeId { return f.id }
func (f fakeIdentity) Signer() wire.Signer  { return nil }

func TestSupervisor_BroadcastsHeartbeatOnReadyAdapters(t *testing.T) {
	m := NewManager()
	a := newFakeAdapter("a", AdapterTypeEthernet, Capabilities{})
	notReady := newFakeAdapter("b", AdapterTypeEthernet, Capabilities{})
	notReady.setStatus(StatusUnavailable)
	_ = m.RegisterAdapter(context.Background(), "a", a)
	_ = m.RegisterAdapter(context.Background(), "b", notReady)

	sup := NewSupervisor(m, fakeIdentity{}, nil)
	sup.broadcastHeartbeat()

	if a.sendCount() != 1 {
		t.Fatalf("expected heartbeat sent on ready adapter, got %d sends", a.sendCount())
	}
	if notReady.sendCount() != 0 {
		t.Fatalf("expected no heartbeat sent on non-ready adapter, got %d sends", notReady.sendCount())
	}
}

func TestSupervisor_DemotesDegradedPrimary(t *testing.T) {
	m := NewManager()
	a := newFakeAdapter("a", AdapterTypeEthernet, Capabilities{TypicalLatencyMs: 50})
	_ = m.RegisterAdapter(context.Background(), "a", a)

	sup := NewSupervisor(m, fakeIdentity{}, nil)
	sup.mu.Lock()
	sup.primary = "a"
	sup.lastPromotion = time.Now().Add(-time.Hour)
	sup.mu.Unlock()

	metrics, _ := m.Metrics("a")
	metrics.RecordFailure()
	metrics.RecordFailure()
	metrics.RecordFailure()

	sup.evaluateFailover()

	if got := sup.Primary(); got == "a" {
		t.Fatalf("expected degraded primary to be demoted, still primary: %q", got)
	}
}

func TestSupervisor_PromotesHealthiestAfterHysteresis(t *testing.T) {
	m := NewManager()
	good := newFakeAdapter("good", AdapterTypeEthernet, Capabilities{})
	_ = m.RegisterAdapter(context.Background(), "good", good)

	sup := NewSupervisor(m, fakeIdentity{}, nil)
	sup.evaluateFailover()

	if got := sup.Primary(); got != "good" {
		t.Fatalf("expected good adapter promoted to primary, got %q", got)
	}
}

func TestSupervisor_DoesNotFlapDemotedAdapterWithinHysteresis(t *testing.T) {
	m := NewManager()
	onlyAdapter := newFakeAdapter("only", AdapterTypeEthernet, Capabilities{})
	_ = m.RegisterAdapter(context.Background(), "only", onlyAdapter)

	sup := NewSupervisor(m, fakeIdentity{}, nil)
	sup.mu.Lock()
	sup.demotedAt["only"] = time.Now()
	sup.mu.Unlock()

	sup.evaluateFailover()

	if got := sup.Primary(); got == "only" {
		t.Fatalf("expected recently demoted adapter to be excluded during hysteresis window")
	}
}

func TestSupervisor_StartStop(t *testing.T) {
	m := NewManager()
	a := newFakeAdapter("a", AdapterTypeEthernet, Capabilities{})
	_ = m.RegisterAdapter(context.Background(), "a", a)

	sup := NewSupervisor(m, fakeIdentity{}, nil)
	sup.interval = 5 * time.Millisecond
	sup.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	sup.Stop()

	if a.sendCount() == 0 {
		t.Fatal("expected at least one heartbeat broadcast before stop")
	}
}
