package network

import (
	"context"
	"math"
	"testing"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

func approxEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScore_EmergencyWeighting(t *testing.T) {
	caps := Capabilities{Range: RangeGlobal}
	snap := Snapshot{LatencyMs: 100, Reliability: 0.9}
	got := score(wire.Priority(255), caps, snap)
	want := 0.6*0.9 + 0.3*(1-0.1) + 0.1*1.0
	if !approxEqual(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestScore_HighWeighting(t *testing.T) {
	caps := Capabilities{Range: RangeMedium, CostPerMB: 0.5}
	snap := Snapshot{LatencyMs: 200, Reliability: 0.8, BandwidthBps: 5e7}
	got := score(wire.Priority(200), caps, snap)
	latencyNorm := 0.2
	bandwidthNorm := 0.5
	costNorm := 0.5
	want := 0.4*(1-latencyNorm) + 0.3*0.8 + 0.2*bandwidthNorm + 0.1*(1-costNorm)
	if !approxEqual(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestScore_OtherwiseWeighting(t *testing.T) {
	caps := Capabilities{Range: RangeShort, CostPerMB: 1.0}
	snap := Snapshot{LatencyMs: 1000, Reliability: 1.0, BandwidthBps: 1e8}
	got := score(wire.Priority(50), caps, snap)
	want := 0.25*(1-1.0) + 0.25*1.0 + 0.2*1.0 + 0.2*(1-1.0) + 0.1*0.5
	if !approxEqual(got, want) {
		t.Fatalf("score = %v, want %v", got, want)
	}
}

func TestSelector_EmergencyPrefersLowLatencyHighReliability(t *testing.T) {
	m := NewManager()

	fast := newFakeAdapter("fast", AdapterTypeCellular, Capabilities{Range: RangeGlobal, TypicalLatencyMs: 5})
	slow := newFakeAdapter("slow", AdapterTypeCellular, Capabilities{Range: RangeGlobal, TypicalLatencyMs: 500})
	_ = m.RegisterAdapter(context.Background(), "fast", fast)
	_ = m.RegisterAdapter(context.Background(), "slow", slow)

	slowMetrics, _ := m.Metrics("slow")
	for i := 0; i < 10; i++ {
		slowMetrics.RecordFailure()
	}

	sel := NewSelector(m)
	dest := Address{Type: AdapterTypeCellular, Value: "peer"}
	name, _, err := sel.Select(dest, wire.Priority(255))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if name != "fast" {
		t.Fatalf("expected fast adapter selected for Emergency traffic, got %q", name)
	}
}

func TestSelector_NoCommonAdapter(t *testing.T) {
	m := NewManager()
	eth := newFakeAdapter("eth0", AdapterTypeEthernet, Capabilities{})
	_ = m.RegisterAdapter(context.Background(), "eth0", eth)

	sel := NewSelector(m)
	_, _, err := sel.Select(Address{Type: AdapterTypeBluetooth, Value: "x"}, wire.Priority(128))
	werr, ok := wire.AsError(err)
	if !ok || werr.Code != wire.CodeNoCommonAdapter {
		t.Fatalf("expected NoCommonAdapter, got %v", err)
	}
}

func TestSelector_NoAdaptersAvailableWhenAllNonReady(t *testing.T) {
	m := NewManager()
	eth := newFakeAdapter("eth0", AdapterTypeEthernet, Capabilities{})
	eth.setStatus(StatusUnavailable)
	_ = m.RegisterAdapter(context.Background(), "eth0", eth)

	sel := NewSelector(m)
	_, _, err := sel.Select(Address{Type: AdapterTypeEthernet, Value: "x"}, wire.Priority(128))
	werr, ok := wire.AsError(err)
	if !ok || werr.Code != wire.CodeNoAdaptersAvailable {
		t.Fatalf("expected NoAdaptersAvailable, got %v", err)
	}
}

func TestSelector_TieBrokenByInsertionOrder(t *testing.T) {
	m := NewManager()
	first := newFakeAdapter("first", AdapterTypeEthernet, Capabilities{Range: RangeGlobal})
	second := newFakeAdapter("second", AdapterTypeEthernet, Capabilities{Range: RangeGlobal})
	_ = m.RegisterAdapter(context.Background(), "first", first)
	_ = m.RegisterAdapter(context.Background(), "second", second)

	sel := NewSelector(m)
	name, _, err := sel.Select(Address{Type: AdapterTypeEthernet, Value: "x"}, wire.Priority(128))
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if name != "first" {
		t.Fatalf("expected tie broken toward first-registered adapter, got %q", name)
	}
}
