package node

import (
	"context"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// fakeAdapter is a minimal network.Adapter usable as both ends of a direct
// send/receive pair in tests: Send on one fake pushes onto the peer's
// inbox, and Receive drains this fake's own inbox.
type fakeAdapter struct {
	mu     sync.Mutex
	name   string
	typ    network.AdapterType
	caps   network.Capabilities
	status network.Status
	local  network.Address
	peer   *fakeAdapter
	inbox  chan inboundFrame

	sendErr error
}

type inboundFrame struct {
	from  network.Address
	frame *wire.Frame
}

func newFakeAdapter(name string, typ network.AdapterType, local network.Address) *fakeAdapter {
	return &fakeAdapter{
		name:   name,
		typ:    typ,
		status: network.StatusReady,
		local:  local,
		caps: network.Capabilities{
			Type:                typ,
			Range:               network.RangeGlobal,
			TypicalLatencyMs:    50,
			TypicalBandwidthBps: 1e7,
			CostPerMB:           0,
		},
		inbox: make(chan inboundFrame, 16),
	}
}

func (a *fakeAdapter) Initialize(ctx context.Context) error { return nil }
func (a *fakeAdapter) Start(ctx context.Context) error      { return nil }
func (a *fakeAdapter) Stop(ctx context.Context) error       { return nil }

func (a *fakeAdapter) Send(ctx context.Context, destination network.Address, frame *wire.Frame) error {
	a.mu.Lock()
	err := a.sendErr
	peer := a.peer
	a.mu.Unlock()
	if err != nil {
		return err
	}
	if peer == nil {
		return nil
	}
	peer.inbox <- inboundFrame{from: a.local, frame: frame}
	return nil
}

func (a *fakeAdapter) Receive(ctx context.Context, timeout time.Duration) (network.Address, *wire.Frame, error) {
	select {
	case f := <-a.inbox:
		return f.from, f.frame, nil
	case <-ctx.Done():
		return network.Address{}, nil, ctx.Err()
	case <-time.After(timeout):
		return network.Address{}, nil, context.DeadlineExceeded
	}
}

func (a *fakeAdapter) DiscoverPeers(ctx context.Context) ([]network.Address, error) { return nil, nil }
func (a *fakeAdapter) TestConnection(ctx context.Context, destination network.Address) error {
	return nil
}
func (a *fakeAdapter) GetStatus() network.Status             { return a.status }
func (a *fakeAdapter) GetCapabilities() network.Capabilities { return a.caps }
func (a *fakeAdapter) GetLocalAddress() (network.Address, bool) {
	return a.local, !a.local.IsZero()
}
func (a *fakeAdapter) ParseAddress(s string) (network.Address, error) {
	return network.Address{Type: a.typ, Value: s}, nil
}
func (a *fakeAdapter) SupportsAddress(addr network.Address) bool { return addr.Type == a.typ }
func (a *fakeAdapter) Type() network.AdapterType                 { return a.typ }
func (a *fakeAdapter) Name() string                              { return a.name }

var _ network.Adapter = (*fakeAdapter)(nil)

// link wires a and b as each other's peer so Send on one feeds Receive on
// the other.
func link(a, b *fakeAdapter) {
	a.peer = b
	b.peer = a
}
