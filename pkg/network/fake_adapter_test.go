package network

import (
	"context"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// fakeAdapter is an in-memory Adapter used across this package's tests. It
// never touches real I/O: Send records the call, Receive blocks until
// canceled.
type fakeAdapter struct {
	mu     sync.Mutex
	name   string
	typ    AdapterType
	caps   Capabilities
	status Status
	local  Address

	sends      []Address
	sendErr    error
	supportsFn func(Address) bool

	initErr  error
	startErr error
	stopErr  error
}

func newFakeAdapter(name string, typ AdapterType, caps Capabilities) *fakeAdapter {
	return &fakeAdapter{
		name:   name,
		typ:    typ,
		caps:   caps,
		status: StatusReady,
		local:  Address{Type: typ, Value: name},
	}
}

func (f *fakeAdapter) Initialize(ctx context.Context) error { return f.initErr }
func (f *fakeAdapter) Start(ctx context.Context) error       { return f.startErr }
func (f *fakeAdapter) Stop(ctx context.Context) error        { return f.stopErr }

func (f *fakeAdapter) Send(ctx context.Context, destination Address, frame *wire.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, destination)
	return f.sendErr
}

func (f *fakeAdapter) Receive(ctx context.Context, timeout time.Duration) (Address, *wire.Frame, error) {
	<-ctx.Done()
	return Address{}, nil, ctx.Err()
}

func (f *fakeAdapter) DiscoverPeers(ctx context.Context) ([]Address, error) { return nil, nil }

func (f *fakeAdapter) TestConnection(ctx context.Context, destination Address) error { return nil }

func (f *fakeAdapter) GetStatus() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeAdapter) setStatus(s Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeAdapter) GetCapabilities() Capabilities { return f.caps }

func (f *fakeAdapter) GetLocalAddress() (Address, bool) { return f.local, true }

func (f *fakeAdapter) ParseAddress(s string) (Address, error) {
	return Address{Type: f.typ, Value: s}, nil
}

func (f *fakeAdapter) SupportsAddress(addr Address) bool {
	if f.supportsFn != nil {
		return f.supportsFn(addr)
	}
	return addr.Type == f.typ
}

func (f *fakeAdapter) Type() AdapterType { return f.typ }
func (f *fakeAdapter) Name() string      { return f.name }

func (f *fakeAdapter) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}
