package network

import (
	"context"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// Adapter is the uniform transport contract every concrete transport
// (Ethernet, Bluetooth, cellular, LoRaWAN, radio, overlay) implements. The
// router and selection engine never depend on a transport's concrete type,
// only on this interface (§4.5).
type Adapter interface {
	// Initialize prepares the adapter from local configuration but does not
	// yet send or receive traffic.
	Initialize(ctx context.Context) error

	// Start begins accepting and sending traffic.
	Start(ctx context.Context) error

	// Stop shuts the adapter down, releasing any held resources.
	Stop(ctx context.Context) error

	// Send transmits frame to destination.
	Send(ctx context.Context, destination Address, frame *wire.Frame) error

	// Receive blocks until a frame arrives or timeout elapses, returning the
	// sender's address alongside the frame.
	Receive(ctx context.Context, timeout time.Duration) (Address, *wire.Frame, error)

	// DiscoverPeers returns addresses of peers reachable on this adapter,
	// where the transport supports discovery (e.g. local broadcast).
	DiscoverPeers(ctx context.Context) ([]Address, error)

	// TestConnection probes reachability of destination without delivering
	// application data.
	TestConnection(ctx context.Context, destination Address) error

	// GetStatus reports the adapter's current operational state.
	GetStatus() Status

	// GetCapabilities reports the adapter's static transport properties.
	GetCapabilities() Capabilities

	// GetLocalAddress returns the address this adapter is reachable at, if
	// any.
	GetLocalAddress() (Address, bool)

	// ParseAddress parses a transport-specific string form into an Address.
	ParseAddress(s string) (Address, error)

	// SupportsAddress reports whether this adapter can route to addr.
	SupportsAddress(addr Address) bool

	// Type identifies the adapter's transport family.
	Type() AdapterType

	// Name returns the adapter's registered instance name.
	Name() string
}
