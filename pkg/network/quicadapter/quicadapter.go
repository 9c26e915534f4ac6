// Package quicadapter implements the Ethernet-range transport adapter
// (§4.5) over QUIC + TLS 1.3, generalized from the teacher's dedicated
// pkg/transport/quic package into a self-contained network.Adapter: one
// frame per QUIC stream, a single listener, and a small connection cache
// keyed by destination address.
package quicadapter

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/network"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// Adapter implements network.Adapter over QUIC. Peer authentication lives
// at the message layer (wire.Signer/Verifier); the TLS handshake here only
// needs to complete, not to establish peer identity, so the adapter
// generates its own ephemeral certificate and accepts any peer's.
type Adapter struct {
	mu sync.RWMutex

	name      string
	bindAddr  string
	tlsConfig *tls.Config

	listener *quic.Listener
	conns    map[string]*quic.Conn

	status network.Status
	local  network.Address

	inbox chan inboundFrame
}

type inboundFrame struct {
	from  network.Address
	frame *wire.Frame
}

// New creates a QUIC adapter named name that will bind bindAddr (a
// "host:port" UDP address) once Start is called.
func New(name, bindAddr string) *Adapter {
	return &Adapter{
		name:     name,
		bindAddr: bindAddr,
		conns:    make(map[string]*quic.Conn),
		status:   network.StatusUninitialized,
		inbox:    make(chan inboundFrame, 256),
	}
}

// Initialize generates the adapter's ephemeral TLS identity (§4.5:
// Initialize prepares the adapter but does not yet send or receive).
func (a *Adapter) Initialize(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status != network.StatusUninitialized {
		return nil
	}
	cfg, err := selfSignedTLSConfig()
	if err != nil {
		a.status = network.StatusError
		return fmt.Errorf("quicadapter: generate tls identity: %w", err)
	}
	a.tlsConfig = cfg
	a.status = network.StatusInitializing
	return nil
}

// Start opens the QUIC listener and begins accepting inbound connections.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.status == network.StatusReady {
		a.mu.Unlock()
		return nil
	}
	if a.tlsConfig == nil {
		a.mu.Unlock()
		if err := a.Initialize(ctx); err != nil {
			return err
		}
		a.mu.Lock()
	}
	listener, err := quic.ListenAddr(a.bindAddr, a.tlsConfig, quicConfig())
	if err != nil {
		a.status = network.StatusError
		a.mu.Unlock()
		return fmt.Errorf("quicadapter: listen %s: %w", a.bindAddr, err)
	}
	a.listener = listener
	a.local = network.Address{Type: network.AdapterTypeEthernet, Value: listener.Addr().String()}
	a.status = network.StatusReady
	a.mu.Unlock()

	go a.acceptLoop(ctx)
	return nil
}

func (a *Adapter) acceptLoop(ctx context.Context) {
	for {
		conn, err := a.listener.Accept(ctx)
		if err != nil {
			return
		}
		go a.serveConn(ctx, conn)
	}
}

func (a *Adapter) serveConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go a.readStream(conn, stream)
	}
}

func (a *Adapter) readStream(conn *quic.Conn, stream *quic.Stream) {
	data, err := io.ReadAll(stream)
	if err != nil {
		return
	}
	frame, err := wire.Deserialize(data)
	if err != nil {
		return
	}
	from := network.Address{Type: network.AdapterTypeEthernet, Value: conn.RemoteAddr().String()}
	select {
	case a.inbox <- inboundFrame{from: from, frame: frame}:
	default:
	}
}

// Stop closes the listener and every cached outbound connection.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = network.StatusShuttingDown
	if a.listener != nil {
		_ = a.listener.Close()
	}
	for key, conn := range a.conns {
		_ = conn.CloseWithError(0, "adapter stopped")
		delete(a.conns, key)
	}
	return nil
}

// Send opens (or reuses) a connection to destination and writes frame on a
// fresh stream, half-closing it so the peer's reader sees a clean EOF.
func (a *Adapter) Send(ctx context.Context, destination network.Address, frame *wire.Frame) error {
	conn, err := a.dial(ctx, destination)
	if err != nil {
		return fmt.Errorf("quicadapter: dial %s: %w", destination.Value, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		a.dropConn(destination.Value)
		return fmt.Errorf("quicadapter: open stream: %w", err)
	}
	data, err := frame.Serialize()
	if err != nil {
		return err
	}
	if _, err := stream.Write(data); err != nil {
		return fmt.Errorf("quicadapter: write frame: %w", err)
	}
	return stream.Close()
}

func (a *Adapter) dial(ctx context.Context, destination network.Address) (*quic.Conn, error) {
	a.mu.RLock()
	conn, ok := a.conns[destination.Value]
	a.mu.RUnlock()
	if ok {
		return conn, nil
	}

	cfg := a.tlsConfig.Clone()
	conn, err := quic.DialAddr(ctx, destination.Value, cfg, quicConfig())
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.conns[destination.Value] = conn
	a.mu.Unlock()
	return conn, nil
}

func (a *Adapter) dropConn(key string) {
	a.mu.Lock()
	delete(a.conns, key)
	a.mu.Unlock()
}

// Receive blocks until an inbound frame arrives or timeout elapses.
func (a *Adapter) Receive(ctx context.Context, timeout time.Duration) (network.Address, *wire.Frame, error) {
	select {
	case f := <-a.inbox:
		return f.from, f.frame, nil
	case <-ctx.Done():
		return network.Address{}, nil, ctx.Err()
	case <-time.After(timeout):
		return network.Address{}, nil, context.DeadlineExceeded
	}
}

// DiscoverPeers is unsupported on this adapter: QUIC/Ethernet reachability
// is learned through the DHT, not local broadcast.
func (a *Adapter) DiscoverPeers(ctx context.Context) ([]network.Address, error) {
	return nil, nil
}

// TestConnection dials destination, or reuses a cached connection to it,
// without sending application data. A new connection stays in the
// adapter's connection cache.
func (a *Adapter) TestConnection(ctx context.Context, destination network.Address) error {
	_, err := a.dial(ctx, destination)
	return err
}

func (a *Adapter) GetStatus() network.Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

func (a *Adapter) GetCapabilities() network.Capabilities {
	return network.Capabilities{
		Type:                network.AdapterTypeEthernet,
		Range:               network.RangeShort,
		TypicalLatencyMs:    20,
		TypicalBandwidthBps: 1e8,
		CostPerMB:           0,
	}
}

func (a *Adapter) GetLocalAddress() (network.Address, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.local, !a.local.IsZero()
}

// ParseAddress parses a bare "host:port" string into an Ethernet address.
func (a *Adapter) ParseAddress(s string) (network.Address, error) {
	if _, _, err := net.SplitHostPort(s); err != nil {
		return network.Address{}, fmt.Errorf("quicadapter: malformed address %q: %w", s, err)
	}
	return network.Address{Type: network.AdapterTypeEthernet, Value: s}, nil
}

func (a *Adapter) SupportsAddress(addr network.Address) bool {
	return addr.Type == network.AdapterTypeEthernet
}

func (a *Adapter) Type() network.AdapterType { return network.AdapterTypeEthernet }
func (a *Adapter) Name() string              { return a.name }

var _ network.Adapter = (*Adapter)(nil)

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  constants.QUICIdleTimeout,
		KeepAlivePeriod: constants.QUICKeepAlive,
	}
}

// selfSignedTLSConfig generates a throwaway Ed25519 certificate so the QUIC
// handshake can complete without an operator-provisioned PKI; the node's
// own message-level signatures (§4.1) are the real authentication boundary.
func selfSignedTLSConfig() (*tls.Config, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"MyriadMesh"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * 365 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, pub, priv)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  priv,
		}},
		NextProtos:         []string{constants.QUICALPN},
		InsecureSkipVerify: true,
	}, nil
}
