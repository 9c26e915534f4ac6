package crypto

import (
	"crypto/ed25519"
	"sync"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// PeerKeyRegistry maps discovered NodeIds to the Ed25519 public key they were
// derived from, so a received message's signature can be verified without
// re-deriving the key from the wire each time. Entries are populated as peers
// are discovered via the DHT or an adapter's handshake (§4.1, §6).
type PeerKeyRegistry struct {
	mu   sync.RWMutex
	keys map[wire.NodeId]ed25519.PublicKey
}

// NewPeerKeyRegistry returns an empty registry.
func NewPeerKeyRegistry() *PeerKeyRegistry {
	return &PeerKeyRegistry{keys: make(map[wire.NodeId]ed25519.PublicKey)}
}

// Register binds pub's derived NodeId to pub, replacing any key already
// bound to that id, and returns the derived id.
func (r *PeerKeyRegistry) Register(pub ed25519.PublicKey) wire.NodeId {
	id := DeriveNodeID(pub)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[id] = append(ed25519.PublicKey(nil), pub...)
	return id
}

// Lookup returns the public key bound to id, if any.
func (r *PeerKeyRegistry) Lookup(id wire.NodeId) (ed25519.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pub, ok := r.keys[id]
	return pub, ok
}

// Forget removes any key bound to id.
func (r *PeerKeyRegistry) Forget(id wire.NodeId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, id)
}

// Verify implements wire.Verifier: it requires the signer's public key to
// have already been registered (typically from its DHT NodeInfo).
func (r *PeerKeyRegistry) Verify(source wire.NodeId, data, signature []byte) error {
	pub, ok := r.Lookup(source)
	if !ok {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "no known public key for source node")
	}
	if !ed25519.Verify(pub, data, signature) {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "signature does not match")
	}
	return nil
}
