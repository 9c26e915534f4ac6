// Package privacy implements the dual-identity layer (§4.8): separate
// clearnet and overlay keypairs per node, and signed capability tokens that
// let a node selectively disclose its overlay destination to a peer without
// publishing the link in the DHT.
package privacy

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/flynn/noise"
	"golang.org/x/crypto/curve25519"

	"github.com/myriadmesh/myriadmesh/pkg/crypto"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// DualIdentity holds a node's two independent signing keypairs: one bound
// to its clearnet NodeId, one bound to its overlay NodeId, plus the overlay
// transport destination the overlay key speaks for. The overlay destination
// is never written to the DHT under the clearnet NodeId (§4.8).
//
// The overlay identity also carries its own X25519 key-agreement keypair,
// independent of the clearnet identity's, used as the static key in the
// Noise_IK handshake (handshake.go) that authenticates a capability-token
// exchange over the overlay transport.
type DualIdentity struct {
	ClearnetPublic  ed25519.PublicKey
	clearnetPrivate ed25519.PrivateKey

	OverlayPublic  ed25519.PublicKey
	overlayPrivate ed25519.PrivateKey

	// OverlayDHPublic/overlayDHPrivate are the overlay identity's Noise
	// static keypair. Deliberately distinct from the clearnet identity's
	// key-agreement key so a compromised overlay session key reveals
	// nothing about the clearnet identity.
	OverlayDHPublic  [32]byte
	overlayDHPrivate [32]byte

	OverlayDestination string
}

// Generate creates a fresh DualIdentity for the given overlay destination
// string (an address meaningful only to the overlay transport adapter).
func Generate(overlayDestination string) (*DualIdentity, error) {
	clearnetPub, clearnetPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, wire.NewCryptoError(wire.CodeKeyGenerationFailed, err.Error())
	}
	overlayPub, overlayPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, wire.NewCryptoError(wire.CodeKeyGenerationFailed, err.Error())
	}

	var overlayDHPriv, overlayDHPub [32]byte
	if _, err := rand.Read(overlayDHPriv[:]); err != nil {
		return nil, wire.NewCryptoError(wire.CodeKeyGenerationFailed, err.Error())
	}
	curve25519.ScalarBaseMult(&overlayDHPub, &overlayDHPriv)

	d := &DualIdentity{
		ClearnetPublic:     clearnetPub,
		clearnetPrivate:    clearnetPriv,
		OverlayPublic:      overlayPub,
		overlayPrivate:     overlayPriv,
		OverlayDHPublic:    overlayDHPub,
		overlayDHPrivate:   overlayDHPriv,
		OverlayDestination: overlayDestination,
	}
	if err := d.VerifySeparateIdentities(); err != nil {
		return nil, err
	}
	return d, nil
}

// VerifySeparateIdentities enforces the §4.8 invariant that the clearnet and
// overlay public keys must never be equal.
func (d *DualIdentity) VerifySeparateIdentities() error {
	if ed25519Equal(d.ClearnetPublic, d.OverlayPublic) {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "clearnet and overlay public keys must differ")
	}
	return nil
}

func ed25519Equal(a, b ed25519.PublicKey) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ClearnetNodeID returns the NodeId derived from the clearnet public key,
// the identity this node is addressed by in the DHT.
func (d *DualIdentity) ClearnetNodeID() wire.NodeId {
	return crypto.DeriveNodeID(d.ClearnetPublic)
}

// OverlayNodeID returns the NodeId derived from the overlay public key.
// This identity is never published in the DHT under the clearnet NodeId.
func (d *DualIdentity) OverlayNodeID() wire.NodeId {
	return crypto.DeriveNodeID(d.OverlayPublic)
}

// signClearnet signs data with the clearnet signing key, implementing
// wire.Signer for the clearnet identity.
func (d *DualIdentity) signClearnet(data []byte) ([]byte, error) {
	return ed25519.Sign(d.clearnetPrivate, data), nil
}

// overlayDHKeyPair returns the overlay identity's X25519 static keypair in
// the shape flynn/noise expects for a Noise_IK handshake.
func (d *DualIdentity) overlayDHKeyPair() noise.DHKey {
	return noise.DHKey{Private: append([]byte(nil), d.overlayDHPrivate[:]...), Public: append([]byte(nil), d.OverlayDHPublic[:]...)}
}
