package privacy

import (
	"crypto/ed25519"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// CapabilityToken grants its grantee knowledge of the issuer's overlay
// destination without ever placing that link in the DHT. It is signed by
// the issuer's clearnet key so any holder of the issuer's clearnet public
// key can verify it (§4.8).
type CapabilityToken struct {
	IssuerClearnetNodeID  wire.NodeId `cbor:"issuer_clearnet_node_id"`
	GranteeClearnetNodeID wire.NodeId `cbor:"grantee_clearnet_node_id"`
	IssuerOverlayNodeID   wire.NodeId `cbor:"issuer_overlay_node_id"`
	OverlayDestination    string      `cbor:"overlay_destination"`
	IssuedAt              int64       `cbor:"issued_at"`
	ExpiresAt             int64       `cbor:"expires_at"`
	Signature             []byte      `cbor:"signature"`
}

// signingBytes returns the canonical CBOR encoding of every field but
// Signature, the payload the issuer signs and a verifier re-derives.
func (t *CapabilityToken) signingBytes() ([]byte, error) {
	unsigned := *t
	unsigned.Signature = nil
	return cbor.Marshal(unsigned)
}

// GrantAccess constructs and signs a CapabilityToken binding d's identity to
// grantee for the given validity window, rooted at issuedAt (§4.8).
func (d *DualIdentity) GrantAccess(grantee wire.NodeId, validity time.Duration, issuedAt time.Time) (*CapabilityToken, error) {
	token := &CapabilityToken{
		IssuerClearnetNodeID:  d.ClearnetNodeID(),
		GranteeClearnetNodeID: grantee,
		IssuerOverlayNodeID:   d.OverlayNodeID(),
		OverlayDestination:    d.OverlayDestination,
		IssuedAt:              issuedAt.Unix(),
		ExpiresAt:             issuedAt.Add(validity).Unix(),
	}

	payload, err := token.signingBytes()
	if err != nil {
		return nil, err
	}
	sig, err := d.signClearnet(payload)
	if err != nil {
		return nil, err
	}
	token.Signature = sig
	return token, nil
}

// Verify checks token's signature under issuerClearnetPub, that it has not
// expired as of now, and that it names verifierClearnetID as its grantee
// (§4.8).
func Verify(token *CapabilityToken, issuerClearnetPub ed25519.PublicKey, verifierClearnetID wire.NodeId, now time.Time) error {
	if token.GranteeClearnetNodeID != verifierClearnetID {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "capability token grantee does not match verifier")
	}
	if now.Unix() > token.ExpiresAt {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "capability token expired")
	}
	payload, err := token.signingBytes()
	if err != nil {
		return err
	}
	if !ed25519.Verify(issuerClearnetPub, payload, token.Signature) {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "capability token signature invalid")
	}
	return nil
}
