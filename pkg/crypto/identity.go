// Package crypto implements the concrete cryptographic primitives the rest
// of the node consumes only as narrow interfaces (§1, §6): Ed25519 signing,
// X25519 key agreement, and BLAKE3-derived node identifiers.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/curve25519"
	"lukechampine.com/blake3"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// Identity holds one node's long-term signing keypair and its X25519 key
// agreement keypair, used respectively for message authentication (§4.1)
// and transport-level handshakes (§6).
type Identity struct {
	SigningPublicKey  ed25519.PublicKey  `json:"signing_public_key"`
	SigningPrivateKey ed25519.PrivateKey `json:"signing_private_key"`

	KeyAgreementPublicKey  [32]byte `json:"key_agreement_public_key"`
	KeyAgreementPrivateKey [32]byte `json:"key_agreement_private_key"`

	nodeID wire.NodeId
}

// DeriveNodeID computes the NodeId for an Ed25519 public key: the BLAKE3-256
// hash of the raw key bytes (§GLOSSARY: "NodeId ... derived from a node's
// long-term public key").
func DeriveNodeID(pub ed25519.PublicKey) wire.NodeId {
	hash := blake3.Sum256(pub)
	var id wire.NodeId
	copy(id[:], hash[:])
	return id
}

// GenerateIdentity creates a fresh signing and key-agreement keypair.
func GenerateIdentity() (*Identity, error) {
	sigPub, sigPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, wire.NewCryptoError(wire.CodeKeyGenerationFailed, err.Error())
	}

	var kaPriv, kaPub [32]byte
	if _, err := rand.Read(kaPriv[:]); err != nil {
		return nil, wire.NewCryptoError(wire.CodeKeyGenerationFailed, err.Error())
	}
	curve25519.ScalarBaseMult(&kaPub, &kaPriv)

	id := &Identity{
		SigningPublicKey:       sigPub,
		SigningPrivateKey:      sigPriv,
		KeyAgreementPublicKey:  kaPub,
		KeyAgreementPrivateKey: kaPriv,
	}
	id.nodeID = DeriveNodeID(sigPub)
	return id, nil
}

// NodeID returns this identity's NodeId.
func (id *Identity) NodeID() wire.NodeId {
	if id.nodeID.IsZero() {
		id.nodeID = DeriveNodeID(id.SigningPublicKey)
	}
	return id.nodeID
}

// Sign implements wire.Signer.
func (id *Identity) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(id.SigningPrivateKey, data), nil
}

// SharedSecret performs an X25519 key agreement against a peer's public
// key-agreement key.
func (id *Identity) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	var secret [32]byte
	out, err := curve25519.X25519(id.KeyAgreementPrivateKey[:], peerPublic[:])
	if err != nil {
		return secret, fmt.Errorf("crypto: x25519: %w", err)
	}
	copy(secret[:], out)
	return secret, nil
}

// SaveToFile persists the identity as JSON with owner-only permissions.
func (id *Identity) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("crypto: create identity dir: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return fmt.Errorf("crypto: marshal identity: %w", err)
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("crypto: write identity file: %w", err)
	}
	return nil
}

// LoadFromFile loads a previously saved identity.
func LoadFromFile(filename string) (*Identity, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, wire.NewCryptoError(wire.CodeIdentityLoadFailed, err.Error())
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, wire.NewCryptoError(wire.CodeIdentityLoadFailed, err.Error())
	}
	id.nodeID = DeriveNodeID(id.SigningPublicKey)
	return &id, nil
}
