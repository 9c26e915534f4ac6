package privacy

import (
	"fmt"

	"github.com/flynn/noise"
	"github.com/fxamacker/cbor/v2"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// cipherSuite is the Noise_IK parameter set used by every overlay handshake:
// X25519 for key agreement, ChaCha20-Poly1305 for AEAD, BLAKE2b for hashing.
func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashBLAKE2b)
}

// Session wraps one Noise_IK handshake and the transport cipher states it
// yields, authenticating a single capability-token exchange over the
// overlay transport (§4.8). IK completes in one round trip: the initiator
// already knows the responder's static public key (passed to
// NewInitiatorSession as peerOverlayDH), so no separate key-discovery
// step is needed before the handshake can start.
type Session struct {
	state      *noise.HandshakeState
	initiator  bool
	complete   bool
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState
}

// NewInitiatorSession starts a Noise_IK handshake as the initiator, bound to
// local's overlay static keypair and authenticated against peerOverlayDH,
// the responder's overlay X25519 public key.
func NewInitiatorSession(local *DualIdentity, peerOverlayDH [32]byte) (*Session, error) {
	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite(),
		Pattern:       noise.HandshakeIK,
		Initiator:     true,
		StaticKeypair: local.overlayDHKeyPair(),
		PeerStatic:    peerOverlayDH[:],
	})
	if err != nil {
		return nil, fmt.Errorf("privacy: init initiator handshake: %w", err)
	}
	return &Session{state: state, initiator: true}, nil
}

// NewResponderSession starts a Noise_IK handshake as the responder, bound to
// local's overlay static keypair. The responder learns the initiator's
// static key from the first handshake message itself.
func NewResponderSession(local *DualIdentity) (*Session, error) {
	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite(),
		Pattern:       noise.HandshakeIK,
		Initiator:     false,
		StaticKeypair: local.overlayDHKeyPair(),
	})
	if err != nil {
		return nil, fmt.Errorf("privacy: init responder handshake: %w", err)
	}
	return &Session{state: state, initiator: false}, nil
}

// IsComplete reports whether both handshake messages have been exchanged
// and transport cipher states are available.
func (s *Session) IsComplete() bool {
	return s.complete
}

// WriteHandshakeMessage advances the handshake by one step, embedding
// payload (typically a marshaled CapabilityToken, see OfferCapability)
// inside the encrypted handshake message.
func (s *Session) WriteHandshakeMessage(payload []byte) ([]byte, error) {
	msg, cs1, cs2, err := s.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("privacy: write handshake message: %w", err)
	}
	s.captureCipherStates(cs1, cs2)
	return msg, nil
}

// ReadHandshakeMessage processes a received handshake message and returns
// the decrypted payload it carried.
func (s *Session) ReadHandshakeMessage(msg []byte) ([]byte, error) {
	payload, cs1, cs2, err := s.state.ReadMessage(nil, msg)
	if err != nil {
		return nil, fmt.Errorf("privacy: read handshake message: %w", err)
	}
	s.captureCipherStates(cs1, cs2)
	return payload, nil
}

func (s *Session) captureCipherStates(cs1, cs2 *noise.CipherState) {
	if cs1 == nil || cs2 == nil {
		return
	}
	s.complete = true
	if s.initiator {
		s.sendCipher, s.recvCipher = cs1, cs2
	} else {
		s.sendCipher, s.recvCipher = cs2, cs1
	}
}

// Encrypt authenticates and encrypts plaintext for the peer, once the
// handshake has completed.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.complete {
		return nil, wire.NewCryptoError(wire.CodeInvalidSignature, "overlay session handshake not complete")
	}
	return s.sendCipher.Encrypt(nil, nil, plaintext), nil
}

// Decrypt authenticates and decrypts a message received from the peer, once
// the handshake has completed.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if !s.complete {
		return nil, wire.NewCryptoError(wire.CodeInvalidSignature, "overlay session handshake not complete")
	}
	return s.recvCipher.Decrypt(nil, nil, ciphertext)
}

// OfferCapability starts an initiator-side Noise_IK handshake that carries
// token as its first message's encrypted payload, binding delivery of the
// capability grant to a mutually authenticated overlay session in one round
// trip. The returned Session completes once the peer's reply has been fed
// to ReadHandshakeMessage.
func OfferCapability(local *DualIdentity, peerOverlayDH [32]byte, token *CapabilityToken) (*Session, []byte, error) {
	session, err := NewInitiatorSession(local, peerOverlayDH)
	if err != nil {
		return nil, nil, err
	}
	payload, err := cbor.Marshal(token)
	if err != nil {
		return nil, nil, fmt.Errorf("privacy: marshal capability token: %w", err)
	}
	msg, err := session.WriteHandshakeMessage(payload)
	if err != nil {
		return nil, nil, err
	}
	return session, msg, nil
}

// AcceptCapability processes an incoming Noise_IK first message as the
// responder, recovering the CapabilityToken it carried, and produces the
// second handshake message that completes the session.
func AcceptCapability(local *DualIdentity, msg []byte) (*Session, *CapabilityToken, []byte, error) {
	session, err := NewResponderSession(local)
	if err != nil {
		return nil, nil, nil, err
	}
	payload, err := session.ReadHandshakeMessage(msg)
	if err != nil {
		return nil, nil, nil, err
	}
	var token CapabilityToken
	if err := cbor.Unmarshal(payload, &token); err != nil {
		return nil, nil, nil, fmt.Errorf("privacy: unmarshal capability token: %w", err)
	}
	reply, err := session.WriteHandshakeMessage(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return session, &token, reply, nil
}
