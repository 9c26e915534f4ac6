package wire

import (
	"fmt"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/codec/cborcanon"
	"github.com/myriadmesh/myriadmesh/pkg/constants"
)

// Message is the envelope exchanged between nodes (§3).
type Message struct {
	ID          MessageId   `cbor:"id"`
	Source      NodeId      `cbor:"source"`
	Destination NodeId      `cbor:"destination"`
	Type        MessageType `cbor:"type"`
	Priority    Priority    `cbor:"priority"`
	TTL         uint8       `cbor:"ttl"`
	Timestamp   int64       `cbor:"timestamp"`
	Sequence    uint64      `cbor:"sequence"`
	Payload     []byte      `cbor:"payload"`
	Signature   []byte      `cbor:"sig,omitempty"`
}

// signingFields mirrors Message but without TTL and Signature. Forwarders
// mutate TTL in place as they decrement the hop counter, so the signature
// cannot cover it without forcing every hop to re-sign; excluding TTL from
// the signed bytes is the explicit resolution of the open question in §9.
type signingFields struct {
	ID          MessageId   `cbor:"id"`
	Source      NodeId      `cbor:"source"`
	Destination NodeId      `cbor:"destination"`
	Type        MessageType `cbor:"type"`
	Priority    Priority    `cbor:"priority"`
	Timestamp   int64       `cbor:"timestamp"`
	Sequence    uint64      `cbor:"sequence"`
	Payload     []byte      `cbor:"payload"`
}

// SigningBytes returns the canonical byte sequence a signature covers: id,
// source, destination, type, priority, timestamp, sequence and payload. TTL
// is intentionally excluded (see signingFields).
func (m *Message) SigningBytes() ([]byte, error) {
	return cborcanon.Marshal(signingFields{
		ID:          m.ID,
		Source:      m.Source,
		Destination: m.Destination,
		Type:        m.Type,
		Priority:    m.Priority,
		Timestamp:   m.Timestamp,
		Sequence:    m.Sequence,
		Payload:     m.Payload,
	})
}

// Signer produces a signature over an opaque byte string. Concrete
// implementations (e.g. Ed25519) live outside this package; the wire
// protocol only depends on this narrow interface (§1, §6).
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// Verifier checks a signature against a NodeId's public key material.
type Verifier interface {
	Verify(source NodeId, data, signature []byte) error
}

// Sign computes SigningBytes and stores the result in m.Signature.
func (m *Message) Sign(signer Signer) error {
	data, err := m.SigningBytes()
	if err != nil {
		return fmt.Errorf("wire: encode for signing: %w", err)
	}
	sig, err := signer.Sign(data)
	if err != nil {
		return fmt.Errorf("wire: sign: %w", err)
	}
	m.Signature = sig
	return nil
}

// VerifySignature checks m.Signature against SigningBytes using v.
func (m *Message) VerifySignature(v Verifier) error {
	if len(m.Signature) == 0 {
		return NewProtocolError(CodeMissingField, "message has no signature")
	}
	data, err := m.SigningBytes()
	if err != nil {
		return fmt.Errorf("wire: encode for signing: %w", err)
	}
	if err := v.Verify(m.Source, data, m.Signature); err != nil {
		return NewCryptoError(CodeInvalidSignature, err.Error())
	}
	return nil
}

// ValidationPolicy governs optional checks performed by Validate (§4.1).
type ValidationPolicy struct {
	// RequireSignatures, when true, makes Validate call VerifySignature.
	RequireSignatures bool
	Verifier          Verifier

	// MaxClockSkew bounds |now - timestamp|; zero uses constants.MaxClockSkew.
	MaxClockSkew time.Duration
}

// Validate checks a received message against the invariants of §4.1: TTL
// still live, payload within bound, timestamp within the allowed drift and,
// if the policy requires it, a valid sender signature.
func (m *Message) Validate(now time.Time, policy ValidationPolicy) error {
	if m.TTL == 0 {
		return NewRoutingError(CodeTTLExceeded, "ttl exhausted")
	}

	if len(m.Payload) > constants.MaxPayloadSize {
		return NewProtocolError(CodeMessageTooLarge, fmt.Sprintf("payload %d exceeds max %d", len(m.Payload), constants.MaxPayloadSize))
	}

	skew := policy.MaxClockSkew
	if skew <= 0 {
		skew = constants.MaxClockSkew
	}
	drift := now.Unix() - m.Timestamp
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > skew {
		return NewRoutingError(CodeInvalidTimestamp, "timestamp outside allowed drift")
	}

	if policy.RequireSignatures {
		if policy.Verifier == nil {
			return NewCryptoError(CodeInvalidSignature, "signature required but no verifier configured")
		}
		if err := m.VerifySignature(policy.Verifier); err != nil {
			return err
		}
	}

	return nil
}

// DecrementTTL decrements the hop counter by one, returning false if the
// message should be dropped: the TTL was already zero or has just reached
// zero.
func (m *Message) DecrementTTL() bool {
	if m.TTL == 0 {
		return false
	}
	m.TTL--
	return m.TTL > 0
}
