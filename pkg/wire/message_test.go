package wire

import (
	"crypto/ed25519"
	"testing"
	"time"
)

type ed25519Signer struct{ priv ed25519.PrivateKey }

func (s ed25519Signer) Sign(data []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, data), nil
}

type ed25519Verifier struct {
	keys map[NodeId]ed25519.PublicKey
}

func (v ed25519Verifier) Verify(source NodeId, data, signature []byte) error {
	pub, ok := v.keys[source]
	if !ok {
		return NewCryptoError(CodeInvalidSignature, "unknown source")
	}
	if !ed25519.Verify(pub, data, signature) {
		return NewCryptoError(CodeInvalidSignature, "signature mismatch")
	}
	return nil
}

func TestMessage_SignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var source NodeId
	copy(source[:], pub)

	msg := sampleMessage()
	msg.Source = source

	if err := msg.Sign(ed25519Signer{priv: priv}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	verifier := ed25519Verifier{keys: map[NodeId]ed25519.PublicKey{source: pub}}
	if err := msg.VerifySignature(verifier); err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
}

func TestMessage_TTLExcludedFromSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var source NodeId
	copy(source[:], pub)

	msg := sampleMessage()
	msg.Source = source
	if err := msg.Sign(ed25519Signer{priv: priv}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// A forwarder decrements TTL in place without re-signing.
	msg.DecrementTTL()

	verifier := ed25519Verifier{keys: map[NodeId]ed25519.PublicKey{source: pub}}
	if err := msg.VerifySignature(verifier); err != nil {
		t.Fatalf("expected signature to survive TTL mutation, got: %v", err)
	}
}

func TestMessage_SignatureDetectsPayloadTamper(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var source NodeId
	copy(source[:], pub)

	msg := sampleMessage()
	msg.Source = source
	if err := msg.Sign(ed25519Signer{priv: priv}); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	msg.Payload = []byte("tampered")

	verifier := ed25519Verifier{keys: map[NodeId]ed25519.PublicKey{source: pub}}
	if err := msg.VerifySignature(verifier); err == nil {
		t.Fatal("expected verification failure after payload tamper")
	}
}

func TestMessage_Validate_TTLExhausted(t *testing.T) {
	msg := sampleMessage()
	msg.TTL = 0

	err := msg.Validate(time.Now(), ValidationPolicy{})
	if err == nil {
		t.Fatal("expected error for exhausted TTL")
	}
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeTTLExceeded {
		t.Fatalf("expected TtlExceeded, got %v", err)
	}
}

func TestMessage_Validate_PayloadTooLarge(t *testing.T) {
	msg := sampleMessage()
	msg.Payload = make([]byte, 2*1024*1024)

	err := msg.Validate(time.Now(), ValidationPolicy{})
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeMessageTooLarge {
		t.Fatalf("expected MessageTooLarge, got %v", err)
	}
}

func TestMessage_Validate_ClockSkew(t *testing.T) {
	msg := sampleMessage()
	msg.Timestamp = time.Now().Add(-1 * time.Hour).Unix()

	err := msg.Validate(time.Now(), ValidationPolicy{MaxClockSkew: time.Minute})
	wireErr, ok := AsError(err)
	if !ok || wireErr.Code != CodeInvalidTimestamp {
		t.Fatalf("expected InvalidTimestamp, got %v", err)
	}
}

func TestMessage_Validate_RequiresSignatureWhenPolicyDemands(t *testing.T) {
	msg := sampleMessage()
	err := msg.Validate(time.Now(), ValidationPolicy{RequireSignatures: true})
	if err == nil {
		t.Fatal("expected error when signature required but verifier missing")
	}
}

func TestMessage_DecrementTTL(t *testing.T) {
	msg := sampleMessage()
	msg.TTL = 1
	if alive := msg.DecrementTTL(); alive {
		t.Fatal("expected message to be dead after decrementing last hop")
	}
	if msg.TTL != 0 {
		t.Fatalf("expected TTL 0, got %d", msg.TTL)
	}
	if alive := msg.DecrementTTL(); alive {
		t.Fatal("expected decrementing an already-dead message to stay dead")
	}
}
