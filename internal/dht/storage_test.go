package dht

import (
	"testing"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

func TestStorage_PutAndGet(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)

	key := idWithByte(1)
	if err := store.Put(key, []byte("value"), []byte("sig"), idWithByte(9), nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value, ok := store.Get(key)
	if !ok || string(value) != "value" {
		t.Fatalf("expected to retrieve stored value, got %q ok=%v", value, ok)
	}
}

func TestStorage_ValueTooLarge(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)

	big := make([]byte, constants.MaxValueSize+1)
	err := store.Put(idWithByte(1), big, nil, idWithByte(9), nil, time.Now().Add(time.Hour))
	wireErr, ok := wire.AsError(err)
	if !ok || wireErr.Code != wire.CodeValueTooLarge {
		t.Fatalf("expected ValueTooLarge, got %v", err)
	}
}

func TestStorage_TooManyKeys(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)
	store.maxKeys = 2

	if err := store.Put(idWithByte(1), []byte("a"), nil, idWithByte(9), nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Put 1: %v", err)
	}
	if err := store.Put(idWithByte(2), []byte("b"), nil, idWithByte(9), nil, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	err := store.Put(idWithByte(3), []byte("c"), nil, idWithByte(9), nil, time.Now().Add(time.Hour))
	wireErr, ok := wire.AsError(err)
	if !ok || wireErr.Code != wire.CodeTooManyKeys {
		t.Fatalf("expected TooManyKeys, got %v", err)
	}
}

func TestStorage_SweepExpired(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)

	if err := store.Put(idWithByte(1), []byte("a"), nil, idWithByte(9), nil, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if removed := store.SweepExpired(); removed != 1 {
		t.Fatalf("expected 1 expired record removed, got %d", removed)
	}
	if _, ok := store.Get(idWithByte(1)); ok {
		t.Fatal("expected expired record to be gone")
	}
}

func TestStorage_SignatureRejected(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)

	verifier := rejectingVerifier{}
	err := store.Put(idWithByte(1), []byte("a"), []byte("bad-sig"), idWithByte(9), verifier, time.Now().Add(time.Hour))
	if err == nil {
		t.Fatal("expected signature verification failure")
	}
}

func TestStorage_SignatureAcceptedWhenPayloadMatches(t *testing.T) {
	local := idWithByte(0)
	rt := NewRoutingTable(local)
	store := NewStorage(local, rt)

	key := idWithByte(1)
	value := []byte("a")
	expiresAt := time.Now().Add(time.Hour)
	signingPayload, err := StoreSigningBytes(key, value, expiresAt)
	if err != nil {
		t.Fatalf("StoreSigningBytes: %v", err)
	}
	publisher := idWithByte(9)
	verifier := matchingVerifier{wantPayload: signingPayload, wantSource: publisher}

	if err := store.Put(key, value, []byte("sig"), publisher, verifier, expiresAt); err != nil {
		t.Fatalf("expected matching key||value||expires_at payload to verify, got %v", err)
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(source wire.NodeId, data, signature []byte) error {
	return wire.NewCryptoError(wire.CodeInvalidSignature, "always rejects")
}

type matchingVerifier struct {
	wantPayload []byte
	wantSource  wire.NodeId
}

func (v matchingVerifier) Verify(source wire.NodeId, data, signature []byte) error {
	if source != v.wantSource {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "unexpected source")
	}
	if string(data) != string(v.wantPayload) {
		return wire.NewCryptoError(wire.CodeInvalidSignature, "payload mismatch")
	}
	return nil
}
