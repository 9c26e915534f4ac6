package privacy

import (
	"bytes"
	"testing"
	"time"
)

func TestOfferAndAcceptCapability_RoundTrip(t *testing.T) {
	issuer, err := Generate("issuer-overlay-dest")
	if err != nil {
		t.Fatalf("Generate issuer: %v", err)
	}
	recipient, err := Generate("recipient-overlay-dest")
	if err != nil {
		t.Fatalf("Generate recipient: %v", err)
	}

	token, err := issuer.GrantAccess(recipient.ClearnetNodeID(), time.Hour, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	initiatorSession, msg1, err := OfferCapability(issuer, recipient.OverlayDHPublic, token)
	if err != nil {
		t.Fatalf("OfferCapability: %v", err)
	}
	if initiatorSession.IsComplete() {
		t.Fatal("initiator session should not be complete after only one message")
	}

	responderSession, gotToken, msg2, err := AcceptCapability(recipient, msg1)
	if err != nil {
		t.Fatalf("AcceptCapability: %v", err)
	}
	if gotToken.OverlayDestination != issuer.OverlayDestination {
		t.Fatalf("recovered token overlay destination = %q, want %q", gotToken.OverlayDestination, issuer.OverlayDestination)
	}
	if gotToken.GranteeClearnetNodeID != recipient.ClearnetNodeID() {
		t.Fatalf("recovered token grantee = %x, want %x", gotToken.GranteeClearnetNodeID, recipient.ClearnetNodeID())
	}

	if _, err := initiatorSession.ReadHandshakeMessage(msg2); err != nil {
		t.Fatalf("initiator ReadHandshakeMessage: %v", err)
	}
	if !initiatorSession.IsComplete() {
		t.Fatal("initiator session should be complete after the reply")
	}
	if !responderSession.IsComplete() {
		t.Fatal("responder session should be complete after sending the reply")
	}

	plaintext := []byte("overlay transport data")
	ciphertext, err := initiatorSession.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	decrypted, err := responderSession.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("decrypted = %q, want %q", decrypted, plaintext)
	}
}

func TestAcceptCapability_FailsOnWrongResponderKey(t *testing.T) {
	issuer, err := Generate("issuer-overlay-dest")
	if err != nil {
		t.Fatalf("Generate issuer: %v", err)
	}
	intendedRecipient, err := Generate("intended-recipient")
	if err != nil {
		t.Fatalf("Generate intendedRecipient: %v", err)
	}
	wrongRecipient, err := Generate("wrong-recipient")
	if err != nil {
		t.Fatalf("Generate wrongRecipient: %v", err)
	}

	token, err := issuer.GrantAccess(intendedRecipient.ClearnetNodeID(), time.Hour, time.Unix(1_700_000_000, 0))
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	_, msg1, err := OfferCapability(issuer, intendedRecipient.OverlayDHPublic, token)
	if err != nil {
		t.Fatalf("OfferCapability: %v", err)
	}

	if _, _, _, err := AcceptCapability(wrongRecipient, msg1); err == nil {
		t.Fatal("expected AcceptCapability to fail when the responder's static key does not match")
	}
}

func TestEncrypt_FailsBeforeHandshakeComplete(t *testing.T) {
	local, err := Generate("local-overlay-dest")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	peer, err := Generate("peer-overlay-dest")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	session, err := NewInitiatorSession(local, peer.OverlayDHPublic)
	if err != nil {
		t.Fatalf("NewInitiatorSession: %v", err)
	}
	if _, err := session.Encrypt([]byte("too early")); err == nil {
		t.Fatal("expected Encrypt to fail before the handshake completes")
	}
}
