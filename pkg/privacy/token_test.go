package privacy

import (
	"testing"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

func nodeIDWithByte(b byte) wire.NodeId {
	var id wire.NodeId
	id[0] = b
	return id
}

func TestGrantAccess_TokenVerifiesUnderIssuerKey(t *testing.T) {
	issuer, err := Generate("alice-overlay-dest")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	grantee := nodeIDWithByte(0x0b)
	issuedAt := time.Unix(1_700_000_000, 0)

	token, err := issuer.GrantAccess(grantee, 30*24*time.Hour, issuedAt)
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	if token.OverlayDestination != issuer.OverlayDestination {
		t.Fatalf("token overlay destination = %q, want %q", token.OverlayDestination, issuer.OverlayDestination)
	}

	now := issuedAt.Add(time.Hour)
	if err := Verify(token, issuer.ClearnetPublic, grantee, now); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerify_FailsOnExpiredToken(t *testing.T) {
	issuer, _ := Generate("bob-overlay-dest")
	grantee := nodeIDWithByte(0x0c)
	issuedAt := time.Unix(1_700_000_000, 0)

	token, err := issuer.GrantAccess(grantee, time.Hour, issuedAt)
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	afterExpiry := issuedAt.Add(2 * time.Hour)
	if err := Verify(token, issuer.ClearnetPublic, grantee, afterExpiry); err == nil {
		t.Fatal("expected Verify to fail on an expired token")
	}
}

func TestVerify_FailsOnGranteeMismatch(t *testing.T) {
	issuer, _ := Generate("carol-overlay-dest")
	grantee := nodeIDWithByte(0x0d)
	other := nodeIDWithByte(0x0e)
	issuedAt := time.Unix(1_700_000_000, 0)

	token, err := issuer.GrantAccess(grantee, time.Hour, issuedAt)
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}

	if err := Verify(token, issuer.ClearnetPublic, other, issuedAt); err == nil {
		t.Fatal("expected Verify to fail for a grantee mismatch")
	}
}

func TestVerify_FailsOnMutatedField(t *testing.T) {
	issuer, _ := Generate("dave-overlay-dest")
	grantee := nodeIDWithByte(0x0f)
	issuedAt := time.Unix(1_700_000_000, 0)

	token, err := issuer.GrantAccess(grantee, time.Hour, issuedAt)
	if err != nil {
		t.Fatalf("GrantAccess: %v", err)
	}
	token.OverlayDestination = "tampered"

	if err := Verify(token, issuer.ClearnetPublic, grantee, issuedAt); err == nil {
		t.Fatal("expected Verify to fail once a signed field is mutated")
	}
}
