package privacy

import (
	"testing"
	"time"
)

func tokenFor(issuer *DualIdentity, grantee [32]byte, issuedAt time.Time, validity time.Duration) *CapabilityToken {
	token, err := issuer.GrantAccess(grantee, validity, issuedAt)
	if err != nil {
		panic(err)
	}
	return token
}

func TestTokenStorage_GetReturnsStoredToken(t *testing.T) {
	issuer, _ := Generate("alice-dest")
	grantee := nodeIDWithByte(0x01)
	issuedAt := time.Unix(1_700_000_000, 0)
	token := tokenFor(issuer, grantee, issuedAt, 30*24*time.Hour)

	s := NewTokenStorage()
	s.Insert(token)

	got, ok := s.Get(issuer.ClearnetNodeID(), issuedAt)
	if !ok {
		t.Fatal("expected token to be found")
	}
	if got.OverlayDestination != issuer.OverlayDestination {
		t.Fatalf("overlay destination = %q, want %q", got.OverlayDestination, issuer.OverlayDestination)
	}
}

func TestTokenStorage_LatestIssuedWins(t *testing.T) {
	issuer, _ := Generate("bob-dest")
	grantee := nodeIDWithByte(0x02)
	older := time.Unix(1_700_000_000, 0)
	newer := older.Add(time.Hour)

	olderToken := tokenFor(issuer, grantee, older, 48*time.Hour)
	newerToken := tokenFor(issuer, grantee, newer, 48*time.Hour)

	s := NewTokenStorage()
	s.Insert(olderToken)
	s.Insert(newerToken)
	// Inserting the stale token again after the newer one must be a no-op.
	s.Insert(olderToken)

	got, ok := s.Get(issuer.ClearnetNodeID(), newer)
	if !ok {
		t.Fatal("expected a token to be stored")
	}
	if got.IssuedAt != newerToken.IssuedAt {
		t.Fatalf("expected the newer token to win, got issued_at %d want %d", got.IssuedAt, newerToken.IssuedAt)
	}
}

func TestTokenStorage_ExpiredTokenLazilyEvicted(t *testing.T) {
	issuer, _ := Generate("carol-dest")
	grantee := nodeIDWithByte(0x03)
	issuedAt := time.Unix(1_700_000_000, 0)
	token := tokenFor(issuer, grantee, issuedAt, time.Hour)

	s := NewTokenStorage()
	s.Insert(token)

	afterExpiry := issuedAt.Add(2 * time.Hour)
	if _, ok := s.Get(issuer.ClearnetNodeID(), afterExpiry); ok {
		t.Fatal("expected expired token to be evicted on access")
	}
	if s.Len() != 0 {
		t.Fatalf("expected storage to be empty after lazy eviction, got %d", s.Len())
	}
}
