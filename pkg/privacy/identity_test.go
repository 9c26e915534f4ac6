package privacy

import "testing"

func TestGenerate_ClearnetAndOverlayKeysDiffer(t *testing.T) {
	d, err := Generate("overlay-dest-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if ed25519Equal(d.ClearnetPublic, d.OverlayPublic) {
		t.Fatal("expected distinct clearnet and overlay public keys")
	}
	if err := d.VerifySeparateIdentities(); err != nil {
		t.Fatalf("VerifySeparateIdentities: %v", err)
	}
}

func TestDualIdentity_NodeIDsDeriveFromDistinctKeys(t *testing.T) {
	d, err := Generate("overlay-dest-2")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if d.ClearnetNodeID() == d.OverlayNodeID() {
		t.Fatal("expected clearnet and overlay NodeIds to differ")
	}
}

func TestVerifySeparateIdentities_FailsWhenKeysMatch(t *testing.T) {
	d, err := Generate("overlay-dest-3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	d.OverlayPublic = d.ClearnetPublic
	if err := d.VerifySeparateIdentities(); err == nil {
		t.Fatal("expected VerifySeparateIdentities to fail when keys are equal")
	}
}
