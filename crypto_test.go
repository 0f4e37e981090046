package scaffold

import (
	"bytes"
	"testing"
)

func testSeed(fill byte) []byte {
	seed := make([]byte, SeedSize)
	for i := range seed {
		seed[i] = fill
	}
	return seed
}

func TestDeriveIdentityDeterministic(t *testing.T) {
	a, err := DeriveIdentity(testSeed(7))
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	b, err := DeriveIdentity(testSeed(7))
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	if a.PrivateKey != b.PrivateKey || a.PublicKey != b.PublicKey || a.Address != b.Address {
		t.Fatalf("expected identical identity for identical seed")
	}

	c, err := DeriveIdentity(testSeed(8))
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if c.PublicKey == a.PublicKey {
		t.Fatalf("expected distinct keys for distinct seeds")
	}
}

func TestDeriveIdentitySeedLength(t *testing.T) {
	if _, err := DeriveIdentity(make([]byte, 16)); err == nil {
		t.Fatalf("expected error for short seed")
	}
	if _, err := DeriveIdentity(make([]byte, 64)); err == nil {
		t.Fatalf("expected error for long seed")
	}
}

func TestDeriveIdentityAddressShape(t *testing.T) {
	id, err := DeriveIdentity(testSeed(1))
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	if !IsUserAddr(id.Address) {
		t.Fatalf("expected user address, got %s", id.Address)
	}
	if IsServerAddr(id.Address) {
		t.Fatalf("user address must not parse as server address")
	}
}

func TestSignAndVerifyByPublicKey(t *testing.T) {
	id, err := DeriveIdentity(testSeed(2))
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}

	message := []byte(`{"hello":"world"}`)
	sig, err := SignBytes(message, id.PrivateKey)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := VerifySignature(message, sig, id.PublicKey); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if err := VerifySignature(message, sig, id.Address); err != nil {
		t.Fatalf("verify by address failed: %v", err)
	}
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	id, _ := DeriveIdentity(testSeed(3))

	message := []byte(`{"amount":100}`)
	sig, err := SignBytes(message, id.PrivateKey)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	tampered := bytes.Replace(message, []byte("100"), []byte("900"), 1)
	if err := VerifySignature(tampered, sig, id.PublicKey); err == nil {
		t.Fatalf("expected verification failure for tampered message")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	alice, _ := DeriveIdentity(testSeed(4))
	bob, _ := DeriveIdentity(testSeed(5))

	message := []byte("payload")
	sig, err := SignBytes(message, alice.PrivateKey)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := VerifySignature(message, sig, bob.PublicKey); err == nil {
		t.Fatalf("expected verification failure against wrong key")
	}
}

func TestPrivKeyToAddrMatchesDerived(t *testing.T) {
	id, _ := DeriveIdentity(testSeed(6))

	addr, err := PrivKeyToAddr(id.PrivateKey, UserAddrPrefix)
	if err != nil {
		t.Fatalf("PrivKeyToAddr failed: %v", err)
	}
	if addr != id.Address {
		t.Fatalf("expected %s got %s", id.Address, addr)
	}
}
