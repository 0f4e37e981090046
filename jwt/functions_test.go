package jwt

import (
	"strconv"
	"testing"
	"time"

	scaffold "github.com/metanet-platform/scaffold-app"
)

func serverIdentity(t *testing.T) (scaffold.Identity, string) {
	t.Helper()
	seed := make([]byte, scaffold.SeedSize)
	seed[0] = 0x42
	id, err := scaffold.DeriveIdentity(seed)
	if err != nil {
		t.Fatalf("derive failed: %v", err)
	}
	addr, err := scaffold.PrivKeyToAddr(id.PrivateKey, scaffold.ServerAddrPrefix)
	if err != nil {
		t.Fatalf("addr derivation failed: %v", err)
	}
	return id, addr
}

func TestCreateValidateRoundTrip(t *testing.T) {
	id, serverAddr := serverIdentity(t)

	claims := Claims{
		Issuer:         serverAddr,
		Subject:        "scaffold-session",
		Audience:       "example.com",
		ExpirationTime: strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10),
		IssuedAt:       strconv.FormatInt(time.Now().Unix(), 10),
		Principal:      "pk1",
	}

	token, err := Create(claims, id.PrivateKey)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	header, got, err := Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if header.Algorithm != "SCAFFOLD" {
		t.Fatalf("unexpected algorithm %s", header.Algorithm)
	}
	if got.Principal != "pk1" || got.Issuer != serverAddr {
		t.Fatalf("claims did not round trip: %+v", got)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	id, serverAddr := serverIdentity(t)

	claims := Claims{
		Issuer:         serverAddr,
		ExpirationTime: strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10),
	}
	token, err := Create(claims, id.PrivateKey)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected expiry rejection")
	}
}

func TestValidateRejectsForgedIssuer(t *testing.T) {
	id, _ := serverIdentity(t)

	otherSeed := make([]byte, scaffold.SeedSize)
	otherSeed[0] = 0x43
	other, _ := scaffold.DeriveIdentity(otherSeed)
	otherAddr, _ := scaffold.PrivKeyToAddr(other.PrivateKey, scaffold.ServerAddrPrefix)

	// signed with one key, issuer claims another
	claims := Claims{Issuer: otherAddr}
	token, err := Create(claims, id.PrivateKey)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, _, err := Validate(token); err == nil {
		t.Fatalf("expected signature rejection for forged issuer")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if _, _, err := Validate("not-a-token"); err == nil {
		t.Fatalf("expected format rejection")
	}
}
