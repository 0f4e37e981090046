package scaffold

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/hkdf"
)

const (
	// SeedSize is the exact length of a platform-issued identity seed.
	SeedSize = 32

	// UserAddrPrefix and ServerAddrPrefix are the bech32 prefixes for
	// derived identity addresses.
	UserAddrPrefix   = "mnk"
	ServerAddrPrefix = "mns"
)

var deriveInfo = []byte("scaffold-signing-key-v1")

// Identity is a signing keypair derived from a platform-issued seed.
// PrivateKey must never leave the client that derived it.
type Identity struct {
	PrivateKey string `json:"-"`
	PublicKey  string `json:"publicKey"`
	Address    string `json:"address"`
}

// DeriveIdentity deterministically derives a secp256k1 keypair from a
// 32-byte seed. The same seed always yields the same keypair.
func DeriveIdentity(seed []byte) (Identity, error) {
	if len(seed) != SeedSize {
		return Identity{}, fmt.Errorf("invalid seed length: expected %d, got %d", SeedSize, len(seed))
	}

	// HKDF output is read until it lands on a valid private scalar.
	// ToECDSA rejects zero and values outside the group order, so the
	// loop is deterministic per seed and terminates almost immediately.
	reader := hkdf.New(sha256.New, seed, nil, deriveInfo)
	for i := 0; i < 128; i++ {
		candidate := make([]byte, 32)
		if _, err := io.ReadFull(reader, candidate); err != nil {
			return Identity{}, err
		}
		priv, err := crypto.ToECDSA(candidate)
		if err != nil {
			continue
		}
		return identityFromKey(priv)
	}
	return Identity{}, fmt.Errorf("seed does not map to a usable key")
}

func identityFromKey(priv *ecdsa.PrivateKey) (Identity, error) {
	pubHex := hex.EncodeToString(crypto.CompressPubkey(&priv.PublicKey))
	addr, err := PubKeyToAddr(pubHex, UserAddrPrefix)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		PrivateKey: hex.EncodeToString(crypto.FromECDSA(priv)),
		PublicKey:  pubHex,
		Address:    addr,
	}, nil
}

// PubKeyToAddr converts a compressed public key in hex to a bech32
// identity address with the given prefix.
func PubKeyToAddr(pubHex string, prefix string) (string, error) {
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return "", fmt.Errorf("invalid public key encoding")
	}
	pub, err := crypto.DecompressPubkey(pubBytes)
	if err != nil {
		return "", err
	}
	addr := crypto.PubkeyToAddress(*pub)
	return bech32.ConvertAndEncode(prefix, addr.Bytes())
}

// PrivKeyToAddr derives the identity address of a private key in hex.
func PrivKeyToAddr(privHex string, prefix string) (string, error) {
	priv, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return "", err
	}
	return PubKeyToAddr(hex.EncodeToString(crypto.CompressPubkey(&priv.PublicKey)), prefix)
}

// SignBytes signs a message with the private key in hex. The returned
// signature is the 65-byte recoverable form over keccak256(message).
func SignBytes(message []byte, privHex string) ([]byte, error) {
	priv, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return nil, err
	}
	hash := crypto.Keccak256(message)
	return crypto.Sign(hash, priv)
}

// VerifySignature checks a recoverable signature against a key ID, which
// is either a compressed public key in hex or a bech32 identity address.
func VerifySignature(message []byte, signature []byte, keyID string) error {
	if len(signature) != 65 {
		return fmt.Errorf("invalid signature length")
	}
	hash := crypto.Keccak256(message)
	recovered, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return err
	}

	if IsUserAddr(keyID) || IsServerAddr(keyID) {
		hrp, _, err := bech32.DecodeAndConvert(keyID)
		if err != nil {
			return fmt.Errorf("invalid identity address")
		}
		got, err := bech32.ConvertAndEncode(hrp, crypto.PubkeyToAddress(*recovered).Bytes())
		if err != nil {
			return err
		}
		if got != keyID {
			return fmt.Errorf("signature does not match key")
		}
		return nil
	}

	if hex.EncodeToString(crypto.CompressPubkey(recovered)) != strings.ToLower(keyID) {
		return fmt.Errorf("signature does not match key")
	}
	return nil
}

func hasChar(s string, c byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return true
		}
	}
	return false
}

// IsUserAddr reports whether keyID is a user identity address.
func IsUserAddr(keyID string) bool {
	return len(keyID) == 42 && keyID[:3] == UserAddrPrefix && !hasChar(keyID, '.')
}

// IsServerAddr reports whether keyID is a server identity address.
func IsServerAddr(keyID string) bool {
	return len(keyID) == 42 && keyID[:3] == ServerAddrPrefix && !hasChar(keyID, '.')
}
