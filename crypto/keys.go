package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"rfqsettle/core/types"
)

// --- Key Management ---

// PrivateKey is an Ed25519 signing key. Liquidity attestations and the
// companion verification instructions are produced with it.
type PrivateKey struct {
	ed25519.PrivateKey
}

// PublicKey is the Ed25519 verification key.
type PublicKey struct {
	ed25519.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return append([]byte(nil), k.PrivateKey...)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{k.PrivateKey.Public().(ed25519.PublicKey)}
}

// Sign returns the 64-byte Ed25519 signature over msg.
func (k *PrivateKey) Sign(msg []byte) [ed25519.SignatureSize]byte {
	var sig [ed25519.SignatureSize]byte
	copy(sig[:], ed25519.Sign(k.PrivateKey, msg))
	return sig
}

// Address returns the identity carried by the public key.
func (k *PublicKey) Address() types.Address {
	return types.BytesToAddress(k.PublicKey)
}

// PrivateKeyFromSeed rebuilds a key from its 32-byte seed.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: seed must be %d bytes", ed25519.SeedSize)
	}
	return &PrivateKey{ed25519.NewKeyFromSeed(seed)}, nil
}

// Ed25519Verifier checks raw Ed25519 signatures. It is the signature
// verification service used by the settlement engine.
type Ed25519Verifier struct{}

// Verify reports whether sig is a valid signature of msg by pubKey.
func (Ed25519Verifier) Verify(pubKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}
