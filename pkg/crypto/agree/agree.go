// Package agree derives the AES-SIV symmetric key Ames packets are shut
// with from each side's static X25519 keypair, the same non-interactive
// ECDH shape every shut packet's AAD assumes (§4.1: the key is purely a
// function of our private key and her public key at her life).
package agree

import (
	"crypto/ecdh"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const symmetricKeyLabel = "ames-symmetric-key-v1"

// GenerateKeypair mints a fresh X25519 static keypair.
func GenerateKeypair() (priv *ecdh.PrivateKey, pub []byte, err error) {
	k, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return k, k.PublicKey().Bytes(), nil
}

// SymmetricKey recomputes the AES-SIV key shared with a peer from our
// private key and her public key at her current life. The peer state
// machine calls this on promotion and rekey and keeps the result in the
// peer's SymmetricKey field, which snapshots persist.
func SymmetricKey(priv *ecdh.PrivateKey, herPub []byte) ([]byte, error) {
	pub, err := ecdh.X25519().NewPublicKey(herPub)
	if err != nil {
		return nil, fmt.Errorf("agree: bad peer public key: %w", err)
	}
	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, fmt.Errorf("agree: ecdh: %w", err)
	}
	return kdf(symmetricKeyLabel, shared), nil
}

// kdf is a domain-separated SHA3-256 key derivation, the same
// label-then-concatenate-then-hash shape used throughout the examples.
func kdf(label string, parts ...[]byte) []byte {
	h := sha3.New256()
	h.Write([]byte(label))
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// ParsePrivateKey wraps raw X25519 scalar bytes (as read from the
// node's agree.key file) back into a usable private key.
func ParsePrivateKey(raw []byte) (*ecdh.PrivateKey, error) {
	return ecdh.X25519().NewPrivateKey(raw)
}
