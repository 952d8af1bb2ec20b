// Package sign wraps ed25519 signing for comet self-attestation.
package sign

import (
	"crypto/ed25519"
)

// Sign signs data using ed25519.
func Sign(priv ed25519.PrivateKey, data []byte) []byte {
	return ed25519.Sign(priv, data)
}

// Verify checks an ed25519 signature.
func Verify(pub ed25519.PublicKey, data, sig []byte) bool {
	return ed25519.Verify(pub, data, sig)
}
