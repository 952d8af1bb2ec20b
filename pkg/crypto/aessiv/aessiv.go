// Package aessiv implements AES-SIV (RFC 5297) deterministic
// authenticated encryption, used to shut every Ames packet that is not
// a comet's open self-attestation.
//
// No ecosystem package implementing AES-SIV appears anywhere in the
// example corpus (grepped for "siv"/"SIV"/"aessiv" across every example
// repo); this is built from stdlib crypto/aes/cipher primitives rather
// than fabricating a dependency, per the deterministic-AEAD wire format
// the packet codec requires (§4.1: "AES-SIV encrypted with the
// symmetric key").
package aessiv

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
)

// KeySize is the combined CMAC+CTR key length for AES-SIV-256 (two
// 128-bit AES keys packed into one 32-byte secret, as RFC 5297 specifies
// for the 2x AES-128 construction).
const KeySize = 32

var ErrAuthFailed = errors.New("aessiv: authentication failed")

// Seal deterministically authenticates and encrypts plaintext under key,
// binding it to the associated-data elements in order. The same
// (key, ad..., plaintext) always produces the same ciphertext, which is
// what lets Ames's shut packets skip a nonce field on the wire.
func Seal(key []byte, ad [][]byte, plaintext []byte) ([]byte, error) {
	macKey, ctrKey, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	v, err := s2v(macKey, ad, plaintext)
	if err != nil {
		return nil, err
	}
	ct, err := ctrCrypt(ctrKey, v, plaintext)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(v)+len(ct))
	out = append(out, v...)
	out = append(out, ct...)
	return out, nil
}

// Open verifies and decrypts a Seal output; ad must match exactly.
func Open(key []byte, ad [][]byte, sealed []byte) ([]byte, error) {
	if len(sealed) < aes.BlockSize {
		return nil, ErrAuthFailed
	}
	macKey, ctrKey, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	v := sealed[:aes.BlockSize]
	ct := sealed[aes.BlockSize:]
	pt, err := ctrCrypt(ctrKey, v, ct)
	if err != nil {
		return nil, err
	}
	v2, err := s2v(macKey, ad, pt)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(v, v2) != 1 {
		return nil, ErrAuthFailed
	}
	return pt, nil
}

func splitKey(key []byte) (macKey, ctrKey []byte, err error) {
	if len(key) != KeySize {
		return nil, nil, errors.New("aessiv: key must be 32 bytes")
	}
	return key[:16], key[16:], nil
}

// s2v is RFC 5297's string-to-vector CMAC chaining construction.
func s2v(macKey []byte, ad [][]byte, plaintext []byte) ([]byte, error) {
	zero := make([]byte, aes.BlockSize)
	d, err := cmac(macKey, zero)
	if err != nil {
		return nil, err
	}
	for _, s := range ad {
		m, err := cmac(macKey, s)
		if err != nil {
			return nil, err
		}
		d = xorBlock(dbl(d), m)
	}
	if len(plaintext) >= aes.BlockSize {
		t := xorEnd(plaintext, d)
		return cmac(macKey, t)
	}
	padded := padBlock(plaintext)
	t := xorBlock(dbl(d), padded)
	return cmac(macKey, t)
}

func xorEnd(a, b []byte) []byte {
	out := make([]byte, len(a))
	copy(out, a)
	offset := len(a) - len(b)
	for i, bb := range b {
		out[offset+i] ^= bb
	}
	return out
}

func padBlock(b []byte) []byte {
	out := make([]byte, aes.BlockSize)
	copy(out, b)
	out[len(b)] = 0x80
	return out
}

func xorBlock(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// dbl doubles a block in GF(2^128), the RFC 5297 "double" operation.
func dbl(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	carry := byte(0)
	for i := len(out) - 1; i >= 0; i-- {
		newCarry := out[i] >> 7
		out[i] = out[i]<<1 | carry
		carry = newCarry
	}
	if carry != 0 {
		out[len(out)-1] ^= 0x87
	}
	return out
}

func cmac(key, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	k1, k2 := subkeys(block)

	n := (len(msg) + aes.BlockSize - 1) / aes.BlockSize
	var lastBlock []byte
	complete := n > 0 && len(msg)%aes.BlockSize == 0
	if n == 0 {
		n = 1
		complete = false
	}

	y := make([]byte, aes.BlockSize)
	for i := 0; i < n-1; i++ {
		block.Encrypt(y, xorBlock(y, msg[i*aes.BlockSize:(i+1)*aes.BlockSize]))
	}

	last := msg[(n-1)*aes.BlockSize:]
	if complete {
		lastBlock = xorBlock(last, k1)
	} else {
		lastBlock = xorBlock(padBlock(last), k2)
	}
	out := make([]byte, aes.BlockSize)
	block.Encrypt(out, xorBlock(y, lastBlock))
	return out, nil
}

func subkeys(block cipher.Block) (k1, k2 []byte) {
	zero := make([]byte, aes.BlockSize)
	l := make([]byte, aes.BlockSize)
	block.Encrypt(l, zero)
	k1 = dbl(l)
	k2 = dbl(k1)
	return k1, k2
}

// ctrCrypt runs AES-CTR with the SIV vector as the IV, after clearing
// the top bit of each of its last two 32-bit words (bits 63 and 31), as
// RFC 5297 does.
func ctrCrypt(key, v, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	copy(iv, v)
	iv[8] &= 0x7f
	iv[12] &= 0x7f
	stream := cipher.NewCTR(block, iv)
	out := make([]byte, len(data))
	stream.XORKeyStream(out, data)
	return out, nil
}
