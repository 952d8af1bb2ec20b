package aessiv

import (
    "bytes"
    "crypto/rand"
    "testing"
)

func randomKey(t *testing.T) []byte {
    k := make([]byte, KeySize)
    if _, err := rand.Read(k); err != nil { t.Fatalf("random key: %v", err) }
    return k
}

func TestSealOpenRoundtrip(t *testing.T) {
    key := randomKey(t)
    ad := [][]byte{[]byte("header-a"), []byte("header-b")}
    plaintext := []byte("this is a shut packet payload")

    ct, err := Seal(key, ad, plaintext)
    if err != nil { t.Fatalf("seal: %v", err) }
    pt, err := Open(key, ad, ct)
    if err != nil { t.Fatalf("open: %v", err) }
    if !bytes.Equal(pt, plaintext) {
        t.Fatalf("opened plaintext mismatch: %q vs %q", pt, plaintext)
    }
}

func TestSealIsDeterministic(t *testing.T) {
    key := randomKey(t)
    ad := [][]byte{[]byte("fixed-ad")}
    plaintext := []byte("same input, same output")

    a, err := Seal(key, ad, plaintext)
    if err != nil { t.Fatalf("seal: %v", err) }
    b, err := Seal(key, ad, plaintext)
    if err != nil { t.Fatalf("seal: %v", err) }
    if !bytes.Equal(a, b) {
        t.Fatalf("AES-SIV must be deterministic, got different ciphertexts")
    }
}

func TestOpenRejectsWrongAD(t *testing.T) {
    key := randomKey(t)
    ct, err := Seal(key, [][]byte{[]byte("ad1")}, []byte("secret"))
    if err != nil { t.Fatalf("seal: %v", err) }
    if _, err := Open(key, [][]byte{[]byte("ad2")}, ct); err != ErrAuthFailed {
        t.Fatalf("open with mismatched AD should fail authentication, got %v", err)
    }
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
    key := randomKey(t)
    ad := [][]byte{[]byte("ad")}
    ct, err := Seal(key, ad, []byte("secret message"))
    if err != nil { t.Fatalf("seal: %v", err) }
    tampered := append([]byte{}, ct...)
    tampered[len(tampered)-1] ^= 0xff
    if _, err := Open(key, ad, tampered); err != ErrAuthFailed {
        t.Fatalf("open with tampered ciphertext should fail authentication, got %v", err)
    }
}

func TestSealEmptyPlaintext(t *testing.T) {
    key := randomKey(t)
    ad := [][]byte{[]byte("ad")}
    ct, err := Seal(key, ad, nil)
    if err != nil { t.Fatalf("seal empty plaintext: %v", err) }
    pt, err := Open(key, ad, ct)
    if err != nil { t.Fatalf("open empty plaintext: %v", err) }
    if len(pt) != 0 {
        t.Fatalf("expected empty plaintext, got %d bytes", len(pt))
    }
}

func TestSealRejectsBadKeySize(t *testing.T) {
    if _, err := Seal(make([]byte, 16), nil, []byte("x")); err == nil {
        t.Fatalf("expected an error for a short key")
    }
}
