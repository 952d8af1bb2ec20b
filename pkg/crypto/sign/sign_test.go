package sign

import (
    "crypto/ed25519"
    "crypto/rand"
    "testing"
)

func TestSignVerifyRoundtrip(t *testing.T) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    data := []byte("comet self-attestation")
    sig := Sign(priv, data)
    if !Verify(pub, data, sig) {
        t.Fatalf("verify failed on a freshly produced signature")
    }
}

func TestVerifyRejectsTamperedData(t *testing.T) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    sig := Sign(priv, []byte("original"))
    if Verify(pub, []byte("tampered"), sig) {
        t.Fatalf("verify should fail when the signed data changes")
    }
}

func TestVerifyRejectsWrongKey(t *testing.T) {
    pub1, _, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    _, priv2, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    sig := Sign(priv2, []byte("data"))
    if Verify(pub1, []byte("data"), sig) {
        t.Fatalf("verify should fail against an unrelated public key")
    }
}
