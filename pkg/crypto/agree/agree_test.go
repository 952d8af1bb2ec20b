package agree

import (
    "bytes"
    "testing"
)

func TestSymmetricKeyAgreesBothWays(t *testing.T) {
    privA, pubA, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair A: %v", err) }
    privB, pubB, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair B: %v", err) }

    keyAB, err := SymmetricKey(privA, pubB)
    if err != nil { t.Fatalf("symmetric key A->B: %v", err) }
    keyBA, err := SymmetricKey(privB, pubA)
    if err != nil { t.Fatalf("symmetric key B->A: %v", err) }

    if !bytes.Equal(keyAB, keyBA) {
        t.Fatalf("agreed keys differ: %x vs %x", keyAB, keyBA)
    }
}

func TestSymmetricKeyDiffersPerPeer(t *testing.T) {
    privA, _, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair A: %v", err) }
    _, pubB, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair B: %v", err) }
    _, pubC, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair C: %v", err) }

    keyAB, err := SymmetricKey(privA, pubB)
    if err != nil { t.Fatalf("symmetric key A->B: %v", err) }
    keyAC, err := SymmetricKey(privA, pubC)
    if err != nil { t.Fatalf("symmetric key A->C: %v", err) }

    if bytes.Equal(keyAB, keyAC) {
        t.Fatalf("symmetric keys for distinct peers collided")
    }
}

func TestParsePrivateKeyRoundtrip(t *testing.T) {
    priv, _, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair: %v", err) }
    parsed, err := ParsePrivateKey(priv.Bytes())
    if err != nil { t.Fatalf("parse private key: %v", err) }

    _, otherPub, err := GenerateKeypair()
    if err != nil { t.Fatalf("generate keypair: %v", err) }

    want, err := SymmetricKey(priv, otherPub)
    if err != nil { t.Fatalf("symmetric key: %v", err) }
    got, err := SymmetricKey(parsed, otherPub)
    if err != nil { t.Fatalf("symmetric key from parsed: %v", err) }
    if !bytes.Equal(want, got) {
        t.Fatalf("parsed private key produced a different shared secret")
    }
}
