package packet

import (
    "bytes"
    "crypto/ed25519"
    "crypto/rand"
    "testing"

    "ames/pkg/ship"
)

func TestHeaderEncodeDecodeRoundtrip(t *testing.T) {
    h := Header{
        Request:      true,
        Sample:       true,
        Sender:       ship.FromUint64(42),
        Receiver:     ship.FromUint64(0x12345678),
        SenderTick:   3,
        ReceiverTick: 9,
        Origin:       []byte{1, 2, 3},
    }
    b, err := h.Encode()
    if err != nil { t.Fatalf("encode: %v", err) }

    h2, n, err := Decode(b)
    if err != nil { t.Fatalf("decode: %v", err) }
    if n != len(b) {
        t.Fatalf("decode consumed %d bytes, want %d", n, len(b))
    }
    if h2.Request != h.Request || h2.Sample != h.Sample || h2.Open != h.Open {
        t.Fatalf("flags mismatch: %#v vs %#v", h2, h)
    }
    if !h2.Sender.Equal(h.Sender) || !h2.Receiver.Equal(h.Receiver) {
        t.Fatalf("ship addresses mismatch: %v/%v vs %v/%v", h2.Sender, h2.Receiver, h.Sender, h.Receiver)
    }
    if h2.SenderTick != h.SenderTick || h2.ReceiverTick != h.ReceiverTick {
        t.Fatalf("tick mismatch: %d/%d vs %d/%d", h2.SenderTick, h2.ReceiverTick, h.SenderTick, h.ReceiverTick)
    }
    if !bytes.Equal(h2.Origin, h.Origin) {
        t.Fatalf("origin mismatch: %x vs %x", h2.Origin, h.Origin)
    }
}

func TestHeaderEncodeRejectsLongOrigin(t *testing.T) {
    h := Header{Sender: ship.FromUint64(1), Receiver: ship.FromUint64(2), Origin: make([]byte, maxOriginLen+1)}
    if _, err := h.Encode(); err == nil {
        t.Fatalf("expected an error for an over-length origin")
    }
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
    if _, _, err := Decode([]byte{1, 2}); err == nil {
        t.Fatalf("expected an error decoding a 2-byte buffer")
    }
}

func TestOpenPacketRoundtrip(t *testing.T) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    sndr := ship.CometAddress(pub)
    rcvr := ship.FromUint64(256)

    b, err := EncodeOpen(sndr, rcvr, 7, pub, priv)
    if err != nil { t.Fatalf("encode open: %v", err) }

    pkt, body, err := DecodeOpen(b)
    if err != nil { t.Fatalf("decode open: %v", err) }
    if !pkt.Header.Sender.Equal(sndr) || !pkt.Header.Receiver.Equal(rcvr) {
        t.Fatalf("header addresses mismatch")
    }
    if body.ReceiverLife != 7 {
        t.Fatalf("receiver life mismatch: %d", body.ReceiverLife)
    }
}

func TestOpenPacketRejectsForgedAddress(t *testing.T) {
    pub, priv, err := ed25519.GenerateKey(rand.Reader)
    if err != nil { t.Fatalf("generate key: %v", err) }
    forged := ship.FromUint64(1 << 63) // not this key's real comet address
    b, err := EncodeOpen(forged, ship.FromUint64(1), 1, pub, priv)
    if err != nil { t.Fatalf("encode open: %v", err) }
    if _, _, err := DecodeOpen(b); err == nil {
        t.Fatalf("expected an error for a comet address that doesn't hash from the key")
    }
}

func TestShutPacketRoundtrip(t *testing.T) {
    key := make([]byte, 32)
    if _, err := rand.Read(key); err != nil { t.Fatalf("random key: %v", err) }

    h := Header{
        Request:  true,
        Sample:   true,
        Sender:   ship.FromUint64(1),
        Receiver: ship.FromUint64(2),
    }
    payload := ShutPayload{
        Bone:         5,
        MessageNum:   10,
        Kind:         MeatFragment,
        NumFragments: 3,
        FragmentNum:  1,
        FragmentData: []byte("fragment body"),
    }
    b, err := EncodeShut(h, key, 4, 4, payload)
    if err != nil { t.Fatalf("encode shut: %v", err) }

    sp, err := DecodeShut(b, key, 4, 4)
    if err != nil { t.Fatalf("decode shut: %v", err) }
    if sp.Payload.Bone != payload.Bone || sp.Payload.MessageNum != payload.MessageNum {
        t.Fatalf("payload mismatch: %#v vs %#v", sp.Payload, payload)
    }
    if !bytes.Equal(sp.Payload.FragmentData, payload.FragmentData) {
        t.Fatalf("fragment data mismatch")
    }
}

func TestShutPacketRejectsStaleTick(t *testing.T) {
    key := make([]byte, 32)
    if _, err := rand.Read(key); err != nil { t.Fatalf("random key: %v", err) }
    h := Header{Sender: ship.FromUint64(1), Receiver: ship.FromUint64(2)}
    b, err := EncodeShut(h, key, 4, 4, ShutPayload{})
    if err != nil { t.Fatalf("encode shut: %v", err) }

    if _, err := DecodeShut(b, key, 5, 4); err == nil {
        t.Fatalf("expected a tick mismatch error when our life has advanced")
    }
}

func TestShutPacketRejectsWrongKey(t *testing.T) {
    key := make([]byte, 32)
    if _, err := rand.Read(key); err != nil { t.Fatalf("random key: %v", err) }
    other := make([]byte, 32)
    if _, err := rand.Read(other); err != nil { t.Fatalf("random key: %v", err) }

    h := Header{Sender: ship.FromUint64(1), Receiver: ship.FromUint64(2)}
    b, err := EncodeShut(h, key, 1, 1, ShutPayload{Bone: 1})
    if err != nil { t.Fatalf("encode shut: %v", err) }

    if _, err := DecodeShut(b, other, 1, 1); err == nil {
        t.Fatalf("expected an authentication error decoding with the wrong key")
    }
}

func TestTickMatches(t *testing.T) {
    if !TickMatches(3, 19) { // 19 % 16 == 3
        t.Fatalf("TickMatches(3, 19) should be true")
    }
    if TickMatches(3, 20) {
        t.Fatalf("TickMatches(3, 20) should be false")
    }
}
