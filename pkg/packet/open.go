package packet

import (
	"crypto/ed25519"
	"fmt"

	"ames/pkg/crypto/sign"
	"ames/pkg/ship"
	"ames/pkg/wire"
)

// OpenBody is a comet's self-attestation: its public key plus the
// identities and lives it claims, jammed and signed as a unit so the
// signature covers exactly what the receiver verifies against.
type OpenBody struct {
	PublicKey []byte    `cbor:"1,keyasint"`
	Sender    uint64    `cbor:"2,keyasint"`
	SenderHi  uint64    `cbor:"3,keyasint"`
	SenderLife uint32   `cbor:"4,keyasint"`
	Receiver   uint64   `cbor:"5,keyasint"`
	ReceiverHi uint64   `cbor:"6,keyasint"`
	ReceiverLife uint32 `cbor:"7,keyasint"`
}

// OpenPacket is the unencrypted signed form sent by a comet proving it
// owns the key whose hash is its own address.
type OpenPacket struct {
	Header    Header
	Signature []byte
	Body      []byte // jam(OpenBody)
}

// EncodeOpen builds an open packet announcing sndr's self-attestation,
// signed with its ed25519 private key. SenderLife is always 1: comets
// have no PKI-issued life, only their own.
func EncodeOpen(sndr, rcvr ship.Ship, rcvrLife uint32, pub ed25519.PublicKey, priv ed25519.PrivateKey) ([]byte, error) {
	sb := sndr.Bytes()
	rb := rcvr.Bytes()
	body := OpenBody{
		PublicKey:    pub,
		Sender:       beU64(sb[8:]),
		SenderHi:     beU64(sb[:8]),
		SenderLife:   1,
		Receiver:     beU64(rb[8:]),
		ReceiverHi:   beU64(rb[:8]),
		ReceiverLife: rcvrLife,
	}
	jammed, err := wire.Jam(body)
	if err != nil {
		return nil, err
	}
	sig := sign.Sign(priv, jammed)

	h := Header{
		Open:         true,
		Request:      true,
		Sample:       true,
		Sender:       sndr,
		Receiver:     rcvr,
		SenderTick:   uint8(1 % 16),
		ReceiverTick: uint8(rcvrLife % 16),
	}
	hb, err := h.Encode()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(hb)+2+len(sig)+len(jammed))
	out = append(out, hb...)
	out = appendUint16(out, uint16(len(sig)))
	out = append(out, sig...)
	out = append(out, jammed...)
	return out, nil
}

// DecodeOpen parses and verifies an open packet. It returns an error if
// the signature fails or the public key does not hash to the claimed
// sender ship — the core treats either as a protocol violation and
// drops the packet.
func DecodeOpen(buf []byte) (*OpenPacket, *OpenBody, error) {
	h, n, err := Decode(buf)
	if err != nil {
		return nil, nil, err
	}
	if !h.Open {
		return nil, nil, fmt.Errorf("packet: not an open packet")
	}
	rest := buf[n:]
	if len(rest) < 2 {
		return nil, nil, fmt.Errorf("packet: short open body")
	}
	sigLen := int(rest[0])<<8 | int(rest[1])
	rest = rest[2:]
	if len(rest) < sigLen {
		return nil, nil, fmt.Errorf("packet: truncated signature")
	}
	sig := rest[:sigLen]
	jammed := rest[sigLen:]

	var body OpenBody
	if err := wire.Cue(jammed, &body); err != nil {
		return nil, nil, err
	}

	claimed := ship.FromHiLo(body.SenderHi, body.Sender)
	if !claimed.Equal(h.Sender) {
		return nil, nil, fmt.Errorf("packet: open body sender mismatch")
	}
	expect := ship.CometAddress(ed25519.PublicKey(body.PublicKey))
	if !expect.Equal(h.Sender) {
		return nil, nil, fmt.Errorf("packet: comet key does not hash to claimed address")
	}
	if !sign.Verify(ed25519.PublicKey(body.PublicKey), jammed, sig) {
		return nil, nil, fmt.Errorf("packet: open packet signature invalid")
	}
	return &OpenPacket{Header: *h, Signature: sig, Body: jammed}, &body, nil
}

func beU64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func appendUint16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}
