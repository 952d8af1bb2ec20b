package packet

import (
	"encoding/binary"
	"fmt"
	"time"

	"ames/pkg/crypto/aessiv"
	"ames/pkg/ship"
	"ames/pkg/wire"
)

// MeatKind discriminates a shut packet's payload.
type MeatKind uint8

const (
	MeatFragment MeatKind = iota
	MeatFragmentAck
	MeatMessageAck
)

// ShutPayload is the plaintext jammed and sealed inside a shut packet:
// (bone, message-num, meat), where meat is either fragment-meat or one
// of the two ack-meat shapes.
type ShutPayload struct {
	Bone         uint32   `cbor:"1,keyasint"`
	MessageNum   uint32   `cbor:"2,keyasint"`
	Kind         MeatKind `cbor:"3,keyasint"`
	NumFragments uint32   `cbor:"4,keyasint"`
	FragmentNum  uint32   `cbor:"5,keyasint"`
	FragmentData []byte   `cbor:"6,keyasint"`
	Ok           bool     `cbor:"7,keyasint"`
	LagNanos     int64    `cbor:"8,keyasint"`
}

// Lag returns the message-ack's round-trip lag as a duration.
func (p *ShutPayload) Lag() time.Duration { return time.Duration(p.LagNanos) }

// ShutPacket is the encrypted form used for everything but a comet's
// open self-attestation.
type ShutPacket struct {
	Header  Header
	Payload ShutPayload
}

func aad(sndr, rcvr ship.Ship, sndrLife, rcvrLife uint32) [][]byte {
	sb := sndr.Bytes()
	rb := rcvr.Bytes()
	var sl, rl [4]byte
	binary.BigEndian.PutUint32(sl[:], sndrLife)
	binary.BigEndian.PutUint32(rl[:], rcvrLife)
	return [][]byte{sb[:], rb[:], sl[:], rl[:]}
}

// EncodeShut seals payload under key with AAD = [sndr, rcvr, sndr-life,
// rcvr-life] and prepends the wire header.
func EncodeShut(h Header, key []byte, sndrLife, rcvrLife uint32, payload ShutPayload) ([]byte, error) {
	h.Open = false
	h.SenderTick = uint8(sndrLife % 16)
	h.ReceiverTick = uint8(rcvrLife % 16)

	plaintext, err := wire.Jam(payload)
	if err != nil {
		return nil, err
	}
	sealed, err := aessiv.Seal(key, aad(h.Sender, h.Receiver, sndrLife, rcvrLife), plaintext)
	if err != nil {
		return nil, err
	}
	hb, err := h.Encode()
	if err != nil {
		return nil, err
	}
	return append(hb, sealed...), nil
}

// DecodeShut parses the header, verifies the tick nibbles against the
// caller's knowledge of both sides' current life, and opens the AES-SIV
// envelope. ourLife/herLife are the full (non-truncated) life counters
// the tick nibbles are checked against.
func DecodeShut(buf []byte, key []byte, ourLife, herLife uint32) (*ShutPacket, error) {
	h, n, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	if h.Open {
		return nil, fmt.Errorf("packet: not a shut packet")
	}
	if !TickMatches(h.SenderTick, herLife) || !TickMatches(h.ReceiverTick, ourLife) {
		return nil, fmt.Errorf("packet: tick mismatch (stale epoch)")
	}
	sealed := buf[n:]
	plaintext, err := aessiv.Open(key, aad(h.Sender, h.Receiver, herLife, ourLife), sealed)
	if err != nil {
		return nil, err
	}
	var payload ShutPayload
	if err := wire.Cue(plaintext, &payload); err != nil {
		return nil, err
	}
	return &ShutPacket{Header: *h, Payload: payload}, nil
}

// TickMatches is the anti-replay check of §4.1: reject unless the
// claimed tick equals life mod 16.
func TickMatches(tick uint8, life uint32) bool { return uint32(tick) == life%16 }
