// Package packet implements Ames's on-the-wire packet format: the
// bit-packed header shared by every packet, and the two content classes
// (open and shut) layered on top of it.
package packet

import (
	"errors"
	"fmt"

	"ames/pkg/ship"
)

// shipWidth returns the number of address bytes a ship's class occupies
// on the wire. Widths are fixed powers of two so a 3-bit class code is
// enough to recover them on decode.
func shipWidth(c ship.Class) int {
	switch c {
	case ship.Galaxy:
		return 1
	case ship.Star:
		return 2
	case ship.Planet:
		return 4
	case ship.Moon:
		return 8
	default:
		return 16
	}
}

func classCode(c ship.Class) byte { return byte(c) }

func classFromCode(code byte) (ship.Class, error) {
	if code > byte(ship.Comet) {
		return 0, fmt.Errorf("packet: bad ship class code %d", code)
	}
	return ship.Class(code), nil
}

// Header is the fixed-position preamble every packet carries, bit-exact
// per the wire-compatibility requirement: flags and ship-class codes
// packed low-to-high into byte 0, life ticks into byte 1, an
// origin-present flag into byte 2, followed by the variable-width
// sender/receiver ship addresses and the optional origin breadcrumb.
type Header struct {
	Open         bool // true for a comet self-attestation open packet
	Request      bool // request=1, ack=0
	Sample       bool // currently always true
	Sender       ship.Ship
	Receiver     ship.Ship
	SenderTick   uint8 // sender-life mod 16
	ReceiverTick uint8 // receiver-life mod 16
	Origin       []byte // forwarding breadcrumb, <= 6 bytes
}

const maxOriginLen = 6

// Encode writes the header to the front of a packet buffer.
func (h *Header) Encode() ([]byte, error) {
	if len(h.Origin) > maxOriginLen {
		return nil, fmt.Errorf("packet: origin too long: %d", len(h.Origin))
	}
	sndClass := h.Sender.Class()
	rcvClass := h.Receiver.Class()

	b0 := byte(0)
	if h.Request {
		b0 |= 1 << 0
	}
	if h.Sample {
		b0 |= 1 << 1
	}
	b0 |= classCode(sndClass) << 2
	b0 |= classCode(rcvClass) << 5

	b1 := (h.SenderTick & 0xf) | (h.ReceiverTick&0xf)<<4

	b2 := byte(0)
	if len(h.Origin) > 0 {
		b2 |= 1 << 0
		b2 |= byte(len(h.Origin)) << 1
	}
	if h.Open {
		b2 |= 1 << 7
	}

	sndBytes := h.Sender.Bytes()
	rcvBytes := h.Receiver.Bytes()
	sndWidth := shipWidth(sndClass)
	rcvWidth := shipWidth(rcvClass)

	out := make([]byte, 0, 3+sndWidth+rcvWidth+len(h.Origin))
	out = append(out, b0, b1, b2)
	out = append(out, sndBytes[16-sndWidth:]...)
	out = append(out, rcvBytes[16-rcvWidth:]...)
	out = append(out, h.Origin...)
	return out, nil
}

// Decode parses a header from the front of buf and returns the number
// of bytes consumed.
func Decode(buf []byte) (*Header, int, error) {
	if len(buf) < 3 {
		return nil, 0, errors.New("packet: short header")
	}
	b0, b1, b2 := buf[0], buf[1], buf[2]

	h := &Header{
		Request: b0&(1<<0) != 0,
		Sample:  b0&(1<<1) != 0,
		Open:    b2&(1<<7) != 0,
	}
	sndClass, err := classFromCode((b0 >> 2) & 0x7)
	if err != nil {
		return nil, 0, err
	}
	rcvClass, err := classFromCode((b0 >> 5) & 0x7)
	if err != nil {
		return nil, 0, err
	}
	h.SenderTick = b1 & 0xf
	h.ReceiverTick = (b1 >> 4) & 0xf

	originPresent := b2&1 != 0
	originLen := int((b2 >> 1) & 0x3f)
	if !originPresent {
		originLen = 0
	}

	sndWidth := shipWidth(sndClass)
	rcvWidth := shipWidth(rcvClass)
	need := 3 + sndWidth + rcvWidth + originLen
	if len(buf) < need {
		return nil, 0, errors.New("packet: truncated header")
	}

	off := 3
	var sndBuf, rcvBuf [16]byte
	copy(sndBuf[16-sndWidth:], buf[off:off+sndWidth])
	off += sndWidth
	copy(rcvBuf[16-rcvWidth:], buf[off:off+rcvWidth])
	off += rcvWidth

	h.Sender = shipFromBytes(sndBuf)
	h.Receiver = shipFromBytes(rcvBuf)

	if originLen > 0 {
		h.Origin = append([]byte(nil), buf[off:off+originLen]...)
		off += originLen
	}
	return h, off, nil
}

func shipFromBytes(b [16]byte) ship.Ship {
	hi := uint64(0)
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(b[i])
	}
	lo := uint64(0)
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(b[i])
	}
	if hi == 0 {
		return ship.FromUint64(lo)
	}
	return ship.FromHiLo(hi, lo)
}
