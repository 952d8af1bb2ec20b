// Package ship implements Ames's 128-bit peer identifiers and their
// epoch counters.
package ship

import (
	"crypto/ed25519"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Ship is a 128-bit opaque peer identifier. Its class is derived purely
// from how many low bits are significant.
type Ship struct {
	hi uint64
	lo uint64
}

// Life is a monotonically increasing key epoch for a ship.
type Life uint32

// Rift is a monotonically increasing continuity epoch for a ship; bumping
// it invalidates all flow state held for that ship.
type Rift uint32

// Class names the five address-width tiers of the Ames address space.
type Class int

const (
	Galaxy Class = iota
	Star
	Planet
	Moon
	Comet
)

func (c Class) String() string {
	switch c {
	case Galaxy:
		return "galaxy"
	case Star:
		return "star"
	case Planet:
		return "planet"
	case Moon:
		return "moon"
	case Comet:
		return "comet"
	default:
		return "unknown"
	}
}

// FromUint64 builds a Ship whose value fits in the low 64 bits.
func FromUint64(v uint64) Ship { return Ship{hi: 0, lo: v} }

// FromHiLo builds a Ship from its raw 64-bit halves, used when decoding
// a 16-byte wide (comet-class) wire address.
func FromHiLo(hi, lo uint64) Ship { return Ship{hi: hi, lo: lo} }

// FromBig builds a Ship from a big.Int, truncated to 128 bits.
func FromBig(v *big.Int) Ship {
	b := v.Bytes()
	if len(b) > 16 {
		b = b[len(b)-16:]
	}
	var buf [16]byte
	copy(buf[16-len(b):], b)
	hi := uint64(0)
	lo := uint64(0)
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(buf[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(buf[i])
	}
	return Ship{hi: hi, lo: lo}
}

// Uint64 returns the low 64 bits, valid only when Class() is no wider
// than Moon (the galaxy/star/planet/moon space fits in 64 bits anyway).
func (s Ship) Uint64() uint64 { return s.lo }

// Bytes returns the big-endian 16-byte representation.
func (s Ship) Bytes() [16]byte {
	var out [16]byte
	for i := 0; i < 8; i++ {
		out[i] = byte(s.hi >> (56 - 8*i))
	}
	for i := 0; i < 8; i++ {
		out[8+i] = byte(s.lo >> (56 - 8*i))
	}
	return out
}

// MarshalBinary encodes s as its 16-byte big-endian form, so a Ship
// survives wire.Jam/Cue even though its fields are unexported.
func (s Ship) MarshalBinary() ([]byte, error) {
	b := s.Bytes()
	return b[:], nil
}

// UnmarshalBinary is the inverse of MarshalBinary.
func (s *Ship) UnmarshalBinary(data []byte) error {
	if len(data) != 16 {
		return fmt.Errorf("ship: encoded address is %d bytes, want 16", len(data))
	}
	*s = FromBig(new(big.Int).SetBytes(data))
	return nil
}

func bitWidth(s Ship) int {
	if s.hi != 0 {
		return 64 + bits64(s.hi)
	}
	return bits64(s.lo)
}

func bits64(v uint64) int {
	n := 0
	for v != 0 {
		n++
		v >>= 1
	}
	return n
}

// Class derives the address class from the ship's significant bit-width,
// the same rule the wire format relies on to size the ship field.
func (s Ship) Class() Class {
	switch w := bitWidth(s); {
	case w <= 8:
		return Galaxy
	case w <= 16:
		return Star
	case w <= 32:
		return Planet
	case w <= 64:
		return Moon
	default:
		return Comet
	}
}

// IsGalaxy reports whether s is a top-level, well-known sponsor.
func (s Ship) IsGalaxy() bool { return s.Class() == Galaxy }

// IsComet reports whether s is a self-signed ephemeral identity.
func (s Ship) IsComet() bool { return s.Class() == Comet }

// Sponsor returns the immediate sponsor of s by keeping the low half of
// its address (a star's low 8 bits, a planet's low 16, a moon's low 32),
// per the Urbit address-space convention that every non-galaxy ship's
// sponsor is its lower bits.
func (s Ship) Sponsor() Ship {
	switch s.Class() {
	case Galaxy:
		return s
	case Star:
		return FromUint64(s.lo & 0xff)
	case Planet:
		return FromUint64(s.lo & 0xffff)
	case Moon:
		return FromUint64(s.lo & 0xffffffff)
	default:
		// Comets carry their sponsoring star in their low 16 bits by
		// construction; callers that mint comets are responsible for
		// recording the real sponsor out of band (the PKI oracle supplies
		// it). Fall back to the embedded bits as a best-effort default.
		return FromUint64(s.lo & 0xffff)
	}
}

func (s Ship) String() string { return fmt.Sprintf("~%d", s.lo) }

// Equal reports whether two ships denote the same address.
func (s Ship) Equal(o Ship) bool { return s.hi == o.hi && s.lo == o.lo }

// CometAddress derives the ship address a comet's public key must hash
// to: SHA3-256(pub) folded into 128 bits with its top bit forced on, so
// the width always lands in the Comet class.
func CometAddress(pub ed25519.PublicKey) Ship {
	sum := sha3.Sum256(pub)
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(sum[i])
	}
	for i := 8; i < 16; i++ {
		lo = lo<<8 | uint64(sum[i])
	}
	hi |= 1 << 63 // force comet-width: top bit set guarantees w > 64
	return Ship{hi: hi, lo: lo}
}
