// Package peer implements the peer state machine: handshake promotion,
// key rotation, continuity breach, sponsor tracking, routing and
// forwarding, and the ossuary that maps local ducts onto bones.
package peer

import (
	"time"

	"ames/pkg/pump"
	"ames/pkg/ship"
	"ames/pkg/sink"
)

// QoS is a peer's observed liveness.
type QoS int

const (
	Unborn QoS = iota
	Dead
	Live
)

func (q QoS) String() string {
	switch q {
	case Unborn:
		return "unborn"
	case Dead:
		return "dead"
	default:
		return "live"
	}
}

// deadAfter is how long since last contact before a live peer is
// declared dead.
const deadAfter = 30 * time.Second

// Lane is a network-layer address: either a galaxy address the runtime
// resolves by itself, or an opaque transport-layer address such as a
// UDP endpoint.
type Lane struct {
	Galaxy   bool
	GalaxyID ship.Ship
	Addr     string
}

// Route is a peer's known path: direct (we hold a live lane) or
// indirect (we know a lane but it may be stale, e.g. learned from a
// galaxy relay).
type Route struct {
	Known    bool
	Direct   bool
	Lane     Lane
}

// Duct is an opaque local-caller identifier the ossuary maps onto a
// bone.
type Duct string

// Ossuary is the bidirectional map between local ducts and bones for
// one peer. NextBone always advances by 4 so its two low bits stay
// free for the bone-numbering scheme (direction, nack-trace).
type Ossuary struct {
	ductToBone map[Duct]uint32
	boneToDuct map[uint32]Duct
	nextBone   uint32
}

func newOssuary() *Ossuary {
	return &Ossuary{
		ductToBone: make(map[Duct]uint32),
		boneToDuct: make(map[uint32]Duct),
	}
}

// BoneFor returns the bone assigned to duct, minting a fresh forward
// bone (low bits 00) if this is the first reference.
func (o *Ossuary) BoneFor(d Duct) uint32 {
	if b, ok := o.ductToBone[d]; ok {
		return b
	}
	b := o.nextBone
	o.nextBone += 4
	o.ductToBone[d] = b
	o.boneToDuct[b] = d
	return b
}

// DuctFor looks up the duct owning bone, if any.
func (o *Ossuary) DuctFor(b uint32) (Duct, bool) {
	d, ok := o.boneToDuct[b]
	return d, ok
}

// BindBone registers a bone the peer did not mint itself (one a remote
// plea arrived carrying) against a synthesized local duct, the first
// time that bone is seen.
func (o *Ossuary) BindBone(b uint32, d Duct) Duct {
	if existing, ok := o.boneToDuct[b]; ok {
		return existing
	}
	o.boneToDuct[b] = d
	o.ductToBone[d] = b
	return d
}

// Bone numbering per §3: bit 0 selects direction (0=forward/request,
// 1=backward/response); bit 1, independently of bit 0, selects
// nack-trace (1) vs normal (0).
const (
	boneBackward  = 1 << 0
	boneNackTrace = 1 << 1
)

// IsForward reports whether bone is a forward (request) flow.
func IsForward(bone uint32) bool { return bone&boneBackward == 0 }

// IsNackTrace reports whether bone is a nack-trace bone: the pairing
// is carried entirely in bit 1, independent of direction, so that for
// every bone B, B xor 0b10 is its nack-trace partner regardless of
// which of the two directions B itself denotes.
func IsNackTrace(bone uint32) bool { return bone&boneNackTrace != 0 }

// PairedNackTrace returns bone's nack-trace partner: bone xor 0b10.
// The operation is its own inverse.
func PairedNackTrace(bone uint32) uint32 { return bone ^ boneNackTrace }

// BaseBone clears both low bits, recovering the forward bone a
// backward (response) bone was derived from.
func BaseBone(bone uint32) uint32 { return bone &^ (boneBackward | boneNackTrace) }

// Flows holds the per-bone pump/sink state for one peer. Each
// receive flow tracks its own nacked message-nums internally
// (sink.State); there is no separate peer-level copy to keep in sync.
type Flows struct {
	Snd map[uint32]*pump.State
	Rcv map[uint32]*sink.State
}

func newFlows() *Flows {
	return &Flows{
		Snd: make(map[uint32]*pump.State),
		Rcv: make(map[uint32]*sink.State),
	}
}

func (f *Flows) sndFor(bone uint32) *pump.State {
	p, ok := f.Snd[bone]
	if !ok {
		p = pump.New()
		f.Snd[bone] = p
	}
	return p
}

func (f *Flows) rcvFor(bone uint32) *sink.State {
	s, ok := f.Rcv[bone]
	if !ok {
		s = sink.New()
		f.Rcv[bone] = s
	}
	return s
}
