package peer

import (
	"time"

	"ames/pkg/ship"
)

// State is one peer entry in the transport's peer map. A peer begins
// Alien (no keys yet) and is promoted to Known once the PKI oracle (or,
// for a comet, a validated self-attestation) supplies crypto material.
type State struct {
	Ship  ship.Ship
	Known bool

	Life         ship.Life
	Rift         ship.Rift
	PublicKey    []byte
	SymmetricKey []byte

	HasSponsor bool
	Sponsor    ship.Ship

	Route Route
	QoS   QoS

	LastContact time.Time

	Ossuary *Ossuary
	Flows   *Flows
	Heeds   map[string]bool

	Alien *AlienQueue

	// PKIRequested guards against re-issuing RequestKeys every time a
	// plea lands on an already-pending alien peer.
	PKIRequested bool
}

// New returns a freshly created Alien entry for who, the state every
// peer starts in on first local reference.
func New(who ship.Ship) *State {
	return &State{
		Ship:    who,
		Known:   false,
		Heeds:   make(map[string]bool),
		Ossuary: newOssuary(),
		Flows:   newFlows(),
		Alien:   newAlienQueue(),
	}
}

// Promote moves an Alien peer to Known, installing crypto material. It
// returns the queued alien agenda, which the caller must re-dispatch in
// FIFO order onto the now-known peer.
func (s *State) Promote(life ship.Life, pub, symKey []byte, sponsor ship.Ship, hasSponsor bool) Agenda {
	s.Known = true
	s.Life = life
	s.PublicKey = pub
	s.SymmetricKey = symKey
	s.HasSponsor = hasSponsor
	s.Sponsor = sponsor
	if s.Ship.IsGalaxy() {
		s.Route = Route{Known: true, Direct: true, Lane: Lane{Galaxy: true, GalaxyID: s.Ship}}
	}
	agenda := s.Alien.drain()
	s.Alien = newAlienQueue()
	return agenda
}

// Rekey updates crypto material in place on a key-rotation notice. Flow
// state is preserved.
func (s *State) Rekey(life ship.Life, pub, symKey []byte) {
	s.Life = life
	s.PublicKey = pub
	s.SymmetricKey = symKey
}

// SponsorChange replaces the sponsor field without touching flow state.
func (s *State) SponsorChange(sponsor ship.Ship) {
	s.HasSponsor = true
	s.Sponsor = sponsor
}

// Breach discards all flow state on a continuity-breach notice,
// returning the set of armed timer wires the host must cancel. PKI
// fields (life, public key, sponsor) are retained; rift is bumped by
// the caller before calling Breach.
func (s *State) Breach() []TimerWire {
	wires := s.armedTimerWires()
	s.Flows = newFlows()
	s.Ossuary = newOssuary()
	s.QoS = Unborn
	if s.Ship.IsGalaxy() {
		s.Route = Route{Known: true, Direct: true, Lane: Lane{Galaxy: true, GalaxyID: s.Ship}}
	} else {
		s.Route = Route{}
	}
	return wires
}

// TimerWire is the (ship, bone) handle a flow's packet-pump timer is
// keyed and cancelled by.
type TimerWire struct {
	Ship ship.Ship
	Bone uint32
}

func (s *State) armedTimerWires() []TimerWire {
	var out []TimerWire
	for bone, p := range s.Flows.Snd {
		if _, armed := p.Congestion.NextWake(); armed {
			out = append(out, TimerWire{Ship: s.Ship, Bone: bone})
		}
	}
	return out
}

// TouchContact records a successful exchange, promoting QoS to Live.
func (s *State) TouchContact(now time.Time) (transitioned bool) {
	s.LastContact = now
	if s.QoS != Live {
		s.QoS = Live
		return true
	}
	return false
}

// CheckTimeout applies the 30s dead-after-last-contact rule, demoting
// a Live peer to Dead.
func (s *State) CheckTimeout(now time.Time) (transitioned bool) {
	if s.QoS == Live && now.Sub(s.LastContact) >= deadAfter {
		s.QoS = Dead
		return true
	}
	return false
}

// Clogged reports whether the total of in-flight-plus-unsent work
// across this peer's backward (response) flows meets the clog
// threshold, per §4.5.
func (s *State) Clogged() bool {
	total := 0
	for bone, p := range s.Flows.Snd {
		if IsForward(bone) {
			continue
		}
		total += p.InFlightAndUnsent()
		if total >= clogThreshold {
			return true
		}
	}
	return false
}

const clogThreshold = 5
