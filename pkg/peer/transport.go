package peer

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"fmt"

	"ames/pkg/pki"
	"ames/pkg/pump"
	"ames/pkg/ship"
)

// Transport is the top-level event-driven core: the peer map plus the
// process-wide identity, crypto, and debug state every event handler
// needs but that does not belong duplicated per peer.
type Transport struct {
	OurShip ship.Ship
	OurLife ship.Life
	OurRift ship.Rift

	SigningKey ed25519.PrivateKey
	SigningPub ed25519.PublicKey
	AgreeKey   *ecdh.PrivateKey
	AgreePub   []byte

	Peers map[ship.Ship]*State

	Oracle pki.Oracle

	Verbosity SpewFlags
	Sift      map[ship.Ship]bool // empty: no filter, show everything
}

// NewTransport builds a fresh Transport for our own identity.
func NewTransport(us ship.Ship, life ship.Life, rift ship.Rift, signingKey ed25519.PrivateKey, agreeKey *ecdh.PrivateKey, oracle pki.Oracle) *Transport {
	return &Transport{
		OurShip:    us,
		OurLife:    life,
		OurRift:    rift,
		SigningKey: signingKey,
		SigningPub: signingKey.Public().(ed25519.PublicKey),
		AgreeKey:   agreeKey,
		AgreePub:   agreeKey.PublicKey().Bytes(),
		Peers:      make(map[ship.Ship]*State),
		Oracle:     oracle,
		Sift:       make(map[ship.Ship]bool),
	}
}

// PeerFor returns who's peer entry, creating a fresh Alien one on first
// reference (Unknown → Alien per §4.5).
func (t *Transport) PeerFor(who ship.Ship) *State {
	p, ok := t.Peers[who]
	if !ok {
		p = New(who)
		t.Peers[who] = p
	}
	return p
}

// visible reports whether who passes the current sift filter, used to
// gate trace-log effects.
func (t *Transport) visible(who ship.Ship) bool {
	if len(t.Sift) == 0 {
		return true
	}
	return t.Sift[who]
}

// Dispatch processes one inbound task to completion, returning the full
// list of outbound effects the host must carry out. Exactly one task is
// ever in flight: there is no internal suspension.
func (t *Transport) Dispatch(task Task) []Effect {
	switch task.Kind {
	case TaskBorn:
		return t.handleBorn()
	case TaskHear:
		return t.handleHear(task)
	case TaskHeed:
		return t.handleHeed(task)
	case TaskJilt:
		return t.handleJilt(task)
	case TaskPlea:
		return t.handlePlea(task)
	case TaskPKIResult:
		return t.handlePKIResult(task)
	case TaskProd:
		return t.handleProd(task)
	case TaskSift:
		return t.handleSift(task)
	case TaskSpew:
		return t.handleSpew(task)
	case TaskStir:
		return t.handleStir()
	case TaskTrim, TaskVega:
		return nil
	case TaskConsumerDone:
		return t.handleConsumerDone(task)
	case TaskWake:
		return t.handleWake(task)
	case TaskTick:
		return t.handleTick(task)
	case TaskDrop:
		return t.handleDrop(task)
	default:
		panic(fmt.Sprintf("peer: unrecognized task kind %d", task.Kind))
	}
}

func (t *Transport) handleBorn() []Effect {
	return []Effect{logEffect("born")}
}

func (t *Transport) handleHeed(task Task) []Effect {
	p := t.PeerFor(task.HeedShip)
	if p.Known {
		p.Heeds[task.Subscriber] = true
	} else {
		p.Alien.QueueHeed(QueuedHeed{Subscriber: task.Subscriber})
	}
	return nil
}

func (t *Transport) handleJilt(task Task) []Effect {
	p, ok := t.Peers[task.HeedShip]
	if !ok {
		return nil
	}
	delete(p.Heeds, task.Subscriber)
	if !p.Known {
		kept := p.Alien.Heeds[:0]
		for _, h := range p.Alien.Heeds {
			if h.Subscriber != task.Subscriber {
				kept = append(kept, h)
			}
		}
		p.Alien.Heeds = kept
	}
	return nil
}

func (t *Transport) handleProd(task Task) []Effect {
	for _, who := range task.Ships {
		p, ok := t.Peers[who]
		if !ok {
			continue
		}
		for _, snd := range p.Flows.Snd {
			snd.Prod()
		}
	}
	return nil
}

func (t *Transport) handleSift(task Task) []Effect {
	t.Sift = make(map[ship.Ship]bool, len(task.Ships))
	for _, who := range task.Ships {
		t.Sift[who] = true
	}
	return nil
}

func (t *Transport) handleSpew(task Task) []Effect {
	t.Verbosity = task.Spew
	return nil
}

// handleStir re-arms any timer that should be armed but whose Wait
// effect may have been lost by the host (host restart recovery).
func (t *Transport) handleStir() []Effect {
	var effects []Effect
	for who, p := range t.Peers {
		for bone, snd := range p.Flows.Snd {
			effects = append(effects, t.pumpTimerEffect(who, bone, snd))
		}
	}
	return effects
}

// handleWake fires a flow's retransmission timer: a spurious wake (the
// host's timer granularity let it fire early, or the queue drained
// since it was armed) just re-syncs the host's timer with the pump's
// state (a Wait while still armed, a Rest once the queue is empty); a
// genuine one resends the head of the live queue.
func (t *Transport) handleWake(task Task) []Effect {
	p, ok := t.Peers[task.WakeShip]
	if !ok {
		return []Effect{restEffect(TimerWire{Ship: task.WakeShip, Bone: task.WakeBone})}
	}
	snd, exists := p.Flows.Snd[task.WakeBone]
	if !exists {
		return []Effect{restEffect(TimerWire{Ship: task.WakeShip, Bone: task.WakeBone})}
	}
	ch, err := NewChannel(t, p)
	if err != nil {
		return []Effect{logEffect(err.Error())}
	}
	var effects []Effect
	if sd := snd.Wake(task.Now); sd != nil {
		effects = append(effects, t.emitSends(p, ch, task.WakeBone, []pump.Send{*sd})...)
	}
	effects = append(effects, t.pumpTimerEffect(task.WakeShip, task.WakeBone, snd))
	return effects
}

// handleTick applies §4.5's 30s dead-after-last-contact rule across
// every known peer, run on the host's own periodic timer rather than a
// per-peer one. A transition to Dead is logged and immediately checked
// for a clog, the same as the one inline TouchContact drives on a fresh
// packet's arrival.
func (t *Transport) handleTick(task Task) []Effect {
	var effects []Effect
	for _, p := range t.Peers {
		if !p.Known {
			continue
		}
		if p.CheckTimeout(task.Now) {
			effects = append(effects, logEffect(fmt.Sprintf("%s dead", p.Ship)))
			if qos := t.checkClog(p); qos != nil {
				effects = append(effects, *qos)
			}
		}
	}
	return effects
}

// handleDrop forwards §4.4's drop(message-num) straight to the
// matching receive flow, clearing a past nack so a later duplicate of
// that message-num is no longer cached as negatively acked. A drop for
// a peer or bone with no existing receive flow is a no-op: there is
// nothing to clear.
func (t *Transport) handleDrop(task Task) []Effect {
	p, ok := t.Peers[task.DropShip]
	if !ok {
		return nil
	}
	rcv, ok := p.Flows.Rcv[task.DropBone]
	if !ok {
		return nil
	}
	rcv.Drop(task.DropMessageNum)
	return nil
}

// pumpTimerEffect describes the current armed/rest state of a flow's
// packet-pump timer as an effect, keyed by (ship, bone) so the host's
// re-arm of the same wire implicitly supersedes whatever it had armed
// before.
func (t *Transport) pumpTimerEffect(who ship.Ship, bone uint32, p *pump.State) Effect {
	wire := TimerWire{Ship: who, Bone: bone}
	next, armed := p.Congestion.NextWake()
	if !armed {
		return restEffect(wire)
	}
	return waitEffect(wire, next)
}
